// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package rpl implements the controller's southbound RPL ICMPv6
// connector: it treats an inbound DAO as a join request (there being
// no dedicated SDN join mechanism on the RPL side), and delegates any
// CFG response back out through the uSDN connector.
package rpl

import (
	"github.com/mbaddeley/usdn/internal/apps"
	"github.com/mbaddeley/usdn/internal/controller"
	"github.com/mbaddeley/usdn/internal/errs"
	"github.com/mbaddeley/usdn/internal/logging"
	"github.com/mbaddeley/usdn/internal/netmodel"
)

// ICMPCode is an RPL control message code, matching icmp6_hdr.icode.
type ICMPCode uint8

// CodeDAO is the RPL Destination Advertisement Object code.
const CodeDAO ICMPCode = 0x02

// Out delegates the encoding and transmission of a response to another
// controller.Connector — in practice the uSDN connector, since RPL has
// no downward channel for SDN configuration of its own.
type Out func(action *controller.Action, response *controller.Response) error

// Connector is the southbound RPL integration. It satisfies
// controller.Connector.
//
// Like the uSDN Connector, In's raw parameter is prefixed with the
// sending node's 2-byte big-endian id, followed by a single ICMPCode
// byte identifying the RPL control message.
type Connector struct {
	Log     *logging.Logger
	Forward Out
}

// NewConnector constructs a Connector that forwards CFG responses via
// forward (typically usdn.Connector.Out).
func NewConnector(forward Out, log *logging.Logger) *Connector {
	return &Connector{Forward: forward, Log: log}
}

func (c *Connector) Name() string { return "RPL" }

func (c *Connector) Init() error {
	if c.Log != nil {
		c.Log.Infof("rpl southbound connector initialised")
	}
	return nil
}

// In decodes a tagged RPL control message into a dispatcher Action.
// Only DAO is understood; any other code is an error.
func (c *Connector) In(raw []byte, hops int) (*controller.Action, error) {
	if len(raw) < 3 {
		return nil, errs.New(errs.KindMalformed, "rpl connector: frame too short")
	}
	src := netmodel.NodeID(uint16(raw[0])<<8 | uint16(raw[1]))
	code := ICMPCode(raw[2])

	if c.Log != nil {
		c.Log.In("RPL", uint16(src), 0, 0, hops)
	}

	if code != CodeDAO {
		return nil, errs.Errorf(errs.KindMalformed, "rpl connector: unhandled icmp code %d", code)
	}

	return &controller.Action{
		Type: controller.ActionJoin,
		Src:  uint16(src),
		Data: apps.JoinData{NodeID: src},
	}, nil
}

// Out forwards CFG responses to the uSDN connector; any other
// response type is rejected, matching the reference's "RPL SB unknown
// response type" branch.
func (c *Connector) Out(action *controller.Action, response *controller.Response) error {
	if _, ok := response.Data.(apps.CFGPayload); !ok {
		return errs.New(errs.KindInternal, "rpl connector: unsupported response type")
	}
	if c.Forward == nil {
		return errs.New(errs.KindNotConfigured, "rpl connector: no forwarding connector configured")
	}
	return c.Forward(action, response)
}
