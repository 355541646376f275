// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package usdn

import (
	"encoding/binary"
	"net"
	"time"

	"github.com/mbaddeley/usdn/internal/apps"
	"github.com/mbaddeley/usdn/internal/config"
	"github.com/mbaddeley/usdn/internal/controller"
	"github.com/mbaddeley/usdn/internal/errs"
	"github.com/mbaddeley/usdn/internal/flowtable"
	"github.com/mbaddeley/usdn/internal/logging"
	"github.com/mbaddeley/usdn/internal/netmodel"
	"github.com/mbaddeley/usdn/internal/srh"
)

// NetUpdateData is the Action.Data payload for an ActionNetUpdate
// event: the net layer has no dedicated App (the reference dispatcher
// applies it directly, see atom.c's do_net_update), so the dispatcher
// wiring applies this straight to the netmodel.Graph.
type NetUpdateData struct {
	NodeID netmodel.NodeID
	CfgID  uint8
	Rank   uint8
	Links  []NSULink
}

func joinData(src netmodel.NodeID) apps.JoinData {
	return apps.JoinData{NodeID: src}
}

func netUpdateData(src netmodel.NodeID, nsu NSU) NetUpdateData {
	return NetUpdateData{NodeID: src, CfgID: nsu.CfgID, Rank: nsu.Rank, Links: nsu.Links}
}

func routingData(txID uint8, src, dest netmodel.NodeID) apps.RoutingData {
	return apps.RoutingData{TxID: txID, Src: src, Dest: dest}
}

// recordToCFG is the inverse of Engine.HandleCFG's unpacking: it turns
// a configuration Record back into the wire CFG a controller pushes
// down to a newly joined node.
func recordToCFG(r config.Record) CFG {
	ftLifetime := uint32(0xFFFFFFFF)
	if r.FTLifetime != flowtable.InfiniteLifetime {
		ftLifetime = uint32(r.FTLifetime / time.Second)
	}
	queryFull := uint8(0)
	if r.QueryFull {
		queryFull = 1
	}
	return CFG{
		SDNNet:          r.VNetID,
		CfgID:           r.CfgID,
		FTLifetime:      ftLifetime,
		QueryFull:       queryFull,
		QueryIdx:        r.QueryIdx,
		QueryLen:        r.QueryLen,
		UpdatePeriod:    r.UpdatePeriod,
		RPLDIOInterval:  r.RPLDIOInterval,
		RPLDFRTLifetime: r.RPLDFRTLifetime,
	}
}

// Connector is the southbound uSDN integration: it turns wire frames
// received over UDP into dispatcher Actions, and dispatcher Responses
// back into wire frames sent to the originating node. It satisfies
// controller.Connector.
//
// In's raw parameter is prefixed with the 2-byte big-endian node id of
// the sender (derived by the caller from the inbound UDP address),
// followed by the raw uSDN frame — there is no room for a sender
// address inside the uSDN wire format itself, unlike the original's
// access to the surrounding IPv6 header.
type Connector struct {
	Transport Transport
	Log       *logging.Logger
	// Addr resolves a node id to a destination address/port for Send.
	Addr func(id netmodel.NodeID) string
}

// NewConnector constructs a Connector.
func NewConnector(t Transport, addr func(netmodel.NodeID) string, log *logging.Logger) *Connector {
	return &Connector{Transport: t, Log: log, Addr: addr}
}

func (c *Connector) Name() string { return "uSDN" }

func (c *Connector) Init() error {
	if c.Log != nil {
		c.Log.Infof("usdn southbound connector initialised")
	}
	return nil
}

// In decodes a tagged uSDN frame into a dispatcher Action.
func (c *Connector) In(raw []byte, hops int) (*controller.Action, error) {
	if len(raw) < 2 {
		return nil, errs.New(errs.KindMalformed, "usdn connector: frame missing sender tag")
	}
	src := netmodel.NodeID(uint16(raw[0])<<8 | uint16(raw[1]))
	frame := raw[2:]

	hdr, err := DecodeHeader(frame)
	if err != nil {
		return nil, err
	}
	if c.Log != nil {
		c.Log.In(hdr.Type.String(), uint16(src), 0, hdr.Flow, hops)
	}

	payload := frame[HeaderLen:]
	switch hdr.Type {
	case MsgCJOIN:
		return &controller.Action{Type: controller.ActionJoin, Src: uint16(src),
			Data: joinData(src)}, nil
	case MsgNSU:
		nsu, err := DecodeNSU(payload)
		if err != nil {
			return nil, err
		}
		return &controller.Action{Type: controller.ActionNetUpdate, Src: uint16(src),
			Data: netUpdateData(src, nsu)}, nil
	case MsgFTQ:
		ftq, err := DecodeFTQ(payload)
		if err != nil {
			return nil, err
		}
		dest := netmodel.NodeID(0)
		if len(ftq.Data) >= 2 {
			dest = netmodel.NodeID(uint16(ftq.Data[0])<<8 | uint16(ftq.Data[1]))
		}
		return &controller.Action{Type: controller.ActionRouting, Src: uint16(src),
			Data: routingData(ftq.TxID, src, dest)}, nil
	default:
		return nil, errs.Errorf(errs.KindMalformed, "usdn connector: unhandled msg type %s", hdr.Type)
	}
}

// Out encodes response into a wire frame and sends it to the node
// Addr resolves response.Dest to.
func (c *Connector) Out(action *controller.Action, response *controller.Response) error {
	dest := netmodel.NodeID(response.Dest)
	addr := c.Addr(dest)

	var payload []byte
	var typ MsgType

	switch v := response.Data.(type) {
	case apps.CFGPayload:
		typ = MsgCFG
		payload = EncodeCFG(recordToCFG(v.Conf))
	case apps.RoutePayload:
		typ = MsgFTS
		action, err := routeActionRule(v.Route)
		if err != nil {
			return err
		}
		payload = EncodeFTS(FTS{
			TxID:      v.TxID,
			IsDefault: false,
			Match:     routeMatchRule(v.Route),
			Action:    action,
		})
	default:
		return errs.New(errs.KindInternal, "usdn connector: unknown response payload")
	}

	hdr := EncodeHeader(Header{Net: 0, Type: typ, Flow: 0})
	frame := append(hdr, payload...)
	if c.Log != nil {
		c.Log.Out(typ.String(), 0, uint16(dest), 0)
	}
	return c.Transport.Send(addr, frame)
}

// routeMatchRule builds the EQ-on-destination match the reference
// fts_output always installs: a query on the 16-byte destination
// address field. Since this implementation carries node ids rather
// than full IPv6 addresses, the match is on the 2-byte node id field,
// set to the route's final hop (route.Nodes[len-1]).
func routeMatchRule(route srh.Route) flowtable.MatchRule {
	data := make([]byte, 2)
	if n := len(route.Nodes); n > 0 {
		binary.BigEndian.PutUint16(data, uint16(route.Nodes[n-1]))
	}
	return flowtable.MatchRule{Op: flowtable.OpEQ, Index: 0, Length: 2, Data: data}
}

// routeActionRule serialises route into the SRH action's
// `(compression, length, id[length])` byte form. The FTS wire format
// caps an action's data at maxFTSData bytes (a preserved protocol
// constant, not a bug to enlarge), so a route with too many hops to
// fit is rejected rather than silently truncated onto the wire.
func routeActionRule(route srh.Route) (flowtable.ActionRule, error) {
	data := srh.EncodeRoute(route)
	if len(data) > maxFTSData {
		return flowtable.ActionRule{}, errs.Errorf(errs.KindMalformed,
			"usdn connector: route of %d hops exceeds FTS action data capacity", len(route.Nodes))
	}
	return flowtable.ActionRule{Kind: flowtable.ActionSRH, Length: len(data), Data: data}, nil
}

// TagSender prefixes raw with from's node id, the wire convention In expects.
func TagSender(from netmodel.NodeID, raw []byte) []byte {
	out := make([]byte, 2+len(raw))
	out[0] = byte(from >> 8)
	out[1] = byte(from)
	copy(out[2:], raw)
	return out
}

// NodeIDFromUDPAddr derives a node id from a UDP peer address the way
// the reference stack reads the low byte of a node's global IPv6
// address — here approximated from the address's last two octets.
func NodeIDFromUDPAddr(addr *net.UDPAddr) netmodel.NodeID {
	ip := addr.IP.To16()
	if ip == nil {
		return 0
	}
	return netmodel.NodeID(uint16(ip[14])<<8 | uint16(ip[15]))
}
