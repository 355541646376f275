// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package apps implements the controller applications that run atop
// the dispatcher (C7): join/configuration handshake and shortest-path
// routing, plus an RPL-derived routing variant.
package apps

import (
	"math/rand"
	"net"
	"time"

	"github.com/mbaddeley/usdn/internal/config"
	"github.com/mbaddeley/usdn/internal/controller"
	"github.com/mbaddeley/usdn/internal/logging"
	"github.com/mbaddeley/usdn/internal/netmodel"
)

// JoinData is the Action.Data payload a southbound connector supplies
// for an ActionJoin event.
type JoinData struct {
	NodeID netmodel.NodeID
	Addr   net.IP
}

// CFGPayload is what JoinApp hands back in a Response for a node that
// needs configuring.
type CFGPayload struct {
	Conf config.Record
}

// Timer is the subset of the engine's timer abstraction JoinApp needs
// to re-arm a per-node handshake retry.
type Timer interface {
	Start(d time.Duration, fn func())
	Stop()
	Reset(d time.Duration)
}

// NewTimerFunc constructs a fresh Timer for one node's handshake.
type NewTimerFunc func() Timer

type handshake struct {
	timer   Timer
	nTries  int
}

// JoinApp is the join and configuration application: the first time a
// node is heard from it is sent a CFG response, and a bounded number
// of retries are attempted (config.MaxCfgTries) until the node reports
// a non-zero cfg_id via a later NETUPDATE.
type JoinApp struct {
	Graph    *netmodel.Graph
	Conf     config.Record
	Log      *logging.Logger
	NewTimer NewTimerFunc
	// Resend is invoked by the handshake timer to push another CFG
	// response to a node that hasn't yet acked. dest is the node id to
	// address it to.
	Resend func(dest netmodel.NodeID, payload CFGPayload)

	handshakes map[netmodel.NodeID]*handshake
}

// NewJoinApp constructs a JoinApp over graph, sending the given
// configuration record to newly joined nodes.
func NewJoinApp(graph *netmodel.Graph, conf config.Record, newTimer NewTimerFunc, resend func(netmodel.NodeID, CFGPayload), log *logging.Logger) *JoinApp {
	return &JoinApp{
		Graph:      graph,
		Conf:       conf,
		Log:        log,
		NewTimer:   newTimer,
		Resend:     resend,
		handshakes: make(map[netmodel.NodeID]*handshake),
	}
}

func (j *JoinApp) Name() string                    { return "Join + Configuration" }
func (j *JoinApp) ActionType() controller.ActionType { return controller.ActionJoin }

func (j *JoinApp) Init() error {
	if j.Log != nil {
		j.Log.Dbgf("join app initialised")
	}
	return nil
}

func (j *JoinApp) handleTimeout(id netmodel.NodeID) {
	node := j.Graph.Node(id)
	hs, ok := j.handshakes[id]
	if node == nil || !ok {
		return
	}
	if node.CfgID == 0 && hs.nTries < config.MaxCfgTries {
		hs.nTries++
		hs.timer.Reset(handshakeDelay())
		if j.Resend != nil {
			j.Resend(id, CFGPayload{Conf: j.Conf})
		}
		return
	}
	hs.timer.Stop()
	delete(j.handshakes, id)
}

// handshakeDelay mirrors ATOM_RANDOM_CFG_HS_DELAY's 10-15s window.
func handshakeDelay() time.Duration {
	return 10*time.Second + time.Duration(rand.Int63n(int64(5*time.Second)))
}

// Run handles one ActionJoin event: a node heartbeat. If this is the
// first time the node has been seen (cfg_id still zero), it is sent a
// CFG response and a handshake retry timer is armed; a node that has
// already completed configuration gets no response.
func (j *JoinApp) Run(action *controller.Action) (*controller.Response, error) {
	data, ok := action.Data.(JoinData)
	if !ok {
		return nil, nil
	}

	node, err := j.Graph.Heartbeat(data.NodeID, data.Addr)
	if err != nil {
		return nil, err
	}

	if node.CfgID != 0 {
		return nil, nil
	}

	if _, exists := j.handshakes[node.ID]; !exists {
		hs := &handshake{nTries: 1}
		if j.NewTimer != nil {
			hs.timer = j.NewTimer()
			id := node.ID
			hs.timer.Start(handshakeDelay(), func() { j.handleTimeout(id) })
		}
		j.handshakes[node.ID] = hs
	}

	return &controller.Response{
		Type: controller.ActionJoin,
		Dest: uint16(node.ID),
		Data: CFGPayload{Conf: j.Conf},
	}, nil
}
