// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package usdn

import (
	"testing"

	"github.com/mbaddeley/usdn/internal/apps"
	"github.com/mbaddeley/usdn/internal/config"
	"github.com/mbaddeley/usdn/internal/controller"
	"github.com/mbaddeley/usdn/internal/flowtable"
	"github.com/mbaddeley/usdn/internal/netmodel"
	"github.com/mbaddeley/usdn/internal/srh"
	"github.com/stretchr/testify/require"
)

func TestConnectorInCJOIN(t *testing.T) {
	c := NewConnector(&fakeTransport{}, func(netmodel.NodeID) string { return "" }, nil)
	raw := TagSender(5, EncodeHeader(Header{Type: MsgCJOIN}))

	action, err := c.In(raw, 1)
	require.NoError(t, err)
	require.Equal(t, controller.ActionJoin, action.Type)
	require.Equal(t, uint16(5), action.Src)
}

func TestConnectorInNSU(t *testing.T) {
	c := NewConnector(&fakeTransport{}, func(netmodel.NodeID) string { return "" }, nil)
	frame := append(EncodeHeader(Header{Type: MsgNSU}), EncodeNSU(NSU{CfgID: 3, Rank: 2})...)
	raw := TagSender(7, frame)

	action, err := c.In(raw, 2)
	require.NoError(t, err)
	require.Equal(t, controller.ActionNetUpdate, action.Type)
	data := action.Data.(NetUpdateData)
	require.Equal(t, netmodel.NodeID(7), data.NodeID)
	require.Equal(t, uint8(3), data.CfgID)
}

func TestConnectorInRejectsShortFrame(t *testing.T) {
	c := NewConnector(&fakeTransport{}, nil, nil)
	_, err := c.In([]byte{0}, 0)
	require.Error(t, err)
}

func TestConnectorOutCFG(t *testing.T) {
	tr := &fakeTransport{}
	c := NewConnector(tr, func(netmodel.NodeID) string { return "node5" }, nil)

	err := c.Out(&controller.Action{}, &controller.Response{
		Dest: 5,
		Data: apps.CFGPayload{Conf: config.DefaultConfig()},
	})
	require.NoError(t, err)
	require.Len(t, tr.sent, 1)
	require.Equal(t, "node5", tr.addr[0])

	hdr, err := DecodeHeader(tr.sent[0])
	require.NoError(t, err)
	require.Equal(t, MsgCFG, hdr.Type)
}

func TestConnectorOutFTS(t *testing.T) {
	tr := &fakeTransport{}
	c := NewConnector(tr, func(netmodel.NodeID) string { return "node9" }, nil)

	err := c.Out(&controller.Action{}, &controller.Response{
		Dest: 9,
		Data: apps.RoutePayload{TxID: 2, Route: srh.Route{Cmpr: 15, Nodes: []srh.NodeID{1, 2}}},
	})
	require.NoError(t, err)
	hdr, err := DecodeHeader(tr.sent[0])
	require.NoError(t, err)
	require.Equal(t, MsgFTS, hdr.Type)

	fts, err := DecodeFTS(tr.sent[0][HeaderLen:])
	require.NoError(t, err)
	require.Equal(t, uint8(2), fts.TxID)
	require.Equal(t, flowtable.OpEQ, fts.Match.Op)
	require.Equal(t, []byte{0, 2}, fts.Match.Data)
	require.Equal(t, flowtable.ActionSRH, fts.Action.Kind)

	route, err := srh.DecodeRoute(fts.Action.Data)
	require.NoError(t, err)
	require.Equal(t, uint8(15), route.Cmpr)
	require.Equal(t, []srh.NodeID{1, 2}, route.Nodes)
}

func TestConnectorOutFTSRejectsRouteExceedingWireCapacity(t *testing.T) {
	tr := &fakeTransport{}
	c := NewConnector(tr, func(netmodel.NodeID) string { return "node9" }, nil)

	nodes := make([]srh.NodeID, 16)
	for i := range nodes {
		nodes[i] = srh.NodeID(i)
	}
	err := c.Out(&controller.Action{}, &controller.Response{
		Dest: 9,
		Data: apps.RoutePayload{TxID: 2, Route: srh.Route{Cmpr: 15, Nodes: nodes}},
	})
	require.Error(t, err)
	require.Empty(t, tr.sent)
}
