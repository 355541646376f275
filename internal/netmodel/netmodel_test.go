// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netmodel

import (
	"net"
	"testing"

	"github.com/mbaddeley/usdn/internal/errs"
	"github.com/stretchr/testify/require"
)

func TestHeartbeatCreatesNode(t *testing.T) {
	g := NewGraph(4, 4)
	n, err := g.Heartbeat(1, net.ParseIP("fd00::1"))
	require.NoError(t, err)
	require.Equal(t, NodeID(1), n.ID)
	require.Equal(t, 1, g.Len())
}

func TestHeartbeatIsIdempotent(t *testing.T) {
	g := NewGraph(4, 4)
	_, err := g.Heartbeat(1, net.ParseIP("fd00::1"))
	require.NoError(t, err)
	_, err = g.Heartbeat(1, net.ParseIP("fd00::1"))
	require.NoError(t, err)
	require.Equal(t, 1, g.Len())
}

func TestUpdateSetsCfgAndRank(t *testing.T) {
	g := NewGraph(4, 4)
	n, err := g.Update(1, nil, 7, 3)
	require.NoError(t, err)
	require.Equal(t, uint8(7), n.CfgID)
	require.Equal(t, uint8(3), n.Rank)
}

func TestNodeTableFullReturnsPoolFull(t *testing.T) {
	g := NewGraph(1, 4)
	_, err := g.Heartbeat(1, nil)
	require.NoError(t, err)
	_, err = g.Heartbeat(2, nil)
	require.Error(t, err)
	require.Equal(t, errs.KindPoolFull, errs.GetKind(err))
}

func TestLinkUpdateCreatesShellDestNode(t *testing.T) {
	g := NewGraph(4, 4)
	_, err := g.Heartbeat(1, nil)
	require.NoError(t, err)

	l, err := g.LinkUpdate(1, 2, -40)
	require.NoError(t, err)
	require.Equal(t, int16(-40), l.RSSI)
	require.Equal(t, 2, g.Len())

	dest := g.Node(2)
	require.NotNil(t, dest)
	require.Nil(t, dest.Addr)
}

func TestLinkUpdateOnUnknownSrcFails(t *testing.T) {
	g := NewGraph(4, 4)
	_, err := g.LinkUpdate(1, 2, -40)
	require.Error(t, err)
	require.Equal(t, errs.KindNotConfigured, errs.GetKind(err))
}

func TestLinkUpdateRefreshesExistingLinkRSSI(t *testing.T) {
	g := NewGraph(4, 4)
	_, _ = g.Heartbeat(1, nil)
	_, err := g.LinkUpdate(1, 2, -40)
	require.NoError(t, err)
	l, err := g.LinkUpdate(1, 2, -55)
	require.NoError(t, err)
	require.Equal(t, int16(-55), l.RSSI)
	require.Len(t, g.Node(1).Links, 1)
}

func TestLinkUpdateRespectsMaxLinksPerNode(t *testing.T) {
	g := NewGraph(8, 1)
	_, _ = g.Heartbeat(1, nil)
	_, err := g.LinkUpdate(1, 2, -40)
	require.NoError(t, err)
	_, err = g.LinkUpdate(1, 3, -40)
	require.Error(t, err)
	require.Equal(t, errs.KindPoolFull, errs.GetKind(err))
}

func TestNeighbors(t *testing.T) {
	g := NewGraph(8, 4)
	_, _ = g.Heartbeat(1, nil)
	_, _ = g.LinkUpdate(1, 2, -40)
	_, _ = g.LinkUpdate(1, 3, -50)
	require.ElementsMatch(t, []NodeID{2, 3}, g.Neighbors(1))
}
