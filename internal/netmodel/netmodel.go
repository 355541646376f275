// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package netmodel is the controller's view of the network (C7): a
// bounded set of Nodes and the Links observed between them, built up
// from NETUPDATE heartbeats and routing-app link reports.
package netmodel

import (
	"net"

	"github.com/mbaddeley/usdn/internal/errs"
)

// MaxNodes bounds the graph's node set, mirroring ATOM_CONF_MAX_NODES.
const MaxNodes = 42

// MaxLinksPerNode bounds how many neighbors a single node tracks.
const MaxLinksPerNode = 8

// NotConfigured is the cfg_id a node carries before it completes a
// join handshake.
const NotConfigured = 0

// NodeID identifies a node the way the wire protocol does: the low
// byte(s) of its global address.
type NodeID uint16

// Link is one observed neighbor relationship, with the last RSSI
// reported for it.
type Link struct {
	DestID NodeID
	RSSI   int16
}

// Node is one tracked node in the network graph.
type Node struct {
	ID    NodeID
	Addr  net.IP
	CfgID uint8
	Rank  uint8
	Links []Link
}

func (n *Node) linkIndex(dest NodeID) int {
	for i := range n.Links {
		if n.Links[i].DestID == dest {
			return i
		}
	}
	return -1
}

// Graph is the controller's bounded network model: a fixed-capacity
// set of Nodes, each with a fixed-capacity set of Links.
type Graph struct {
	nodes    map[NodeID]*Node
	maxNodes int
	maxLinks int
}

// NewGraph creates an empty Graph bounded at maxNodes nodes, each
// holding up to maxLinks links.
func NewGraph(maxNodes, maxLinks int) *Graph {
	return &Graph{
		nodes:    make(map[NodeID]*Node),
		maxNodes: maxNodes,
		maxLinks: maxLinks,
	}
}

func (g *Graph) allocate(id NodeID) (*Node, error) {
	if len(g.nodes) >= g.maxNodes {
		return nil, errs.New(errs.KindPoolFull, "netmodel: node table full")
	}
	n := &Node{ID: id}
	g.nodes[id] = n
	return n, nil
}

// Node returns the tracked node with id, or nil if none exists.
func (g *Graph) Node(id NodeID) *Node {
	return g.nodes[id]
}

// Len reports how many nodes are tracked.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Heartbeat records that id is alive at addr, creating the node entry
// if this is the first time it has been seen. It never touches cfg_id
// or rank — those only change via Update.
func (g *Graph) Heartbeat(id NodeID, addr net.IP) (*Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		var err error
		n, err = g.allocate(id)
		if err != nil {
			return nil, err
		}
	}
	if addr != nil {
		n.Addr = addr
	}
	return n, nil
}

// Update records a node's configuration id and rank, creating the node
// if it is not already tracked.
func (g *Graph) Update(id NodeID, addr net.IP, cfgID, rank uint8) (*Node, error) {
	n, err := g.Heartbeat(id, addr)
	if err != nil {
		return nil, err
	}
	n.CfgID = cfgID
	n.Rank = rank
	return n, nil
}

// LinkUpdate records that src observed a neighbor relationship with
// dest at the given RSSI, creating a shell node for dest (id only, no
// address) if dest hasn't been heard from directly yet. Unlike the
// reference implementation's commented-out rssi assignment, the
// reported RSSI is always stored — it's what a routing app uses to
// pick a shortest path.
func (g *Graph) LinkUpdate(src, dest NodeID, rssi int16) (*Link, error) {
	srcNode, ok := g.nodes[src]
	if !ok {
		return nil, errs.Attr(errs.New(errs.KindNotConfigured, "netmodel: unknown src node"), "src", src)
	}
	if _, ok := g.nodes[dest]; !ok {
		if _, err := g.allocate(dest); err != nil {
			return nil, err
		}
	}

	if i := srcNode.linkIndex(dest); i >= 0 {
		srcNode.Links[i].RSSI = rssi
		return &srcNode.Links[i], nil
	}
	if len(srcNode.Links) >= g.maxLinks {
		return nil, errs.Attr(errs.New(errs.KindPoolFull, "netmodel: link table full"), "src", src)
	}
	srcNode.Links = append(srcNode.Links, Link{DestID: dest, RSSI: rssi})
	return &srcNode.Links[len(srcNode.Links)-1], nil
}

// Neighbors returns the ids src has reported links to.
func (g *Graph) Neighbors(src NodeID) []NodeID {
	n, ok := g.nodes[src]
	if !ok {
		return nil
	}
	out := make([]NodeID, len(n.Links))
	for i, l := range n.Links {
		out[i] = l.DestID
	}
	return out
}
