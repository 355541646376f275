// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package apps

import (
	"github.com/mbaddeley/usdn/internal/controller"
	"github.com/mbaddeley/usdn/internal/errs"
	"github.com/mbaddeley/usdn/internal/logging"
	"github.com/mbaddeley/usdn/internal/netmodel"
	"github.com/mbaddeley/usdn/internal/srh"
)

// RoutingData is the Action.Data payload for an ActionRouting event:
// a request to find a path from Src to Dest.
type RoutingData struct {
	TxID uint8
	Src  netmodel.NodeID
	Dest netmodel.NodeID
}

// RoutePayload is what a routing app hands back: a source route ready
// to hand to the SRH encoder.
type RoutePayload struct {
	TxID  uint8
	Route srh.Route
}

// srhCompression is hardcoded to 15 (15 bytes elided, so each hop is
// carried as its last address byte only) the way the reference
// shortest-path app always does.
const srhCompression = 15

// ShortestPathApp finds a path between two nodes by exhaustive depth
// first search over the tracked network graph, picking the first path
// found no longer than any path already found.
type ShortestPathApp struct {
	Graph *netmodel.Graph
	Log   *logging.Logger
}

// NewShortestPathApp constructs a ShortestPathApp over graph.
func NewShortestPathApp(graph *netmodel.Graph, log *logging.Logger) *ShortestPathApp {
	return &ShortestPathApp{Graph: graph, Log: log}
}

func (s *ShortestPathApp) Name() string                      { return "SP Routing" }
func (s *ShortestPathApp) ActionType() controller.ActionType { return controller.ActionRouting }

func (s *ShortestPathApp) Init() error {
	if s.Log != nil {
		s.Log.Dbgf("shortest path routing app initialised")
	}
	return nil
}

// dfs performs the same recursive, stack-tracking search as the
// reference implementation: push the current node, recurse into
// unvisited neighbors, and whenever the destination is reached compare
// the current stack length against the best path found so far.
func (s *ShortestPathApp) dfs(current, dest netmodel.NodeID, stack []netmodel.NodeID, visited map[netmodel.NodeID]bool, best *[]netmodel.NodeID) {
	stack = append(stack, current)
	visited[current] = true
	defer delete(visited, current)

	if current == dest {
		if *best == nil || len(stack) <= len(*best) {
			cp := make([]netmodel.NodeID, len(stack))
			copy(cp, stack)
			*best = cp
		}
		return
	}

	for _, nb := range s.Graph.Neighbors(current) {
		if visited[nb] {
			continue
		}
		if s.Graph.Node(nb) == nil {
			continue
		}
		s.dfs(nb, dest, stack, visited, best)
	}
}

// Run handles one ActionRouting event: find the shortest hop path from
// data.Src to data.Dest and return it as an SRH-ready Route. Returns
// errs.KindNoRoute if no path exists.
func (s *ShortestPathApp) Run(action *controller.Action) (*controller.Response, error) {
	data, ok := action.Data.(RoutingData)
	if !ok {
		return nil, nil
	}

	if s.Graph.Node(data.Src) == nil || s.Graph.Node(data.Dest) == nil {
		return nil, errs.New(errs.KindNoRoute, "routing_sp: unknown src or dest node")
	}

	var best []netmodel.NodeID
	s.dfs(data.Src, data.Dest, nil, make(map[netmodel.NodeID]bool), &best)
	if best == nil {
		return nil, errs.New(errs.KindNoRoute, "routing_sp: no path between nodes")
	}

	nodes := make([]srh.NodeID, len(best))
	for i, n := range best {
		nodes[i] = srh.NodeID(n)
	}

	return &controller.Response{
		Type: controller.ActionRouting,
		Dest: uint16(data.Src),
		Data: RoutePayload{
			TxID:  data.TxID,
			Route: srh.Route{Cmpr: srhCompression, Nodes: nodes},
		},
	}, nil
}
