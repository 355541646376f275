// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package apps

import (
	"github.com/mbaddeley/usdn/internal/controller"
	"github.com/mbaddeley/usdn/internal/errs"
	"github.com/mbaddeley/usdn/internal/logging"
	"github.com/mbaddeley/usdn/internal/netmodel"
	"github.com/mbaddeley/usdn/internal/srh"
)

// RPLStore is the minimal view of a non-storing RPL DAG a routing app
// needs: parent pointers and the DAG root, as learned from DAO
// messages by the RPL southbound connector. Real RPL DAG bookkeeping
// is out of scope here; this is the seam a connector fills in.
type RPLStore interface {
	Root(node netmodel.NodeID) (netmodel.NodeID, bool)
	Parent(node netmodel.NodeID) (netmodel.NodeID, bool)
	Reachable(node netmodel.NodeID) bool
}

// RPLRoutingApp derives a source route for an ActionRouting event from
// RPL non-storing parent pointers: walk src up to the DAG root, walk
// dest up to the root, then splice (src..root) with the reverse of
// (dest..root) minus the root itself, the way the reference
// implementation builds its route array.
type RPLRoutingApp struct {
	Store RPLStore
	Log   *logging.Logger
}

// NewRPLRoutingApp constructs an RPLRoutingApp over store.
func NewRPLRoutingApp(store RPLStore, log *logging.Logger) *RPLRoutingApp {
	return &RPLRoutingApp{Store: store, Log: log}
}

func (r *RPLRoutingApp) Name() string                      { return "RPL Routing" }
func (r *RPLRoutingApp) ActionType() controller.ActionType { return controller.ActionRouting }

func (r *RPLRoutingApp) Init() error {
	if r.Log != nil {
		r.Log.Infof("RPL routing app initialised")
	}
	return nil
}

func (r *RPLRoutingApp) pathToRoot(node, root netmodel.NodeID) ([]netmodel.NodeID, bool) {
	path := []netmodel.NodeID{node}
	cur := node
	for cur != root {
		parent, ok := r.Store.Parent(cur)
		if !ok {
			return nil, false
		}
		path = append(path, parent)
		cur = parent
	}
	return path, true
}

// Run handles one ActionRouting event using RPL parent pointers.
func (r *RPLRoutingApp) Run(action *controller.Action) (*controller.Response, error) {
	data, ok := action.Data.(RoutingData)
	if !ok {
		return nil, nil
	}

	if !r.Store.Reachable(data.Src) || !r.Store.Reachable(data.Dest) {
		return nil, errs.New(errs.KindNoRoute, "routing_rpl: node unreachable in dag")
	}

	root, ok := r.Store.Root(data.Dest)
	if !ok {
		return nil, errs.New(errs.KindNoRoute, "routing_rpl: no dag for destination")
	}

	upPath, ok := r.pathToRoot(data.Src, root)
	if !ok {
		return nil, errs.New(errs.KindNoRoute, "routing_rpl: src not attached to root")
	}
	downPath, ok := r.pathToRoot(data.Dest, root)
	if !ok {
		return nil, errs.New(errs.KindNoRoute, "routing_rpl: dest not attached to root")
	}

	// upPath is [src, ..., root]; downPath is [dest, ..., root].
	// Full route: src..root (inclusive) followed by root's children
	// back down to dest, i.e. downPath reversed with root dropped.
	nodes := make([]srh.NodeID, 0, len(upPath)+len(downPath)-1)
	for _, n := range upPath {
		nodes = append(nodes, srh.NodeID(n))
	}
	for i := len(downPath) - 2; i >= 0; i-- {
		nodes = append(nodes, srh.NodeID(downPath[i]))
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
