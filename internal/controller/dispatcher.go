// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package controller

import (
	"context"
	"sync"

	"github.com/mbaddeley/usdn/internal/logging"
	"github.com/mbaddeley/usdn/internal/metrics"
)

// NetUpdateHandler applies a NETUPDATE action directly, bypassing the
// app matrix the way the reference dispatcher short-circuits
// NETUPDATE even when no app is registered for it.
type NetUpdateHandler func(action *Action)

// Dispatcher owns the ingress Queue and the apps registered against
// each ActionType. It runs as a single goroutine so no two app Run
// calls, and no app Run concurrent with a connector's In/Out, ever
// execute at once — the same single-threaded guarantee the embedded
// original gets for free from its cooperative process model.
type Dispatcher struct {
	Queue *Queue
	Log   *logging.Logger

	apps      map[ActionType][]App
	netUpdate NetUpdateHandler

	Metrics *metrics.Registry

	poke chan struct{}
	wg   sync.WaitGroup
}

// SetMetrics injects the registry dispatch reports queue depth and
// dispatch/response counts to.
func (d *Dispatcher) SetMetrics(m *metrics.Registry) {
	d.Metrics = m
}

// NewDispatcher creates a Dispatcher over queue.
func NewDispatcher(queue *Queue, log *logging.Logger) *Dispatcher {
	return &Dispatcher{
		Queue: queue,
		Log:   log,
		apps:  make(map[ActionType][]App),
		poke:  make(chan struct{}, 1),
	}
}

// Register adds app to the list consulted for its ActionType, in
// registration order — the first app to return a non-nil Response wins.
func (d *Dispatcher) Register(app App) error {
	if err := app.Init(); err != nil {
		return err
	}
	d.apps[app.ActionType()] = append(d.apps[app.ActionType()], app)
	return nil
}

// RegisterNetUpdate installs the built-in NETUPDATE handler.
func (d *Dispatcher) RegisterNetUpdate(h NetUpdateHandler) {
	d.netUpdate = h
}

// Post enqueues raw from connector c and wakes the dispatcher, mirroring
// atom_post's "copy to queue, then poll" sequence.
func (d *Dispatcher) Post(c Connector, raw []byte, hops int) error {
	if err := d.Queue.Add(c, raw, hops); err != nil {
		return err
	}
	select {
	case d.poke <- struct{}{}:
	default:
	}
	return nil
}

// Run drains the queue until ctx is cancelled: on each poke it
// dispatches messages one at a time, re-checking for more work after
// each, until the queue is empty — mirroring the PROCESS_EVENT_POLL
// loop's "drain everything already queued" behavior.
// The depth gauge is updated after Remove, so it reports how many
// messages are genuinely still waiting, not counting the one just
// dispatched.
func (d *Dispatcher) Run(ctx context.Context) {
	d.wg.Add(1)
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.poke:
			for {
				m := d.Queue.Head()
				if m == nil {
					break
				}
				d.dispatch(m)
				d.Queue.Remove()
				d.Metrics.SetIngressQueueDepth(d.Queue.Len())
			}
		}
	}
}

// Wait blocks until Run has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) dispatch(m *message) {
	action, err := m.connector.In(m.raw, m.hops)
	if err != nil {
		if d.Log != nil {
			d.Log.Errf("dispatch: decode from %s failed: %v", m.connector.Name(), err)
		}
		return
	}
	if action == nil {
		return
	}

	apps := d.apps[action.Type]
	var response *Response
	for _, app := range apps {
		d.Metrics.ObserveDispatchedAction(action.Type.String())
		r, err := app.Run(action)
		if err != nil {
			if d.Log != nil {
				d.Log.Errf("dispatch: app %s failed: %v", app.Name(), err)
			}
			continue
		}
		if r != nil {
			response = r
			break
		}
	}

	if response != nil {
		response.Dest = action.Src
		if err := m.connector.Out(action, response); err != nil && d.Log != nil {
			d.Log.Errf("dispatch: out via %s failed: %v", m.connector.Name(), err)
		} else if err == nil {
			d.Metrics.ObserveControllerResponse(action.Type.String())
		}
		return
	}

	if len(apps) == 0 && action.Type == ActionNetUpdate && d.netUpdate != nil {
		d.netUpdate(action)
	}
}
