// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes the stack's ambient Prometheus counters and
// gauges: flow-table hit/miss/pool-exhaustion rates, packet buffer
// occupancy, ingress queue depth, and controller dispatch counts.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every metric the stack exports, so callers
// construct one and pass it down instead of reaching into global
// package state.
type Registry struct {
	FlowTableHits       *prometheus.CounterVec
	FlowTableMisses     prometheus.Counter
	PoolExhausted       *prometheus.CounterVec
	PacketBufferInUse   prometheus.Gauge
	IngressQueueDepth   prometheus.Gauge
	DispatchedActions   *prometheus.CounterVec
	ControllerResponses *prometheus.CounterVec
}

// NewRegistry constructs a Registry and registers every metric against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		FlowTableHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "usdn",
			Subsystem: "flowtable",
			Name:      "hits_total",
			Help:      "Flow table entries matched, by action kind.",
		}, []string{"action"}),
		FlowTableMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "usdn",
			Subsystem: "flowtable",
			Name:      "misses_total",
			Help:      "Packets that matched no flow table entry.",
		}),
		PoolExhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "usdn",
			Name:      "pool_exhausted_total",
			Help:      "Bounded pool allocation failures, by pool name.",
		}, []string{"pool"}),
		PacketBufferInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "usdn",
			Subsystem: "packetbuf",
			Name:      "entries_in_use",
			Help:      "Buffered packets currently held awaiting a flow table decision.",
		}),
		IngressQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "usdn",
			Subsystem: "controller",
			Name:      "ingress_queue_depth",
			Help:      "Messages currently queued for the controller dispatcher.",
		}),
		DispatchedActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "usdn",
			Subsystem: "controller",
			Name:      "dispatched_actions_total",
			Help:      "Actions dispatched to a controller app, by action type.",
		}, []string{"action_type"}),
		ControllerResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "usdn",
			Subsystem: "controller",
			Name:      "responses_total",
			Help:      "Responses sent by a southbound connector, by action type.",
		}, []string{"action_type"}),
	}

	reg.MustRegister(
		r.FlowTableHits,
		r.FlowTableMisses,
		r.PoolExhausted,
		r.PacketBufferInUse,
		r.IngressQueueDepth,
		r.DispatchedActions,
		r.ControllerResponses,
	)
	return r
}

// ObservePoolFull increments the exhaustion counter for the named pool.
// Callers pass this to the packages that return errs.KindPoolFull so a
// full flow table, packet buffer, or ingress queue shows up as a rate,
// not just a returned error.
func (r *Registry) ObservePoolFull(pool string) {
	if r == nil {
		return
	}
	r.PoolExhausted.WithLabelValues(pool).Inc()
}

// ObserveFlowTableHit increments the hit counter for the action kind
// that fired.
func (r *Registry) ObserveFlowTableHit(action string) {
	if r == nil {
		return
	}
	r.FlowTableHits.WithLabelValues(action).Inc()
}

// ObserveFlowTableMiss increments the miss counter.
func (r *Registry) ObserveFlowTableMiss() {
	if r == nil {
		return
	}
	r.FlowTableMisses.Inc()
}

// SetPacketBufferInUse reports the packet buffer's current occupancy.
func (r *Registry) SetPacketBufferInUse(n int) {
	if r == nil {
		return
	}
	r.PacketBufferInUse.Set(float64(n))
}

// SetIngressQueueDepth reports the controller ingress queue's current depth.
func (r *Registry) SetIngressQueueDepth(n int) {
	if r == nil {
		return
	}
	r.IngressQueueDepth.Set(float64(n))
}

// ObserveDispatchedAction increments the dispatched-action counter for
// the given action type.
func (r *Registry) ObserveDispatchedAction(actionType string) {
	if r == nil {
		return
	}
	r.DispatchedActions.WithLabelValues(actionType).Inc()
}

// ObserveControllerResponse increments the controller-response counter
// for the given action type.
func (r *Registry) ObserveControllerResponse(actionType string) {
	if r == nil {
		return
	}
	r.ControllerResponses.WithLabelValues(actionType).Inc()
}
