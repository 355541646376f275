// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package controller

import (
	"context"
	"testing"
	"time"

	"github.com/mbaddeley/usdn/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

type recordingConnector struct {
	name    string
	outs    []*Response
	decodeF func(raw []byte, hops int) (*Action, error)
}

func (r *recordingConnector) Name() string { return r.name }
func (r *recordingConnector) Init() error  { return nil }
func (r *recordingConnector) In(raw []byte, hops int) (*Action, error) {
	return r.decodeF(raw, hops)
}
func (r *recordingConnector) Out(action *Action, response *Response) error {
	r.outs = append(r.outs, response)
	return nil
}

type fixedApp struct {
	typ ActionType
	out *Response
	err error
}

func (f *fixedApp) Name() string           { return "fixed" }
func (f *fixedApp) ActionType() ActionType  { return f.typ }
func (f *fixedApp) Init() error             { return nil }
func (f *fixedApp) Run(a *Action) (*Response, error) {
	return f.out, f.err
}

func runOneRoundTrip(t *testing.T, d *Dispatcher, c Connector, raw []byte) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	require.NoError(t, d.Post(c, raw, 0))
	require.Eventually(t, func() bool {
		return d.Queue.Len() == 0
	}, time.Second, time.Millisecond)
}

func TestDispatcherRoutesToRegisteredApp(t *testing.T) {
	q := NewQueue(4)
	d := NewDispatcher(q, nil)

	app := &fixedApp{typ: ActionJoin, out: &Response{Type: ActionJoin, Data: "ok"}}
	require.NoError(t, d.Register(app))

	conn := &recordingConnector{
		name: "stub",
		decodeF: func(raw []byte, hops int) (*Action, error) {
			return &Action{Type: ActionJoin, Src: 7}, nil
		},
	}

	runOneRoundTrip(t, d, conn, []byte{0})

	require.Len(t, conn.outs, 1)
	require.Equal(t, uint16(7), conn.outs[0].Dest)
	require.Equal(t, "ok", conn.outs[0].Data)
}

func TestDispatcherFallsThroughToNextApp(t *testing.T) {
	q := NewQueue(4)
	d := NewDispatcher(q, nil)

	require.NoError(t, d.Register(&fixedApp{typ: ActionRouting, out: nil}))
	require.NoError(t, d.Register(&fixedApp{typ: ActionRouting, out: &Response{Type: ActionRouting, Data: "second"}}))

	conn := &recordingConnector{
		name: "stub",
		decodeF: func(raw []byte, hops int) (*Action, error) {
			return &Action{Type: ActionRouting, Src: 1}, nil
		},
	}

	runOneRoundTrip(t, d, conn, []byte{0})

	require.Len(t, conn.outs, 1)
	require.Equal(t, "second", conn.outs[0].Data)
}

func TestDispatcherNetUpdateFallback(t *testing.T) {
	q := NewQueue(4)
	d := NewDispatcher(q, nil)

	var called bool
	d.RegisterNetUpdate(func(action *Action) { called = true })

	conn := &recordingConnector{
		name: "stub",
		decodeF: func(raw []byte, hops int) (*Action, error) {
			return &Action{Type: ActionNetUpdate, Src: 3}, nil
		},
	}

	runOneRoundTrip(t, d, conn, []byte{0})

	require.True(t, called)
	require.Empty(t, conn.outs)
}

func TestDispatcherReportsDispatchAndResponseMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewRegistry(reg)

	q := NewQueue(4)
	d := NewDispatcher(q, nil)
	d.SetMetrics(m)

	app := &fixedApp{typ: ActionJoin, out: &Response{Type: ActionJoin, Data: "ok"}}
	require.NoError(t, d.Register(app))

	conn := &recordingConnector{
		name: "stub",
		decodeF: func(raw []byte, hops int) (*Action, error) {
			return &Action{Type: ActionJoin, Src: 7}, nil
		},
	}

	runOneRoundTrip(t, d, conn, []byte{0})

	require.Equal(t, float64(1), counterValue(t, m.DispatchedActions.WithLabelValues(ActionJoin.String())))
	require.Equal(t, float64(1), counterValue(t, m.ControllerResponses.WithLabelValues(ActionJoin.String())))
}

func TestDispatcherReportsQueueDepthAfterDequeue(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewRegistry(reg)

	q := NewQueue(4)
	d := NewDispatcher(q, nil)
	d.SetMetrics(m)

	app := &fixedApp{typ: ActionJoin, out: &Response{Type: ActionJoin, Data: "ok"}}
	require.NoError(t, d.Register(app))

	conn := &recordingConnector{
		name: "stub",
		decodeF: func(raw []byte, hops int) (*Action, error) {
			return &Action{Type: ActionJoin, Src: 7}, nil
		},
	}

	runOneRoundTrip(t, d, conn, []byte{0})

	require.Equal(t, float64(0), gaugeValue(t, m.IngressQueueDepth))
}

func TestDispatcherSkipsNilAction(t *testing.T) {
	q := NewQueue(4)
	d := NewDispatcher(q, nil)

	conn := &recordingConnector{
		name: "stub",
		decodeF: func(raw []byte, hops int) (*Action, error) {
			return nil, nil
		},
	}

	runOneRoundTrip(t, d, conn, []byte{0})
	require.Empty(t, conn.outs)
}
