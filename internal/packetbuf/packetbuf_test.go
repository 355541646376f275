// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package packetbuf

import (
	"testing"
	"time"

	"github.com/mbaddeley/usdn/internal/errs"
	"github.com/mbaddeley/usdn/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestAllocateSetFind(t *testing.T) {
	b := New(4)
	p, err := b.Allocate(0)
	require.NoError(t, err)
	p.Set([]byte{1, 2, 3, 4}, 0)

	found := b.Find(p.ID)
	require.NotNil(t, found)
	require.Equal(t, []byte{1, 2, 3, 4}, found.Buf)
}

func TestAllocatePoolFull(t *testing.T) {
	b := New(1)
	_, err := b.Allocate(0)
	require.NoError(t, err)

	_, err = b.Allocate(0)
	require.Error(t, err)
	require.Equal(t, errs.KindPoolFull, errs.GetKind(err))
}

func TestContainsWholeAndRange(t *testing.T) {
	b := New(2)
	p, err := b.Allocate(0)
	require.NoError(t, err)
	p.Set([]byte{0xaa, 0xbb, 0xcc, 0xdd}, 0)

	require.True(t, b.Contains([]byte{0xaa, 0xbb, 0xcc, 0xdd}, -1, -1))
	require.True(t, b.Contains([]byte{0xbb, 0xcc}, 1, 2))
	require.False(t, b.Contains([]byte{0xff}, 0, 1))
}

func TestFreeStopsTimerBeforeRemoving(t *testing.T) {
	b := New(2)
	p, err := b.Allocate(time.Hour)
	require.NoError(t, err)
	b.Free(p)
	require.Equal(t, 0, b.Len())
	require.Nil(t, b.Find(p.ID))
}

func TestAllocateAndFreeReportOccupancy(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewRegistry(reg)

	b := New(2)
	b.SetMetrics(m)

	p, err := b.Allocate(0)
	require.NoError(t, err)
	require.Equal(t, float64(1), gaugeValue(t, m.PacketBufferInUse))

	b.Free(p)
	require.Equal(t, float64(0), gaugeValue(t, m.PacketBufferInUse))
}

func TestGenerateIDSkipsIDsStillInUseAcrossWraparound(t *testing.T) {
	b := New(2)
	p1, err := b.Allocate(0)
	require.NoError(t, err)

	for i := 0; i < 300; i++ {
		p2, err := b.Allocate(0)
		require.NoError(t, err)
		require.NotEqual(t, p1.ID, p2.ID)
		b.Free(p2)
	}
}

func TestPacketTimesOutSilently(t *testing.T) {
	b := New(2)
	_, err := b.Allocate(10 * time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 1, b.Len())

	require.Eventually(t, func() bool {
		return b.Len() == 0
	}, time.Second, 5*time.Millisecond)
}
