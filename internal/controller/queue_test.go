// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package controller

import (
	"testing"

	"github.com/mbaddeley/usdn/internal/errs"
	"github.com/stretchr/testify/require"
)

type stubConnector struct{ name string }

func (s *stubConnector) Name() string { return s.name }
func (s *stubConnector) Init() error  { return nil }
func (s *stubConnector) In(raw []byte, hops int) (*Action, error) {
	return &Action{Type: ActionJoin, Src: uint16(raw[0])}, nil
}
func (s *stubConnector) Out(action *Action, response *Response) error { return nil }

func TestQueueAddHeadRemove(t *testing.T) {
	q := NewQueue(2)
	c := &stubConnector{name: "usdn"}

	require.NoError(t, q.Add(c, []byte{1}, 0))
	require.Equal(t, 1, q.Len())

	m := q.Head()
	require.NotNil(t, m)
	require.Equal(t, c, m.connector)

	q.Remove()
	require.Equal(t, 0, q.Len())
}

func TestQueueAddPoolFull(t *testing.T) {
	q := NewQueue(1)
	c := &stubConnector{name: "usdn"}

	require.NoError(t, q.Add(c, []byte{1}, 0))
	err := q.Add(c, []byte{2}, 0)
	require.Error(t, err)
	require.Equal(t, errs.KindPoolFull, errs.GetKind(err))
}

func TestQueueRemoveOnEmptyIsNoop(t *testing.T) {
	q := NewQueue(1)
	q.Remove()
	require.Equal(t, 0, q.Len())
}

func TestQueueHeadOnEmptyReturnsNil(t *testing.T) {
	q := NewQueue(1)
	require.Nil(t, q.Head())
}

func TestGenerateIDSkipsIDsStillInUseAcrossWraparound(t *testing.T) {
	q := NewQueue(2)
	c := &stubConnector{name: "usdn"}

	require.NoError(t, q.Add(c, []byte{1}, 0))
	firstID := q.Head().id

	for i := 0; i < 300; i++ {
		require.NoError(t, q.Add(c, []byte{2}, 0))
		require.NotEqual(t, firstID, q.elems.Back().Value.(*message).id)
		q.elems.Remove(q.elems.Back())
	}
}

func TestQueuePreservesFIFOOrder(t *testing.T) {
	q := NewQueue(3)
	c := &stubConnector{name: "usdn"}
	require.NoError(t, q.Add(c, []byte{1}, 0))
	require.NoError(t, q.Add(c, []byte{2}, 0))

	require.Equal(t, byte(1), q.Head().raw[0])
	q.Remove()
	require.Equal(t, byte(2), q.Head().raw[0])
}
