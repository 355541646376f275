// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package controller

import (
	"container/list"

	"github.com/mbaddeley/usdn/internal/errs"
	"github.com/mbaddeley/usdn/internal/idpool"
)

// message is one queued ingress item: the raw bytes a connector
// posted, which connector it came from, and the hop count observed on
// the wire (for STAT logging once it's dispatched).
type message struct {
	id        uint8
	connector Connector
	raw       []byte
	hops      int
}

// Queue is the bounded FIFO every southbound connector posts onto.
// It is drained by exactly one dispatcher goroutine, so no internal
// locking is needed beyond what the caller already serializes through.
type Queue struct {
	cap    int
	elems  *list.List
	nextID int
}

// NewQueue creates a Queue able to hold up to capacity messages.
func NewQueue(capacity int) *Queue {
	return &Queue{cap: capacity, elems: list.New()}
}

// generateID picks the next id not already held by a queued message.
func (q *Queue) generateID() uint8 {
	return idpool.Next(&q.nextID, func(id uint8) bool {
		for e := q.elems.Front(); e != nil; e = e.Next() {
			if e.Value.(*message).id == id {
				return true
			}
		}
		return false
	})
}

// Add enqueues raw, tagged with its source connector and observed hop
// count. Returns errs.KindPoolFull if the queue is at capacity.
func (q *Queue) Add(c Connector, raw []byte, hops int) error {
	if q.elems.Len() >= q.cap {
		return errs.New(errs.KindPoolFull, "controller: ingress queue full")
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	q.elems.PushBack(&message{id: q.generateID(), connector: c, raw: cp, hops: hops})
	return nil
}

// Head returns the oldest queued message without removing it, or nil
// if the queue is empty.
func (q *Queue) Head() *message {
	e := q.elems.Front()
	if e == nil {
		return nil
	}
	return e.Value.(*message)
}

// Remove drops the oldest queued message. It is a no-op on an empty queue.
func (q *Queue) Remove() {
	e := q.elems.Front()
	if e != nil {
		q.elems.Remove(e)
	}
}

// Len reports how many messages are currently queued.
func (q *Queue) Len() int {
	return q.elems.Len()
}
