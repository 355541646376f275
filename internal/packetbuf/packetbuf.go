// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package packetbuf implements the bounded packet buffer (C3): nodes
// park a copy of an outbound packet here while a flow-table query is
// outstanding, so it can be replayed once the controller answers, or
// silently dropped if the query times out.
package packetbuf

import (
	"bytes"
	"container/list"
	"sync"
	"time"

	"github.com/mbaddeley/usdn/internal/errs"
	"github.com/mbaddeley/usdn/internal/idpool"
	"github.com/mbaddeley/usdn/internal/metrics"
)

// Packet is one buffered entry: a copy of a packet's bytes plus the
// extension-header length the source-route code needs to know about.
type Packet struct {
	ID     uint8
	Buf    []byte
	ExtLen uint8

	timer *time.Timer
}

// Buffer is a fixed-capacity pool of Packets, each with its own
// expiry timer. On timeout a packet is freed silently — there is no
// error reported to the caller, matching the original stack's
// fire-and-forget query timeout. An internal mutex serializes the
// buffer's own methods against a timer's expiry, which runs on its own
// goroutine via time.AfterFunc.
type Buffer struct {
	cap    int
	elems  *list.List
	nextID int

	mu sync.Mutex

	Metrics *metrics.Registry
}

// New creates a Buffer able to hold up to capacity packets at once.
func New(capacity int) *Buffer {
	return &Buffer{cap: capacity, elems: list.New()}
}

// SetMetrics injects the registry Allocate/Free report occupancy to.
func (b *Buffer) SetMetrics(m *metrics.Registry) {
	b.Metrics = m
}

// generateID picks the next id not already held by a buffered packet.
func (b *Buffer) generateID() uint8 {
	return idpool.Next(&b.nextID, func(id uint8) bool {
		for e := b.elems.Front(); e != nil; e = e.Next() {
			if e.Value.(*Packet).ID == id {
				return true
			}
		}
		return false
	})
}

// Allocate reserves a slot for a new packet with the given lifetime
// and returns it empty; callers fill it in with Set. Returns
// errs.KindPoolFull if the buffer is at capacity.
func (b *Buffer) Allocate(lifetime time.Duration) (*Packet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.elems.Len() >= b.cap {
		return nil, errs.New(errs.KindPoolFull, "packetbuf: buffer pool exhausted")
	}
	p := &Packet{ID: b.generateID()}
	elem := b.elems.PushBack(p)

	if lifetime > 0 {
		p.timer = time.AfterFunc(lifetime, func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.freeElem(elem)
		})
	}
	b.Metrics.SetPacketBufferInUse(b.elems.Len())
	return p, nil
}

// Set copies buf and extLen into p.
func (p *Packet) Set(buf []byte, extLen uint8) {
	cp := make([]byte, len(buf))
	copy(cp, buf)
	p.Buf = cp
	p.ExtLen = extLen
}

// Find returns the buffered packet with the given id, or nil.
func (b *Buffer) Find(id uint8) *Packet {
	b.mu.Lock()
	defer b.mu.Unlock()
	for e := b.elems.Front(); e != nil; e = e.Next() {
		p := e.Value.(*Packet)
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Contains reports whether any buffered packet's bytes match data
// exactly, or — if start and span are both non-negative — whether the
// [start, start+span) slice of some buffered packet matches data.
func (b *Buffer) Contains(data []byte, start, span int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for e := b.elems.Front(); e != nil; e = e.Next() {
		p := e.Value.(*Packet)
		if start >= 0 && span >= 0 {
			if start+span > len(p.Buf) {
				continue
			}
			if bytes.Equal(p.Buf[start:start+span], data) {
				return true
			}
			continue
		}
		if bytes.Equal(p.Buf, data) {
			return true
		}
	}
	return false
}

// Free releases p. The timer is stopped before the element is removed
// from the list, so a racing timeout callback can never act on an
// already-freed slot.
func (b *Buffer) Free(p *Packet) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for e := b.elems.Front(); e != nil; e = e.Next() {
		if e.Value.(*Packet) == p {
			b.freeElem(e)
			return
		}
	}
}

// freeElem assumes the caller already holds b.mu.
func (b *Buffer) freeElem(e *list.Element) {
	p, ok := e.Value.(*Packet)
	if !ok {
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	b.elems.Remove(e)
	b.Metrics.SetPacketBufferInUse(b.elems.Len())
}

// Len reports how many packets are currently buffered.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.elems.Len()
}
