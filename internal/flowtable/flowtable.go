// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package flowtable implements the in-node flow table (C2): an ordered
// list of match/action entries, plus a fast-path whitelist, each
// backed by a fixed-capacity pool. A Table's own mutating methods
// serialize against each other with an internal mutex; the only
// concurrent caller in practice is a timed-out entry's expiry, which
// runs on its own goroutine via time.AfterFunc.
package flowtable

import (
	"bytes"
	"container/list"
	"sync"
	"time"

	"github.com/mbaddeley/usdn/internal/errs"
	"github.com/mbaddeley/usdn/internal/idpool"
	"github.com/mbaddeley/usdn/internal/metrics"
)

// Operator is the comparison applied between a match rule's bytes and
// the packet bytes at the same offset.
type Operator int

const (
	OpEQ Operator = iota
	OpLTEQ
	OpGTEQ
	OpNEQ
	OpLT
	OpGT
)

// ActionKind enumerates what an action rule does once its entry matches.
type ActionKind int

const (
	ActionAccept ActionKind = iota
	ActionDrop
	ActionQuery
	ActionForward
	ActionModify
	ActionFallback
	ActionSRH
	ActionCallback
)

// String names an ActionKind for use as a metrics label value.
func (k ActionKind) String() string {
	switch k {
	case ActionAccept:
		return "accept"
	case ActionDrop:
		return "drop"
	case ActionQuery:
		return "query"
	case ActionForward:
		return "forward"
	case ActionModify:
		return "modify"
	case ActionFallback:
		return "fallback"
	case ActionSRH:
		return "srh"
	case ActionCallback:
		return "callback"
	default:
		return "unknown"
	}
}

// Verdict is the outcome of checking a packet against a table.
type Verdict int

const (
	VerdictAccept Verdict = iota
	VerdictDrop
	VerdictNoMatch
	VerdictContinue
)

// MatchRule compares Length bytes of packet data starting at Index
// (plus the packet's extension-header length, if NeedsExtOffset) to
// Data, using Op.
type MatchRule struct {
	Op             Operator
	Index          int
	Length         int
	NeedsExtOffset bool
	Data           []byte
}

// NewMatch builds a MatchRule, copying data so later mutation by the
// caller can't corrupt an installed entry.
func NewMatch(op Operator, index, length int, needsExtOffset bool, data []byte) *MatchRule {
	cp := make([]byte, len(data))
	copy(cp, data)
	return &MatchRule{Op: op, Index: index, Length: length, NeedsExtOffset: needsExtOffset, Data: cp}
}

// Matches reports whether buf (with the packet's extension length
// extLen) satisfies m.
func (m *MatchRule) Matches(buf []byte, extLen int) bool {
	offset := m.Index
	if m.NeedsExtOffset {
		offset += extLen
	}
	if offset < 0 || offset+m.Length > len(buf) {
		return false
	}
	cmp := bytes.Compare(buf[offset:offset+m.Length], m.Data)
	switch m.Op {
	case OpEQ:
		return cmp == 0
	case OpLTEQ:
		return cmp <= 0
	case OpGTEQ:
		return cmp >= 0
	case OpNEQ:
		return cmp != 0
	case OpLT:
		return cmp < 0
	case OpGT:
		return cmp > 0
	default:
		return false
	}
}

// ActionRule carries the parameters an ActionHandler needs to perform
// an action once its entry's match has fired: a forwarding address, an
// SRH route, a callback pointer, or nothing at all for ACCEPT/DROP.
type ActionRule struct {
	Kind   ActionKind
	Index  int
	Length int
	Data   []byte
}

// NewAction builds an ActionRule, copying data.
func NewAction(kind ActionKind, index, length int, data []byte) *ActionRule {
	cp := make([]byte, len(data))
	copy(cp, data)
	return &ActionRule{Kind: kind, Index: index, Length: length, Data: cp}
}

// ActionHandler performs the side effect named by an ActionRule and
// returns the verdict to hand back to the caller (UIP_ACCEPT/UIP_DROP
// in the original stack's terms).
type ActionHandler func(action *ActionRule, buf []byte) (Verdict, error)

// Entry is one row of a flow table: a match, an action, a lifetime,
// and whether it is this table's default entry for its list.
type Entry struct {
	ID       uint8
	Match    *MatchRule
	Action   *ActionRule
	Lifetime time.Duration
	Default  bool

	timer *time.Timer
}

// InfiniteLifetime marks an entry that never expires.
const InfiniteLifetime time.Duration = 0

type entryList struct {
	elems      *list.List
	cap        int
	defaultPtr *list.Element
}

func newEntryList(capacity int) *entryList {
	return &entryList{elems: list.New(), cap: capacity}
}

// Table holds the two lists the data plane consults in order: a
// Whitelist (fast-path accepts, e.g. RPL control traffic) and the
// general Flowtable. RefreshLifetimeOnHit mirrors
// SDN_CONF_REFRESH_LIFETIME_ON_HIT: a matching entry's timer is reset
// on every hit rather than only counting down from creation.
type Table struct {
	Whitelist *entryList
	Flowtable *entryList

	RefreshLifetimeOnHit bool

	Metrics *metrics.Registry

	mu      sync.Mutex
	handler ActionHandler
	nextID  int
}

// SetMetrics injects the registry Check reports hit/miss counts to.
func (t *Table) SetMetrics(m *metrics.Registry) {
	t.Metrics = m
}

// NewTable constructs a Table with the given pool capacities for the
// whitelist and flowtable lists respectively.
func NewTable(whitelistCap, flowtableCap int) *Table {
	return &Table{
		Whitelist:            newEntryList(whitelistCap),
		Flowtable:            newEntryList(flowtableCap),
		RefreshLifetimeOnHit: true,
	}
}

// RegisterActionHandler installs the function called when an entry's
// action fires. There is exactly one handler per table, matching the
// original stack's single registered ft_action_handler.
func (t *Table) RegisterActionHandler(h ActionHandler) {
	t.handler = h
}

// generateID picks the next id not already held by an entry in either
// list (RemoveEntry looks an id up across both lists, so ids must stay
// unique across both).
func (t *Table) generateID() uint8 {
	return idpool.Next(&t.nextID, func(id uint8) bool {
		for _, el := range []*entryList{t.Flowtable, t.Whitelist} {
			for e := el.elems.Front(); e != nil; e = e.Next() {
				if e.Value.(*Entry).ID == id {
					return true
				}
			}
		}
		return false
	})
}

// List identifies which of a Table's two entry lists an operation
// targets.
type List int

const (
	ListFlowtable List = iota
	ListWhitelist
)

func (t *Table) list(l List) *entryList {
	if l == ListWhitelist {
		return t.Whitelist
	}
	return t.Flowtable
}

// entryExists reports whether an entry with an equivalent match and
// action is already installed, mirroring the original stack's
// dedup-on-add check so repeated controller pushes don't grow the list
// unboundedly.
func entryExists(el *entryList, m *MatchRule, a *ActionRule) bool {
	for e := el.elems.Front(); e != nil; e = e.Next() {
		ent := e.Value.(*Entry)
		if sameMatch(ent.Match, m) && sameAction(ent.Action, a) {
			return true
		}
	}
	return false
}

func sameMatch(a, b *MatchRule) bool {
	return a.Op == b.Op && a.Index == b.Index && a.Length == b.Length &&
		a.NeedsExtOffset == b.NeedsExtOffset && bytes.Equal(a.Data, b.Data)
}

func sameAction(a, b *ActionRule) bool {
	return a.Kind == b.Kind && a.Index == b.Index && a.Length == b.Length && bytes.Equal(a.Data, b.Data)
}

// AddEntry installs a new entry in list l with the given match, action
// and lifetime. If isDefault is set, it replaces the list's existing
// default pointer (the default pointer must always alias a list
// entry). Returns errs.KindPoolFull if the list is at capacity, or the
// existing entry's id without creating a duplicate if an equivalent
// match+action pair is already installed.
func (t *Table) AddEntry(l List, m *MatchRule, a *ActionRule, lifetime time.Duration, isDefault bool) (*Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	el := t.list(l)

	if entryExists(el, m, a) {
		for e := el.elems.Front(); e != nil; e = e.Next() {
			ent := e.Value.(*Entry)
			if sameMatch(ent.Match, m) && sameAction(ent.Action, a) {
				return ent, nil
			}
		}
	}

	if el.elems.Len() >= el.cap {
		return nil, errs.New(errs.KindPoolFull, "flowtable: entry pool exhausted")
	}

	ent := &Entry{
		ID:       t.generateID(),
		Match:    m,
		Action:   a,
		Lifetime: lifetime,
		Default:  isDefault,
	}

	elem := el.elems.PushBack(ent)

	if lifetime != InfiniteLifetime {
		ent.timer = time.AfterFunc(lifetime, func() {
			t.timedOut(el, elem)
		})
	}
	if isDefault {
		el.defaultPtr = elem
	}
	return ent, nil
}

// timedOut removes an entry whose lifetime expired. It runs on the
// timer's own goroutine (time.AfterFunc), so it takes the table's
// mutex the same as every other mutating method. If the entry was the
// list's default, the default pointer is cleared first so the
// fast-path check never dereferences a freed entry.
func (t *Table) timedOut(el *entryList, elem *list.Element) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ent := elem.Value.(*Entry)
	if el.defaultPtr == elem {
		el.defaultPtr = nil
	}
	el.elems.Remove(elem)
	_ = ent
}

// RemoveEntry removes the entry with the given id from whichever list
// contains it. It is not an error to remove an id that isn't present.
func (t *Table) RemoveEntry(id uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, el := range []*entryList{t.Flowtable, t.Whitelist} {
		for e := el.elems.Front(); e != nil; e = e.Next() {
			ent := e.Value.(*Entry)
			if ent.ID == id {
				if ent.timer != nil {
					ent.timer.Stop()
				}
				if el.defaultPtr == e {
					el.defaultPtr = nil
				}
				el.elems.Remove(e)
				return
			}
		}
	}
}

// Check scans list l in order for the first entry whose match fires,
// refreshes its lifetime on hit if configured, invokes the table's
// action handler, and returns its verdict. Returns VerdictNoMatch if
// nothing in the list matches.
func (t *Table) Check(l List, buf []byte, extLen int) (Verdict, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	el := t.list(l)
	for e := el.elems.Front(); e != nil; e = e.Next() {
		ent := e.Value.(*Entry)
		offset := ent.Match.Index + ent.Match.Length
		if ent.Match.NeedsExtOffset {
			offset += extLen
		}
		if offset > len(buf) {
			continue
		}
		if !ent.Match.Matches(buf, extLen) {
			continue
		}
		if t.RefreshLifetimeOnHit && ent.timer != nil {
			ent.timer.Reset(ent.Lifetime)
		}
		t.Metrics.ObserveFlowTableHit(ent.Action.Kind.String())
		if t.handler == nil {
			return VerdictAccept, nil
		}
		return t.handler(ent.Action, buf)
	}
	t.Metrics.ObserveFlowTableMiss()
	return VerdictNoMatch, nil
}

// CheckDefault evaluates only list l's default entry, a fast path for
// the single most common rule (e.g. "forward everything to the
// controller's neighbour") without scanning the whole list. A miss
// here isn't reported to Metrics: callers (checkEgress) fall through
// to Check, whose own verdict is the authoritative hit/miss outcome
// for the packet.
func (t *Table) CheckDefault(l List, buf []byte, extLen int) (Verdict, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	el := t.list(l)
	if el.defaultPtr == nil {
		return VerdictNoMatch, nil
	}
	ent := el.defaultPtr.Value.(*Entry)
	if !ent.Match.Matches(buf, extLen) {
		return VerdictNoMatch, nil
	}
	t.Metrics.ObserveFlowTableHit(ent.Action.Kind.String())
	if t.handler == nil {
		return VerdictAccept, nil
	}
	return t.handler(ent.Action, buf)
}

// Len reports how many entries are installed in list l.
func (t *Table) Len(l List) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.list(l).elems.Len()
}
