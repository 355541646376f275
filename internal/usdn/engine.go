// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package usdn

import (
	"math/rand"
	"time"

	"github.com/mbaddeley/usdn/internal/config"
	"github.com/mbaddeley/usdn/internal/errs"
	"github.com/mbaddeley/usdn/internal/flowtable"
	"github.com/mbaddeley/usdn/internal/logging"
	"github.com/mbaddeley/usdn/internal/packetbuf"
)

// ControllerState is the node-side view of its connection to a
// controller.
type ControllerState int

const (
	StateNone ControllerState = iota
	StateConnecting
	StateConnectedNew
	StateConnected
	StateDisconnected
)

func (s ControllerState) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateConnectedNew:
		return "CONNECTED_NEW"
	case StateConnected:
		return "CONNECTED"
	case StateDisconnected:
		return "DISCONNECTED"
	default:
		return "NONE"
	}
}

// ConnType names the southbound transport a ControllerRecord reaches
// its controller over.
type ConnType uint8

const (
	ConnUSDN ConnType = iota
	ConnRPL
)

// ControllerRecord is what a node knows about one controller it can
// reach: its address, its connection state, the transport it is
// reachable over, and how often the node should send it an unsolicited
// update.
type ControllerRecord struct {
	Addr         string
	State        ControllerState
	ConnType     ConnType
	UpdatePeriod uint16
}

// Transport is the minimal southbound send primitive the engine needs;
// a real deployment backs this with a UDP socket to the controller.
type Transport interface {
	Send(addr string, payload []byte) error
}

// Timer abstracts the four-verb timer model (START/STOP/RESET/
// IMMEDIATE) described by the stack this engine is modeled on, so the
// engine's timing logic reads the same whether backed by a live
// *time.Timer or a test fake.
type Timer interface {
	Start(d time.Duration, fn func())
	Stop()
	Reset(d time.Duration)
	Immediate(fn func())
}

// stdTimer is the Timer implementation used outside tests, wrapping a
// single reusable *time.Timer the way the original stack reuses one
// ctimer per handshake/update slot.
type stdTimer struct {
	t *time.Timer
}

func (s *stdTimer) Start(d time.Duration, fn func()) {
	s.Stop()
	s.t = time.AfterFunc(d, fn)
}

func (s *stdTimer) Stop() {
	if s.t != nil {
		s.t.Stop()
	}
}

func (s *stdTimer) Reset(d time.Duration) {
	if s.t == nil {
		return
	}
	s.t.Reset(d)
}

func (s *stdTimer) Immediate(fn func()) {
	s.Stop()
	fn()
}

// NewTimer returns the default Timer implementation.
func NewTimer() Timer { return &stdTimer{} }

const (
	nsuDelayMax  = 10 * time.Second
	joinDelayMin = 10 * time.Second
	joinDelayMax = 15 * time.Second
)

func randomNSUDelay() time.Duration {
	return time.Duration(rand.Int63n(int64(nsuDelayMax)))
}

func randomJoinDelay() time.Duration {
	span := joinDelayMax - joinDelayMin
	return joinDelayMin + time.Duration(rand.Int63n(int64(span)))
}

// Engine is the node-side uSDN state machine: it owns the node's
// controller record, its flow table, its outstanding-query buffer,
// and the join/update timers that drive traffic to the controller.
type Engine struct {
	Transport Transport
	Table     *flowtable.Table
	PktBuf    *packetbuf.Buffer
	Conf      config.Record
	Log       *logging.Logger

	Controller  ControllerRecord
	flow        uint16
	joinTimer   Timer
	updateTimer Timer
}

// New builds an Engine bound to transport, table, pktbuf and the
// node's current configuration record.
func New(transport Transport, table *flowtable.Table, pbuf *packetbuf.Buffer, conf config.Record, log *logging.Logger) *Engine {
	return &Engine{
		Transport:   transport,
		Table:       table,
		PktBuf:      pbuf,
		Conf:        conf,
		Log:         log,
		Controller:  ControllerRecord{State: StateConnecting},
		joinTimer:   NewTimer(),
		updateTimer: NewTimer(),
	}
}

func (e *Engine) nextFlow() uint16 {
	e.flow++
	return e.flow
}

func (e *Engine) send(typ MsgType, payload []byte) error {
	flow := e.nextFlow()
	hdr := EncodeHeader(Header{Net: e.Conf.VNetID, Type: typ, Flow: flow})
	if e.Log != nil {
		e.Log.Out(typ.String(), 0, 0, flow)
	}
	return e.Transport.Send(e.Controller.Addr, append(hdr, payload...))
}

// ControllerJoin drives the join handshake timer: START arms a
// randomized initial join delay, STOP cancels it, RESET re-arms with a
// fresh delay, and IMMEDIATE fires the callback synchronously. This
// mirrors atom_set_handshake_timer's four-state dispatch.
func (e *Engine) ControllerJoin(state TimerVerb) {
	switch state {
	case TimerStop:
		e.joinTimer.Stop()
	case TimerStart, TimerReset:
		e.joinTimer.Start(randomJoinDelay(), e.sendCJOIN)
	case TimerImmediate:
		e.joinTimer.Immediate(e.sendCJOIN)
	}
}

func (e *Engine) sendCJOIN() {
	if err := e.send(MsgCJOIN, EncodeCJOIN()); err != nil && e.Log != nil {
		e.Log.Errf("join: send CJOIN failed: %v", err)
	}
}

// ControllerUpdate drives the periodic node-state-update timer the
// same four-verb way as ControllerJoin.
func (e *Engine) ControllerUpdate(state TimerVerb, nsu NSU) {
	switch state {
	case TimerStop:
		e.updateTimer.Stop()
	case TimerStart, TimerReset:
		delay := time.Duration(e.Conf.UpdatePeriod)*time.Second + randomNSUDelay()
		e.updateTimer.Start(delay, func() { e.sendNSU(nsu) })
	case TimerImmediate:
		e.updateTimer.Immediate(func() { e.sendNSU(nsu) })
	}
}

func (e *Engine) sendNSU(nsu NSU) {
	if err := e.send(MsgNSU, EncodeNSU(nsu)); err != nil && e.Log != nil {
		e.Log.Errf("update: send NSU failed: %v", err)
	}
}

// TimerVerb is one of the four timer operations the stack this engine
// is modeled on exposes for every stateful timer it owns.
type TimerVerb int

const (
	TimerStop TimerVerb = iota
	TimerStart
	TimerReset
	TimerImmediate
)

// ControllerQuery sends an FTQ carrying data to the controller under
// txID. It buffers nothing itself; Egress buffers the packet first and
// passes the slot id as txID, so the response can later retry whatever
// was buffered under the same transaction id.
func (e *Engine) ControllerQuery(txID uint8, index uint8, data []byte) error {
	return e.send(MsgFTQ, EncodeFTQ(FTQ{TxID: txID, Index: index, Data: data}))
}

// HandleCFG applies a controller's CFG push: it updates the node's
// configuration record and ends in CONNECTED with the periodic update
// timer armed and the join timer stopped. Coming from CONNECTING it
// passes through CONNECTED_NEW, which immediately fires an update so
// the controller learns this node's state without waiting for the next
// periodic tick; from any other state no immediate update is sent.
func (e *Engine) HandleCFG(buf []byte) error {
	cfg, err := DecodeCFG(buf)
	if err != nil {
		return err
	}

	e.Conf.VNetID = cfg.SDNNet
	e.Conf.CfgID = cfg.CfgID
	if cfg.FTLifetime == 0xFFFFFFFF {
		e.Conf.FTLifetime = flowtable.InfiniteLifetime
	} else {
		e.Conf.FTLifetime = time.Duration(cfg.FTLifetime) * time.Second
	}
	e.Conf.QueryFull = cfg.QueryFull != 0
	e.Conf.QueryIdx = cfg.QueryIdx
	e.Conf.QueryLen = cfg.QueryLen
	e.Conf.UpdatePeriod = cfg.UpdatePeriod
	e.Conf.RPLDIOInterval = cfg.RPLDIOInterval
	e.Conf.RPLDFRTLifetime = cfg.RPLDFRTLifetime

	e.Controller.UpdatePeriod = cfg.UpdatePeriod
	if e.Controller.State == StateConnecting {
		e.Controller.State = StateConnectedNew
		// CONNECTED_NEW's one-shot setup: tell the controller this
		// node's state immediately rather than waiting for the next
		// periodic tick.
		e.ControllerUpdate(TimerImmediate, NSU{CfgID: e.Conf.CfgID})
	}

	e.Controller.State = StateConnected
	e.ControllerUpdate(TimerStart, NSU{CfgID: e.Conf.CfgID})
	e.ControllerJoin(TimerStop)
	return nil
}

// HandleFTS installs the flow-table entry carried by an FTS message
// and, if retryAfterQuery is set and retry is non-nil, calls retry with
// the FTS transaction id so whatever packet was buffered under it is
// replayed.
func (e *Engine) HandleFTS(buf []byte, retryAfterQuery bool, retry func(txID uint8) error) error {
	fts, err := DecodeFTS(buf)
	if err != nil {
		return err
	}

	m := &fts.Match
	a := &fts.Action
	list := flowtable.ListFlowtable
	if _, err := e.Table.AddEntry(list, m, a, e.Conf.FTLifetime, fts.IsDefault); err != nil {
		return errs.Wrap(err, errs.GetKind(err), "usdn: install FTS entry")
	}

	if retryAfterQuery && retry != nil {
		return retry(fts.TxID)
	}
	return nil
}

// checkEgress consults the flow table the way egress processing is
// ordered: the default fast path first, falling back to a full scan
// of the flow-table list.
func (e *Engine) checkEgress(buf []byte, extLen uint8) (flowtable.Verdict, error) {
	verdict, err := e.Table.CheckDefault(flowtable.ListFlowtable, buf, int(extLen))
	if err != nil || verdict != flowtable.VerdictNoMatch {
		return verdict, err
	}
	return e.Table.Check(flowtable.ListFlowtable, buf, int(extLen))
}

// Egress checks an outbound packet against the flow table. On a miss
// it buffers the packet (C3) and emits an FTQ whose tx_id equals the
// buffer slot id, carrying either the full packet or the configured
// [query_idx, query_idx+query_len) slice.
func (e *Engine) Egress(buf []byte, extLen uint8) (flowtable.Verdict, error) {
	verdict, err := e.checkEgress(buf, extLen)
	if err != nil || verdict != flowtable.VerdictNoMatch {
		return verdict, err
	}

	slot, err := e.PktBuf.Allocate(e.Conf.FTLifetime)
	if err != nil {
		return flowtable.VerdictDrop, err
	}
	slot.Set(buf, extLen)

	data := buf
	if !e.Conf.QueryFull {
		start := int(e.Conf.QueryIdx)
		end := start + int(e.Conf.QueryLen)
		switch {
		case start >= len(buf):
			data = nil
		case end > len(buf):
			data = buf[start:]
		default:
			data = buf[start:end]
		}
	}

	if err := e.ControllerQuery(slot.ID, e.Conf.QueryIdx, data); err != nil {
		e.PktBuf.Free(slot)
		return flowtable.VerdictDrop, err
	}
	return flowtable.VerdictContinue, nil
}

// RetryQuery is the retry callback HandleFTS invokes once an FTS has
// installed a new rule: it finds the packet buffered under txID,
// re-runs the egress flow-table check against it now that the new
// rule exists, and frees the slot regardless of the outcome.
func (e *Engine) RetryQuery(txID uint8) error {
	p := e.PktBuf.Find(txID)
	if p == nil {
		return nil
	}
	_, err := e.checkEgress(p.Buf, p.ExtLen)
	e.PktBuf.Free(p)
	return err
}
