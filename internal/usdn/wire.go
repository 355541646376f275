// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package usdn implements the uSDN wire codec and the node-side
// engine (C5): message encode/decode, the controller-discovery state
// machine, and the periodic update/query/join timers that drive it.
package usdn

import (
	"encoding/binary"

	"github.com/mbaddeley/usdn/internal/errs"
	"github.com/mbaddeley/usdn/internal/flowtable"
)

// MsgType identifies a uSDN message on the wire.
type MsgType uint8

const (
	MsgCFG MsgType = iota
	MsgCJOIN
	MsgNSU
	MsgCACK
	MsgCNACK
	MsgFTQ
	MsgFTS
	MsgTrackRQ
	MsgData
)

func (t MsgType) String() string {
	switch t {
	case MsgCFG:
		return "CFG"
	case MsgCJOIN:
		return "CJOIN"
	case MsgNSU:
		return "NSU"
	case MsgCACK:
		return "CACK"
	case MsgCNACK:
		return "CNACK"
	case MsgFTQ:
		return "FTQ"
	case MsgFTS:
		return "FTS"
	case MsgTrackRQ:
		return "TR"
	case MsgData:
		return "DATA"
	default:
		return "UNKNOWN"
	}
}

// HeaderLen is the fixed size of a uSDN header on the wire.
const HeaderLen = 4

// Header is the 4-byte envelope prefixing every uSDN message: virtual
// network id, message type, and a flow/transaction id.
type Header struct {
	Net  uint8
	Type MsgType
	Flow uint16
}

// EncodeHeader writes h in its 4-byte big-endian wire form.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderLen)
	buf[0] = h.Net
	buf[1] = uint8(h.Type)
	binary.BigEndian.PutUint16(buf[2:4], h.Flow)
	return buf
}

// DecodeHeader reads a Header from the front of buf.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderLen {
		return Header{}, errs.New(errs.KindMalformed, "usdn: short header")
	}
	return Header{
		Net:  buf[0],
		Type: MsgType(buf[1]),
		Flow: binary.BigEndian.Uint16(buf[2:4]),
	}, nil
}

// maxFTSData is the fixed width of an FTS match/action data field on
// the wire, regardless of the rule's actual length. This pads every
// FTS message to a constant size; it is a preserved quirk of the
// original protocol, not a bug to be "fixed" in this port.
const maxFTSData = 20

// NSULink is one neighbour entry in a node-state-update message.
type NSULink struct {
	NbrID NodeID
	RSSI  int16
}

// NodeID is the short id a node is addressed by within uSDN messages
// (the trailing bits of its IPv6 address).
type NodeID uint16

// NSU is a node-state-update payload: this node's current
// configuration id and RPL rank, plus its neighbour table. CJOIN
// reuses this exact struct with CfgID/Rank/Links left at zero value —
// it is a bare join announcement with no extra payload of its own.
type NSU struct {
	CfgID byte
	Rank  byte
	Links []NSULink
}

// EncodeNSU writes an NSU payload (cfg_id, rank, num_links, then each link).
func EncodeNSU(nsu NSU) []byte {
	buf := make([]byte, 3+len(nsu.Links)*4)
	buf[0] = nsu.CfgID
	buf[1] = nsu.Rank
	buf[2] = uint8(len(nsu.Links))
	off := 3
	for _, l := range nsu.Links {
		binary.BigEndian.PutUint16(buf[off:off+2], uint16(l.NbrID))
		binary.BigEndian.PutUint16(buf[off+2:off+4], uint16(l.RSSI))
		off += 4
	}
	return buf
}

// DecodeNSU reads an NSU payload from buf.
func DecodeNSU(buf []byte) (NSU, error) {
	if len(buf) < 3 {
		return NSU{}, errs.New(errs.KindMalformed, "usdn: short NSU")
	}
	nsu := NSU{CfgID: buf[0], Rank: buf[1]}
	n := int(buf[2])
	if len(buf) < 3+n*4 {
		return NSU{}, errs.New(errs.KindMalformed, "usdn: NSU link list truncated")
	}
	off := 3
	for i := 0; i < n; i++ {
		nsu.Links = append(nsu.Links, NSULink{
			NbrID: NodeID(binary.BigEndian.Uint16(buf[off : off+2])),
			RSSI:  int16(binary.BigEndian.Uint16(buf[off+2 : off+4])),
		})
		off += 4
	}
	return nsu, nil
}

// EncodeCJOIN encodes a CJOIN message, which is literally the NSU wire
// format with a zero-value payload — the original stack builds CJOIN
// by calling its NSU encoder with an empty struct, so this does too.
func EncodeCJOIN() []byte {
	return EncodeNSU(NSU{})
}

// CFG is the configuration payload a controller pushes to a node on
// join or on any subsequent reconfiguration.
type CFG struct {
	SDNNet          uint8
	CfgID           uint8
	FTLifetime      uint32 // seconds; 0xFFFFFFFF means infinite
	QueryFull       uint8
	QueryIdx        uint8
	QueryLen        uint8
	UpdatePeriod    uint16
	RPLDIOInterval  uint8
	RPLDFRTLifetime uint8
}

const cfgWireLen = 1 + 1 + 4 + 1 + 1 + 1 + 2 + 1 + 1

// EncodeCFG writes a CFG payload.
func EncodeCFG(c CFG) []byte {
	buf := make([]byte, cfgWireLen)
	buf[0] = c.SDNNet
	buf[1] = c.CfgID
	binary.BigEndian.PutUint32(buf[2:6], c.FTLifetime)
	buf[6] = c.QueryFull
	buf[7] = c.QueryIdx
	buf[8] = c.QueryLen
	binary.BigEndian.PutUint16(buf[9:11], c.UpdatePeriod)
	buf[11] = c.RPLDIOInterval
	buf[12] = c.RPLDFRTLifetime
	return buf
}

// DecodeCFG reads a CFG payload from buf.
func DecodeCFG(buf []byte) (CFG, error) {
	if len(buf) < cfgWireLen {
		return CFG{}, errs.New(errs.KindMalformed, "usdn: short CFG")
	}
	return CFG{
		SDNNet:          buf[0],
		CfgID:           buf[1],
		FTLifetime:      binary.BigEndian.Uint32(buf[2:6]),
		QueryFull:       buf[6],
		QueryIdx:        buf[7],
		QueryLen:        buf[8],
		UpdatePeriod:    binary.BigEndian.Uint16(buf[9:11]),
		RPLDIOInterval:  buf[11],
		RPLDFRTLifetime: buf[12],
	}, nil
}

// FTQ is a flow-table query: a node asks the controller what to do
// with up to Length bytes of a packet it couldn't resolve locally,
// starting at Index.
type FTQ struct {
	TxID  uint8
	Index uint8
	Data  []byte
}

// EncodeFTQ writes an FTQ payload (tx_id, index, length, data...).
func EncodeFTQ(q FTQ) []byte {
	buf := make([]byte, 4+len(q.Data))
	buf[0] = q.TxID
	buf[1] = q.Index
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(q.Data)))
	copy(buf[4:], q.Data)
	return buf
}

// DecodeFTQ reads an FTQ payload from buf.
func DecodeFTQ(buf []byte) (FTQ, error) {
	if len(buf) < 4 {
		return FTQ{}, errs.New(errs.KindMalformed, "usdn: short FTQ")
	}
	n := binary.BigEndian.Uint16(buf[2:4])
	if len(buf) < 4+int(n) {
		return FTQ{}, errs.New(errs.KindMalformed, "usdn: FTQ data truncated")
	}
	data := make([]byte, n)
	copy(data, buf[4:4+n])
	return FTQ{TxID: buf[0], Index: buf[1], Data: data}, nil
}

// FTS is a flow-table set: the controller's answer to an FTQ,
// installing a match/action pair (or replacing the node's default
// entry if IsDefault is set).
type FTS struct {
	TxID      uint8
	IsDefault bool
	Match     flowtable.MatchRule
	Action    flowtable.ActionRule
}

const (
	matchFixedLen  = 4 // operator, index, len, req_ext
	actionFixedLen = 3 // action, index, len
	matchWireLen   = matchFixedLen + maxFTSData
	actionWireLen  = actionFixedLen + maxFTSData
	ftsWireLen     = 1 + 1 + matchWireLen + actionWireLen
)

// EncodeFTS writes an FTS payload, padding the match and action data
// fields to maxFTSData bytes regardless of their real length.
func EncodeFTS(f FTS) []byte {
	buf := make([]byte, ftsWireLen)
	buf[0] = f.TxID
	if f.IsDefault {
		buf[1] = 1
	}

	off := 2
	buf[off] = uint8(f.Match.Op)
	buf[off+1] = uint8(f.Match.Index)
	buf[off+2] = uint8(f.Match.Length)
	if f.Match.NeedsExtOffset {
		buf[off+3] = 1
	}
	copy(buf[off+matchFixedLen:off+matchWireLen], f.Match.Data)
	off += matchWireLen

	buf[off] = uint8(f.Action.Kind)
	buf[off+1] = uint8(f.Action.Index)
	buf[off+2] = uint8(f.Action.Length)
	copy(buf[off+actionFixedLen:off+actionWireLen], f.Action.Data)

	return buf
}

// DecodeFTS reads an FTS payload from buf.
func DecodeFTS(buf []byte) (FTS, error) {
	if len(buf) < ftsWireLen {
		return FTS{}, errs.New(errs.KindMalformed, "usdn: short FTS")
	}
	f := FTS{TxID: buf[0], IsDefault: buf[1] != 0}

	off := 2
	mLen := int(buf[off+2])
	if mLen > maxFTSData {
		return FTS{}, errs.New(errs.KindMalformed, "usdn: FTS match length exceeds wire field")
	}
	mData := make([]byte, mLen)
	copy(mData, buf[off+matchFixedLen:off+matchFixedLen+mLen])
	f.Match = flowtable.MatchRule{
		Op:             flowtable.Operator(buf[off]),
		Index:          int(buf[off+1]),
		Length:         mLen,
		NeedsExtOffset: buf[off+3] != 0,
		Data:           mData,
	}
	off += matchWireLen

	aLen := int(buf[off+2])
	if aLen > maxFTSData {
		return FTS{}, errs.New(errs.KindMalformed, "usdn: FTS action length exceeds wire field")
	}
	aData := make([]byte, aLen)
	copy(aData, buf[off+actionFixedLen:off+actionFixedLen+aLen])
	f.Action = flowtable.ActionRule{
		Kind:   flowtable.ActionKind(buf[off]),
		Index:  int(buf[off+1]),
		Length: aLen,
		Data:   aData,
	}

	return f, nil
}
