// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package srh emits IPv6 Source Routing Header extension headers (C4):
// given an ordered list of node hops, it builds the routing-header +
// SDN-SRH + compressed-address-list extension and splices it into a
// packet ahead of its payload.
package srh

import (
	"encoding/binary"

	"github.com/mbaddeley/usdn/internal/errs"
)

const (
	rhHeaderLen  = 4 // next, len, routing_type, seg_left
	srhHeaderLen = 2 // cmpr, pad

	// RHTypeSRH is the IPv6 Routing Header Type value identifying an
	// SDN source-routing header (SDN_SRH).
	RHTypeSRH = 3

	// addrLen is the width of a full (uncompressed) IPv6 address.
	addrLen = 16
)

// NodeID is the trailing identifier embedded in the last two bytes of
// a compressed hop address.
type NodeID uint16

// Route describes a source route: Cmpr is the compression factor
// (bytes elided from the front of every hop address, 0-15) and Nodes
// is the hop list in order, Nodes[0] being the current node and
// Nodes[len-1] the final destination.
type Route struct {
	Cmpr  uint8
	Nodes []NodeID
}

// Header is an encoded extension header ready to be spliced into a
// packet immediately after its fixed IPv6 header.
type Header struct {
	Bytes  []byte
	ExtLen int
}

// addrBytes returns a full 16-byte address for id, with the node id in
// the trailing 2 bytes and the rest zeroed. Production deployments
// overlay this onto the network's real address prefix; the prefix
// itself plays no part in the SRH compression algorithm.
func addrBytes(id NodeID) [addrLen]byte {
	var a [addrLen]byte
	binary.BigEndian.PutUint16(a[addrLen-2:], uint16(id))
	return a
}

// Encode builds the extension header bytes for route. Hops are
// written from the final destination back to the first intermediate
// node (Nodes[0], the current node, is never written — it's implicit),
// matching the original stack's last-to-first emission order so a
// receiving node can pop its own hop off the front of the list.
func Encode(route Route, nextHeader uint8) (Header, error) {
	if len(route.Nodes) < 2 {
		return Header{}, errs.New(errs.KindMalformed, "srh: route needs at least 2 nodes")
	}
	if route.Cmpr > 15 {
		return Header{}, errs.New(errs.KindMalformed, "srh: compression factor out of range")
	}

	pathLen := len(route.Nodes) - 1
	hopWidth := addrLen - int(route.Cmpr)

	extLen := rhHeaderLen + srhHeaderLen + (pathLen-1)*hopWidth + hopWidth
	if pad := extLen % 8; pad != 0 {
		extLen += 8 - pad
	}

	buf := make([]byte, extLen)

	// Routing header.
	buf[0] = nextHeader
	buf[1] = uint8((extLen - 8) / 8)
	buf[2] = RHTypeSRH
	buf[3] = uint8(pathLen)

	// SDN SRH sub-header.
	buf[4] = (route.Cmpr << 4) + route.Cmpr
	padding := extLen - (rhHeaderLen + srhHeaderLen + (pathLen-1)*hopWidth + hopWidth)
	buf[5] = uint8(padding << 4)

	hopPtr := extLen - padding
	for i := len(route.Nodes) - 1; i > 0; i-- {
		addr := addrBytes(route.Nodes[i])
		hopPtr -= hopWidth
		copy(buf[hopPtr:hopPtr+hopWidth], addr[route.Cmpr:])
	}

	return Header{Bytes: buf, ExtLen: extLen}, nil
}

// EncodeRoute serialises route into the compact `(compression, length,
// id[length])` form a flow-table SRH action carries (distinct from
// Encode's full IPv6 extension header): one byte of compression
// factor, one byte of hop count, then each hop id as a 2-byte
// big-endian node id, in route.Nodes order.
func EncodeRoute(route Route) []byte {
	buf := make([]byte, 2+len(route.Nodes)*2)
	buf[0] = route.Cmpr
	buf[1] = uint8(len(route.Nodes))
	for i, id := range route.Nodes {
		binary.BigEndian.PutUint16(buf[2+i*2:], uint16(id))
	}
	return buf
}

// DecodeRoute is the inverse of EncodeRoute.
func DecodeRoute(buf []byte) (Route, error) {
	if len(buf) < 2 {
		return Route{}, errs.New(errs.KindMalformed, "srh: short route")
	}
	n := int(buf[1])
	if len(buf) < 2+n*2 {
		return Route{}, errs.New(errs.KindMalformed, "srh: route data shorter than declared length")
	}
	nodes := make([]NodeID, n)
	for i := 0; i < n; i++ {
		nodes[i] = NodeID(binary.BigEndian.Uint16(buf[2+i*2:]))
	}
	return Route{Cmpr: buf[0], Nodes: nodes}, nil
}

// NextHop returns the address of the first intermediate hop a
// receiving node should forward to: the node immediately after the
// local node (Nodes[0]) in the route.
func NextHop(route Route) (NodeID, bool) {
	if len(route.Nodes) < 2 {
		return 0, false
	}
	return route.Nodes[1], true
}

// Insert splices header onto pkt immediately after the first
// ipHdrLen bytes (the fixed IPv6 header), shifting any existing
// payload/extension headers back by header.ExtLen, and returns the new
// packet. This mirrors the original stack's memmove-then-write
// sequence rather than doing a byte-level in-place edit, since Go
// slices don't support growing a buffer in place safely.
func Insert(pkt []byte, ipHdrLen int, header Header) []byte {
	out := make([]byte, len(pkt)+header.ExtLen)
	copy(out, pkt[:ipHdrLen])
	copy(out[ipHdrLen:], header.Bytes)
	copy(out[ipHdrLen+header.ExtLen:], pkt[ipHdrLen:])
	return out
}
