// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config holds the process-wide configuration record used by
// every node and controller in the uSDN stack. The node-side Record
// mirrors the behaviour parameters a controller pushes down during the
// join/configuration handshake; the node never mutates it except in
// response to a CFG message.
package config

import "time"

// FTLifetimeInfinite is the sentinel flow-table lifetime meaning
// "never expire"; on the wire it is carried as the 0xFFFFFFFF marker.
const FTLifetimeInfinite time.Duration = 0

const (
	defaultNet             = 1
	defaultQueryIndex      = 2 // uip_dst_index equivalent in this port
	defaultQueryLen        = 16
	defaultUpdatePeriod    = 600
	defaultRPLDIOInterval  = 12
	defaultRPLDFRTLifetime = 30
	defaultFTTries         = 5
)

// MaxCfgTries bounds a joining node's CFG handshake: the first CFG
// counts as try one, and the retry timer re-sends only while fewer than
// MaxCfgTries have gone out, then gives up silently.
const MaxCfgTries = defaultFTTries

// Record is the behavioural configuration of a single node: virtual
// network membership, flow-table defaults, and the query/update
// parameters a controller assigns during JOIN.
type Record struct {
	// VNetID is the virtual network id this node belongs to.
	VNetID byte
	// CfgID is bumped by the controller on every configuration push;
	// zero means "not yet configured".
	CfgID byte
	// Hops is the hop count to the default controller, as last
	// reported by an NSU round trip.
	Hops byte

	// FTLifetime is the default lifetime assigned to flow-table
	// entries created from controller responses. FTLifetimeInfinite
	// means entries never expire.
	FTLifetime time.Duration

	// QueryFull, when true, sends the complete buffered packet in a
	// flow-table query; otherwise only QueryLen bytes starting at
	// QueryIdx are sent.
	QueryFull bool
	QueryIdx  byte
	QueryLen  byte

	// UpdatePeriod is the interval, in seconds, between periodic
	// network-state-update heartbeats sent to the controller.
	UpdatePeriod uint16

	RPLDIOInterval  byte
	RPLDFRTLifetime byte
}

// DefaultConfig returns a Record with the stack's compile-time defaults.
func DefaultConfig() Record {
	return Record{
		VNetID:          defaultNet,
		CfgID:           0,
		Hops:            0,
		FTLifetime:      FTLifetimeInfinite,
		QueryFull:       false,
		QueryIdx:        defaultQueryIndex,
		QueryLen:        defaultQueryLen,
		UpdatePeriod:    defaultUpdatePeriod,
		RPLDIOInterval:  defaultRPLDIOInterval,
		RPLDFRTLifetime: defaultRPLDFRTLifetime,
	}
}

// Configured reports whether the node has received its first CFG from
// a controller.
func (r Record) Configured() bool {
	return r.CfgID != 0
}
