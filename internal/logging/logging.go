// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging provides the structured logger used across the uSDN
// node and controller. Log lines carry a fixed prefix identifying the
// kind of event — IN/OUT for wire traffic, BUF for buffering events,
// STAT for per-packet statistics lines consumed by test harnesses —
// matching the LOG_DBG/LOG_STAT convention the reference implementation
// used throughout its network stack.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Level controls verbosity, mirroring the DBG/INFO/WARN/ERR tiers used
// throughout the stack this package is modeled on.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DBG"
	default:
		return "?"
	}
}

// Logger is the project's structured logger. Module is the subsystem
// name (e.g. "FT", "USDN", "ATOM") printed on every line.
type Logger struct {
	Module string
	Level  Level

	out *log.Logger
}

// New builds a Logger writing to w, tagged with module and filtered at
// level.
func New(w io.Writer, module string, level Level) *Logger {
	return &Logger{
		Module: module,
		Level:  level,
		out:    log.New(w, "", log.LstdFlags),
	}
}

// Default builds a Logger writing to stderr at LevelInfo.
func Default(module string) *Logger {
	return New(os.Stderr, module, LevelInfo)
}

func (l *Logger) logf(level Level, format string, args ...any) {
	if level > l.Level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.out.Printf("[%s] %s %s", l.Module, level, msg)
}

func (l *Logger) Errf(format string, args ...any)  { l.logf(LevelError, format, args...) }
func (l *Logger) Warnf(format string, args ...any) { l.logf(LevelWarn, format, args...) }
func (l *Logger) Infof(format string, args ...any) { l.logf(LevelInfo, format, args...) }
func (l *Logger) Dbgf(format string, args ...any)  { l.logf(LevelDebug, format, args...) }

// In logs an inbound wire message: type code, src, dst, flow id, hop count.
func (l *Logger) In(typ string, src, dst, flow uint16, hops int) {
	l.out.Printf("[%s] IN %s s:%d d:%d id:%d h:%d", l.Module, typ, src, dst, flow, hops)
}

// Out logs an outbound wire message.
func (l *Logger) Out(typ string, src, dst, flow uint16) {
	l.out.Printf("[%s] OUT %s s:%d d:%d id:%d", l.Module, typ, src, dst, flow)
}

// Buf logs a buffering/queue event, e.g. pool occupancy after an allocation.
func (l *Logger) Buf(label string, used, cap int) {
	l.out.Printf("[%s] BUF %s %d/%d", l.Module, label, used, cap)
}

// Stat logs an arbitrary statistics line in "key:value" pairs, matching
// the LOG_STAT convention used for per-node counters (e.g. "n:%d c:1").
func (l *Logger) Stat(format string, args ...any) {
	l.out.Printf("[%s] STAT %s", l.Module, fmt.Sprintf(format, args...))
}
