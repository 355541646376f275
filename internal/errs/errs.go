// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package errs defines the structured error kinds used across the uSDN
// stack and controller, and a small wrapper type that carries a kind,
// a message, an optional underlying error, and arbitrary attributes.
package errs

import (
	"errors"
	"fmt"
)

// Kind categorizes an error the way callers need to branch on it:
// action handlers decide whether to drop, query, or accept based on
// Kind, not on string matching.
type Kind int

const (
	KindUnknown Kind = iota
	// KindPoolFull means a fixed-capacity pool (flow table, packet
	// buffer, ingress queue) had no free slot.
	KindPoolFull
	// KindMalformed means a wire message failed to decode: short
	// buffer, bad type byte, or a length field that doesn't fit.
	KindMalformed
	// KindNoRoute means a routing application could not resolve a
	// path to the requested destination.
	KindNoRoute
	// KindNotConfigured means an operation needs a controller record,
	// flow id, or config field that hasn't been set yet.
	KindNotConfigured
	// KindTimeout means a timer fired before an expected response
	// arrived (ACK, CFG, query reply).
	KindTimeout
	// KindInternal marks a programmer invariant violation, not a
	// network or resource condition.
	KindInternal
	// KindValidation marks a configuration value that failed validation.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindPoolFull:
		return "pool_full"
	case KindMalformed:
		return "malformed"
	case KindNoRoute:
		return "no_route"
	case KindNotConfigured:
		return "not_configured"
	case KindTimeout:
		return "timeout"
	case KindInternal:
		return "internal"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error is a structured error carrying a Kind, a human message, an
// optional wrapped error, and free-form attributes for logging.
type Error struct {
	Kind       Kind
	Message    string
	Underlying error
	Attributes map[string]any
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Underlying)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// New creates an Error of the given kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// Errorf creates an Error of the given kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err as a new Error of the given kind. Returns nil if err is nil.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: msg, Underlying: err}
}

// Wrapf wraps err as a new Error of the given kind with a formatted message.
func Wrapf(err error, kind Kind, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Underlying: err}
}

// Attr attaches an attribute to err. If err isn't an *Error, it is
// wrapped as KindInternal first.
func Attr(err error, key string, val any) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		e = &Error{Kind: KindInternal, Message: err.Error(), Underlying: err}
	}
	if e.Attributes == nil {
		e.Attributes = make(map[string]any)
	}
	e.Attributes[key] = val
	return e
}

// GetKind returns the Kind of err, or KindUnknown if err carries none.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// GetAttributes collects attributes from every *Error in err's chain,
// with the outermost error's values taking precedence.
func GetAttributes(err error) map[string]any {
	attrs := make(map[string]any)
	var e *Error
	cur := err
	for cur != nil {
		if !errors.As(cur, &e) {
			break
		}
		for k, v := range e.Attributes {
			if _, ok := attrs[k]; !ok {
				attrs[k] = v
			}
		}
		cur = e.Underlying
	}
	return attrs
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain matching target's type.
func As(err error, target any) bool { return errors.As(err, target) }

// Unwrap returns the result of calling Unwrap on err, if it has one.
func Unwrap(err error) error { return errors.Unwrap(err) }
