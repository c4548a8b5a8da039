// Package errs defines the failure taxonomy shared by the trust registry, the
// oracles and the credit issuer. Every rule violation is reported as an *Error
// carrying a Kind and the human readable reason.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindUnauthorized  Kind = "Unauthorized"
	KindInvalidInput  Kind = "InvalidInput"
	KindInvalidState  Kind = "InvalidState"
	KindNotRegistered Kind = "NotRegistered"
	KindSystemPaused  Kind = "SystemPaused"
	KindAlreadyPaused Kind = "AlreadyPaused"
	KindNotPaused     Kind = "NotPaused"
	KindNotFound      Kind = "NotFound"
)

// Error is a rule violation reported to the immediate caller.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Is matches another *Error of the same kind, so errors.Is(err, errs.Unauthorized)
// holds for any unauthorized failure regardless of reason.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

// Sentinels for errors.Is comparisons.
var (
	Unauthorized  = &Error{Kind: KindUnauthorized}
	InvalidInput  = &Error{Kind: KindInvalidInput}
	InvalidState  = &Error{Kind: KindInvalidState}
	NotRegistered = &Error{Kind: KindNotRegistered}
	SystemPaused  = &Error{Kind: KindSystemPaused}
	AlreadyPaused = &Error{Kind: KindAlreadyPaused}
	NotPaused     = &Error{Kind: KindNotPaused}
	NotFound      = &Error{Kind: KindNotFound}
)

// New returns an error of the given kind.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// ReasonOf returns the reason of the first *Error in err's chain.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}
