package protocol

import (
	"fmt"
)

// Kind classifies a rejection
type Kind string

const (
	KindItemLocked  Kind = "ITEM_LOCKED"
	KindStackLocked Kind = "STACK_LOCKED"
	KindNotFound    Kind = "NOT_FOUND"
	KindInvalid     Kind = "INVALID_OPERATION"
	KindNotInHand   Kind = "NOT_IN_HAND"
	KindNotYourItem Kind = "NOT_YOUR_ITEM"
	KindZoneLocked  Kind = "ZONE_LOCKED"
	KindRateLimited Kind = "RATE_LIMITED"
	KindFull        Kind = "FULL"
	KindInternal    Kind = "INTERNAL"
)

// Error is a rejection sent only to the submitter of an intent. Current
// carries the authoritative value of the subject when the client needs it to
// undo an optimistic change.
type Error struct {
	Intent  Intent `json:"intent"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Ref     string `json:"ref,omitempty"`
	Current any    `json:"current,omitempty"`
}

func (e *Error) Error() string {
	if e.Intent == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Intent, e.Kind, e.Message)
}

// Errorf builds a rejection of the given kind
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithCurrent attaches the authoritative subject value for snap-back
func (e *Error) WithCurrent(v any) *Error {
	e.Current = v
	return e
}

func invalid(format string, args ...any) *Error {
	return Errorf(KindInvalid, format, args...)
}
