// Package apperr carries the error taxonomy the services report through.
// Callers branch on Kind and Reason, never on message text.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation policy.
type Kind int

const (
	// KindInternal is an unexpected failure; fatal to the request.
	KindInternal Kind = iota
	// KindFormat means the payload could not be parsed; the user must
	// rescan or retype.
	KindFormat
	// KindNotFound means a referenced subject, session, code or record
	// does not exist. Terminal, no retry.
	KindNotFound
	// KindForbidden means the student is not allowed (not enrolled).
	KindForbidden
	// KindConflict is an expected business outcome (already enrolled,
	// already checked in, already finalized, code used).
	KindConflict
	// KindTransient is a store connectivity failure; the whole operation
	// is safe to retry.
	KindTransient
)

// Machine-readable reasons surfaced alongside kinds.
const (
	ReasonSubject           = "subject"
	ReasonSession           = "session"
	ReasonNoActiveSession   = "no-active-session"
	ReasonNotEnrolled       = "not-enrolled"
	ReasonAlreadyEnrolled   = "already-enrolled"
	ReasonAlreadyCheckedIn  = "already-checked-in"
	ReasonAlreadyFinalized  = "already-finalized"
	ReasonNoCheckIn         = "no-checkin"
	ReasonInvalidOrUsedCode = "invalid-or-used-code"
	ReasonBadPayload        = "bad-payload"
	ReasonBadStatus         = "bad-status"
)

// Error is a classified error with a machine reason and a human message.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Reason, e.Message, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Reason, e.Message)
	}
	return e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

// Format builds a payload-parse error.
func Format(reason, msg string) *Error {
	return &Error{Kind: KindFormat, Reason: reason, Message: msg}
}

// NotFound builds a missing-entity error.
func NotFound(reason, msg string) *Error {
	return &Error{Kind: KindNotFound, Reason: reason, Message: msg}
}

// Forbidden builds a not-allowed error.
func Forbidden(reason, msg string) *Error {
	return &Error{Kind: KindForbidden, Reason: reason, Message: msg}
}

// Conflict builds an expected business-outcome error.
func Conflict(reason, msg string) *Error {
	return &Error{Kind: KindConflict, Reason: reason, Message: msg}
}

// Transient wraps a store connectivity failure.
func Transient(err error) *Error {
	return &Error{Kind: KindTransient, Reason: "store-unavailable", Message: "temporary store failure", Err: err}
}

// KindOf extracts the kind from any error; plain errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ReasonOf extracts the machine reason, or "" for plain errors.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// Retryable reports whether the caller may retry the whole operation.
func Retryable(err error) bool { return KindOf(err) == KindTransient }
