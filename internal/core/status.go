package core

import (
	"errors"
	"strings"
)

// Status is the outcome report of one session operation. It replaces a
// shared "last message" holder: every operation returns its own Status, and
// the session keeps a copy of the latest one for callers that only look
// after a falsy result.
//
// The zero value is the cleared state.
type Status struct {
	Message      string // what the caller shows the user
	ErrorMessage string // non-empty when the operation failed
	ErrorDetail  string // cause chain of the failure, if there was one
	Kind         Kind   // failure category; KindNone on success
}

// Log reports a successful operation.
func Log(msg string) Status {
	return Status{Message: msg}
}

// Fail reports a failure that has no underlying cause.
func Fail(kind Kind, msg string) Status {
	return Status{Message: msg, ErrorMessage: msg, Kind: kind}
}

// ErrorCause reports a failure caused by err. The error message comes from
// err itself and the detail lists every error in its wrap chain.
func ErrorCause(kind Kind, msg string, err error) Status {
	if err == nil {
		return Fail(kind, msg)
	}
	return Status{
		Message:      msg,
		ErrorMessage: err.Error(),
		ErrorDetail:  causeChain(err),
		Kind:         kind,
	}
}

// Failed reports whether the status describes a failure.
func (s Status) Failed() bool {
	return s.Kind != KindNone
}

// Err returns the failure as an error, or nil on success.
func (s Status) Err() error {
	if !s.Failed() {
		return nil
	}
	return &Error{Kind: s.Kind, Msg: s.Message, Detail: s.ErrorMessage}
}

// causeChain renders err and each error it wraps, outermost first.
func causeChain(err error) string {
	var lines []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		lines = append(lines, e.Error())
	}
	return strings.Join(lines, "\n")
}
