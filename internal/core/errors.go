package core

import "fmt"

// Kind classifies why a session operation failed.
type Kind int

const (
	KindNone Kind = iota
	KindLoadFailure
	KindSaveFailure
	KindNoFileLoaded
	KindInvalidFilterRule
	KindInvalidColumn
	KindNoPendingFilter
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindLoadFailure:
		return "load_failure"
	case KindSaveFailure:
		return "save_failure"
	case KindNoFileLoaded:
		return "no_file_loaded"
	case KindInvalidFilterRule:
		return "invalid_filter_rule"
	case KindInvalidColumn:
		return "invalid_column"
	case KindNoPendingFilter:
		return "no_pending_filter"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinels for errors.Is checks against a Status.Err result.
var (
	ErrLoadFailure       = &Error{Kind: KindLoadFailure}
	ErrSaveFailure       = &Error{Kind: KindSaveFailure}
	ErrNoFileLoaded      = &Error{Kind: KindNoFileLoaded}
	ErrInvalidFilterRule = &Error{Kind: KindInvalidFilterRule}
	ErrInvalidColumn     = &Error{Kind: KindInvalidColumn}
	ErrNoPendingFilter   = &Error{Kind: KindNoPendingFilter}
)

// Error is a session failure carried as a Go error.
type Error struct {
	Kind   Kind
	Msg    string
	Detail string
}

func (e *Error) Error() string {
	switch {
	case e.Msg == "":
		return e.Kind.String()
	case e.Detail != "" && e.Detail != e.Msg:
		return e.Msg + ": " + e.Detail
	default:
		return e.Msg
	}
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}
