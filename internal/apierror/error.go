// Package apierror defines the error taxonomy surfaced at the storage
// engine boundary (see design notes on error propagation).
package apierror

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an Error so callers can decide how to respond
// without string-matching messages.
type Kind uint8

const (
	KindUnauthorized Kind = iota + 1
	KindForbidden
	KindNotFound
	KindConflict
	KindParseError
	KindDatabaseError
	KindRefreshTooSoon
	KindConversionError
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "Unauthorized"
	case KindForbidden:
		return "Forbidden"
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindParseError:
		return "ParseError"
	case KindDatabaseError:
		return "DatabaseError"
	case KindRefreshTooSoon:
		return "RefreshTooSoon"
	case KindConversionError:
		return "ConversionError"
	default:
		return "Unknown"
	}
}

// Error is the typed error returned across the storage engine
// boundary. Cause, when set, retains the wrapped stack-trace error
// from pkg/errors for logging.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is match on Kind alone, e.g. errors.Is(err, apierror.Unauthorized).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: errors.WithStack(cause)}
}

// Sentinel values for errors.Is comparisons that don't need a message.
var (
	Unauthorized    = &Error{Kind: KindUnauthorized}
	Forbidden       = &Error{Kind: KindForbidden}
	Conflict        = &Error{Kind: KindConflict}
	RefreshTooSoon  = &Error{Kind: KindRefreshTooSoon}
)

// NotFound builds a NotFound error carrying the missing id.
func NotFound(id fmt.Stringer) *Error {
	return &Error{Kind: KindNotFound, Msg: id.String()}
}
