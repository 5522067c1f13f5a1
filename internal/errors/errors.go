package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure by how the run should react to it.
type Kind uint8

const (
	KindUnknown Kind = iota
	// Network or transport failure retrieving the feed. Fatal to the run.
	KindFetch
	// Malformed feed content. Logged, the run continues with what was recovered.
	KindParse
	// A single notification failed to send. Never aborts the run.
	KindDelivery
	// Required settings are missing or invalid. Fatal before any network call.
	KindConfig
	// The marker could not be read or written.
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindFetch:
		return "fetch"
	case KindParse:
		return "parse"
	case KindDelivery:
		return "delivery"
	case KindConfig:
		return "config"
	case KindStore:
		return "store"
	default:
		return "unknown"
	}
}

// Error is the error type shared between the alerting components.
type Error struct {
	Kind    Kind
	Err     error // The error this wraps
	Details []Detail
}

type Detail struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteString(": ")
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString("unspecified error")
	}
	for _, d := range e.Details {
		fmt.Fprintf(&b, "; %s: %s", d.Field, d.Error)
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds an *Error from its arguments in any order: a string or error
// becomes the wrapped error, a Kind sets the kind and Details are appended.
func E(args ...any) *Error {
	ret := &Error{
		Kind:    KindUnknown,
		Err:     nil,
		Details: nil,
	}

	for _, arg := range args {
		switch arg := arg.(type) {
		case string:
			ret.Err = errors.New(arg)
		case error:
			ret.Err = arg
		case Kind:
			ret.Kind = arg
		case Detail:
			ret.Details = append(ret.Details, arg)
		case []Detail:
			ret.Details = append(ret.Details, arg...)
		}
	}

	return ret
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
