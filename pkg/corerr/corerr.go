// Package corerr defines the error kinds from spec §7 (Error Handling
// Design) as a small typed wrapper, so every component reports a stable
// Kind and Code string instead of ad-hoc strings, the way the teacher's
// pkg/ledger/errors.go and pkg/database/errors.go define sentinel errors
// per package — generalized here into one reusable type because §7
// requires the same kind vocabulary across every component.
package corerr

import "fmt"

// Kind classifies an error per spec §7.
type Kind string

const (
	Validation            Kind = "Validation"
	Conflict              Kind = "Conflict"
	CapacityExceeded      Kind = "CapacityExceeded"
	AuthFailure           Kind = "AuthFailure"
	VersionTooLow         Kind = "VersionTooLow"
	NotFound              Kind = "NotFound"
	DependencyUnavailable Kind = "DependencyUnavailable"
	Transient             Kind = "Transient"
	Fatal                 Kind = "Fatal"
)

// code maps a Kind to the stable HTTP-facing code string from spec §6/§7.
var code = map[Kind]string{
	Validation:            "InvalidArgumentError",
	Conflict:              "ConflictError",
	CapacityExceeded:      "ForbiddenError",
	AuthFailure:           "ForbiddenError",
	VersionTooLow:         "UpgradeRequiredError",
	NotFound:              "NotFoundError",
	DependencyUnavailable: "InternalServerError",
	Transient:             "InternalServerError",
	Fatal:                 "InternalServerError",
}

// Error is a typed error carrying a Kind, a stable Code, and a cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Code returns the stable code string associated with this error's Kind.
func (e *Error) Code() string {
	if c, ok := code[e.Kind]; ok {
		return c
	}
	return "InternalServerError"
}

// New constructs an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ce, ok := err.(*Error); ok {
			e = ce
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}
