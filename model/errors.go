package model

import (
	"errors"
	"fmt"
)

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind, not on Error() strings, which may evolve.
type Kind string

const (
	KindNotFound           Kind = "notFound"
	KindConflict           Kind = "conflict"
	KindUnknownType        Kind = "unknownType"
	KindBagFull            Kind = "bagFull"
	KindLeaseExpired       Kind = "leaseExpired"
	KindNoBag              Kind = "noBag"
	KindInvalidCredentials Kind = "invalidCredentials"
	KindMalformedRequest   Kind = "malformedRequest"
	KindServerDown         Kind = "serverDown"
	KindIO                 Kind = "io"
)

// Error is the module's structured error type, carrying enough context to
// reconstruct what failed without parsing the message.
type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "writeName", "borrowMessage".
	Op string
	// Namespace and Key identify the object involved, when applicable.
	Namespace string
	Key       string
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Namespace != "" || e.Key != "" {
		return fmt.Sprintf("%s: %s [%s/%s]: %s", e.Op, e.Kind, e.Namespace, e.Key, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// New builds a structured error with no underlying cause.
func New(op string, kind Kind, msg string) *Error {
	return &Error{Op: op, Kind: kind, Message: msg}
}

// Wrap builds a structured error around an underlying cause. If cause is
// already a *Error for the same op, it is returned unchanged so a facade
// and a repository layer do not both wrap the same failure twice.
func Wrap(op string, kind Kind, msg string, cause error) *Error {
	var existing *Error
	if errors.As(cause, &existing) && existing.Op == op {
		return existing
	}
	return &Error{Op: op, Kind: kind, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf returns the Kind of a structured error, or "" if err is not one.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}

// WithNamespace returns a copy of e annotated with a namespace/key pair.
func (e *Error) WithNamespace(namespace, key string) *Error {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Namespace = namespace
	clone.Key = key
	return &clone
}
