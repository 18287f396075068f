// Package apperr defines the client-facing error taxonomy and how each kind
// maps to a response errorcode.
package apperr

import (
	"errors"
	"fmt"
)

// Response error codes.
const (
	CodeSuccess   = 0
	CodeTemporary = 1
	CodeFatal     = 2
	CodeAuth      = 3
)

// Kind classifies an error for the response envelope.
type Kind int

const (
	KindAuth Kind = iota + 1
	KindParse
	KindValidation
	KindRouting
	KindStorage
	KindNotFound
	KindTemporary
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindParse:
		return "parse"
	case KindValidation:
		return "validation"
	case KindRouting:
		return "routing"
	case KindStorage:
		return "storage"
	case KindNotFound:
		return "not_found"
	case KindTemporary:
		return "temporary"
	default:
		return "unknown"
	}
}

// Error carries a message safe to show to the caller and, optionally, the
// internal cause which is only ever logged.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Auth returns an authentication failure.
func Auth(msg string) *Error { return &Error{Kind: KindAuth, Msg: msg} }

// Parse returns a malformed-input failure.
func Parse(msg string, err error) *Error { return &Error{Kind: KindParse, Msg: msg, Err: err} }

// Validation returns a missing or invalid field failure.
func Validation(msg string) *Error { return &Error{Kind: KindValidation, Msg: msg} }

// Routing returns a failure to find any worker type for a job.
func Routing(msg string) *Error { return &Error{Kind: KindRouting, Msg: msg} }

// Storage wraps a backing store failure.
func Storage(msg string, err error) *Error { return &Error{Kind: KindStorage, Msg: msg, Err: err} }

// NotFound returns an unknown-or-not-owned record failure.
func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Msg: msg} }

// Temporary returns a failure the caller may retry.
func Temporary(msg string) *Error { return &Error{Kind: KindTemporary, Msg: msg} }

// Code maps err to a response errorcode. Unclassified errors are fatal.
func Code(err error) int {
	if err == nil {
		return CodeSuccess
	}
	var e *Error
	if !errors.As(err, &e) {
		return CodeFatal
	}
	switch e.Kind {
	case KindAuth:
		return CodeAuth
	case KindTemporary:
		return CodeTemporary
	default:
		return CodeFatal
	}
}

// Message returns the client-facing message for err. Internal causes are
// never included.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "Internal error."
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
