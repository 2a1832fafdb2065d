// Package vdberr defines the error taxonomy shared across every
// layer of the database: build-time components, the persistence
// layer, and both query engines. Every failure in the module
// classifies into exactly one of the Code values below.
package vdberr

import (
	"errors"
	"fmt"
)

// Code classifies a failure so callers (and transport layers
// translating to gRPC status codes) can branch on it without string
// matching.
type Code int

const (
	// InvalidArgs means the caller violated a precondition:
	// dimension mismatch, out-of-range index, nprobe > P, k = 0.
	InvalidArgs Code = iota
	// InvalidData means an on-disk artifact failed a structural or
	// cross-reference check: zero dimension, D does not divide M,
	// partition ID mismatch between manifest and log, encoded
	// vector length disagrees with D, extra bytes after a zlib
	// stream.
	InvalidData
	// InvalidContext means an invariant the module itself is
	// responsible for maintaining was violated at runtime: empty
	// nprobe selection, a persistent decompressor buffer error.
	InvalidContext
	// VerificationFailure means a computed content hash disagreed
	// with the file name that was supposed to carry it.
	VerificationFailure
	// IO wraps an underlying storage error, surfaced verbatim.
	IO
	// Protobuf wraps a wire-decode error, surfaced verbatim.
	Protobuf
)

func (c Code) String() string {
	switch c {
	case InvalidArgs:
		return "InvalidArgs"
	case InvalidData:
		return "InvalidData"
	case InvalidContext:
		return "InvalidContext"
	case VerificationFailure:
		return "VerificationFailure"
	case IO:
		return "IO"
	case Protobuf:
		return "Protobuf"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned across the module. It
// carries a Code so callers can classify it with errors.As, and
// optionally wraps an underlying cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// InvalidArgsf builds a new InvalidArgs error.
func InvalidArgsf(format string, args ...any) error { return newf(InvalidArgs, format, args...) }

// InvalidDataf builds a new InvalidData error.
func InvalidDataf(format string, args ...any) error { return newf(InvalidData, format, args...) }

// InvalidContextf builds a new InvalidContext error.
func InvalidContextf(format string, args ...any) error { return newf(InvalidContext, format, args...) }

// VerificationFailuref builds a new VerificationFailure error.
func VerificationFailuref(format string, args ...any) error {
	return newf(VerificationFailure, format, args...)
}

// Wrap builds a new error of the given code, wrapping cause.
func Wrap(code Code, cause error, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WrapIO wraps an underlying storage error.
func WrapIO(cause error, format string, args ...any) error {
	return Wrap(IO, cause, format, args...)
}

// WrapProtobuf wraps an underlying wire-decode error.
func WrapProtobuf(cause error, format string, args ...any) error {
	return Wrap(Protobuf, cause, format, args...)
}

// CodeOf extracts the Code from err if it (or something it wraps) is
// an *Error, otherwise returns false.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}

// Is reports whether err classifies as code.
func Is(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
