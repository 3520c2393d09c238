package bencode

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	ErrSyntax     = errors.New("bencode: syntax error")
	ErrShape      = errors.New("bencode: shape mismatch")
	ErrConversion = errors.New("bencode: conversion failed")
	ErrClosed     = errors.New("bencode: cursor closed before it was fully read")
	ErrNilValue   = errors.New("bencode: cannot encode nil value")
)

// ErrorKind classifies a decode failure.
type ErrorKind uint8

const (
	// KindSyntax is a grammar violation or premature end of input.
	KindSyntax ErrorKind = iota + 1
	// KindShape is a token kind that does not fit the requested target.
	KindShape
	// KindConversion is a numeric overflow, invalid UTF-8 or custom unmarshal failure.
	KindConversion
)

func (k ErrorKind) String() string {
	switch k {
	case KindSyntax:
		return "syntax error"
	case KindShape:
		return "shape mismatch"
	case KindConversion:
		return "conversion failed"
	default:
		return "unknown error"
	}
}

// Error is the single error type of the package. Offset is the byte offset in
// the input where the failure was detected.
type Error struct {
	Kind   ErrorKind
	Offset int
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bencode: %s at offset %d: %s: %v", e.Kind, e.Offset, e.Msg, e.Err)
	}
	return fmt.Sprintf("bencode: %s at offset %d: %s", e.Kind, e.Offset, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrSyntax:
		return e.Kind == KindSyntax
	case ErrShape:
		return e.Kind == KindShape
	case ErrConversion:
		return e.Kind == KindConversion
	}
	return false
}

func syntaxErrorf(offset int, format string, args ...any) error {
	return &Error{Kind: KindSyntax, Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

func shapeError(offset int, expected, found string) error {
	return &Error{Kind: KindShape, Offset: offset, Msg: "expected " + expected + ", found " + found}
}

func shapeErrorf(offset int, format string, args ...any) error {
	return &Error{Kind: KindShape, Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

func conversionError(offset int, msg string, err error) error {
	return &Error{Kind: KindConversion, Offset: offset, Msg: msg, Err: err}
}

// MissingFieldError indicates a required record field was absent from a dict.
type MissingFieldError struct {
	Type  string
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field %q in %s", e.Field, e.Type)
}

// InvalidUnmarshalError describes an invalid argument passed to Unmarshal.
// (The argument must be a non-nil pointer.)
type InvalidUnmarshalError struct {
	Type reflect.Type
}

func (e *InvalidUnmarshalError) Error() string {
	if e.Type == nil {
		return "bencode: Unmarshal(nil)"
	}
	if e.Type.Kind() != reflect.Pointer {
		return "bencode: Unmarshal(non-pointer " + e.Type.String() + ")"
	}
	return "bencode: Unmarshal(nil " + e.Type.String() + ")"
}

// UnsupportedTypeError is returned when a Go type has no bencode shape.
type UnsupportedTypeError struct {
	Type reflect.Type
}

func (e *UnsupportedTypeError) Error() string {
	return "bencode: unsupported type: " + e.Type.String()
}
