package model

import (
	"errors"

	"github.com/rotisserie/eris"
)

// ErrorKind classifies failures for callers that need to react differently
// to bad input, unavailable providers and persistence problems.
type ErrorKind string

const (
	ErrorKindExternal   ErrorKind = "external_service"
	ErrorKindStore      ErrorKind = "store"
	ErrorKindValidation ErrorKind = "validation"
)

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ExternalFailure marks err as a scraping or contact-lookup provider failure.
func ExternalFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: ErrorKindExternal, Op: op, Err: err}
}

// StoreFailure marks err as a persistence failure.
func StoreFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: ErrorKindStore, Op: op, Err: err}
}

// ValidationFailure reports missing or malformed input.
func ValidationFailure(op, msg string) error {
	return &Error{Kind: ErrorKindValidation, Op: op, Err: eris.New(msg)}
}

// KindOf returns the kind of the first classified error in err's chain, or
// "" if there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	return KindOf(err) == ErrorKindValidation
}
