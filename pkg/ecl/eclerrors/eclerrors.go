// Package eclerrors defines the engine's error taxonomy: ParseError,
// LookupError, ResourceError, and UnsupportedFeature. Each wraps the
// underlying cause with go-errors/errors so a caller that logs the error
// also gets a stack trace pointing at the call site that produced it,
// following the same embed-and-Unwrap shape as this codebase's other
// error types.
package eclerrors

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// ParseError reports that ECL source did not conform to the grammar.
type ParseError struct {
	error
	Offset  int
	Message string
}

func (e *ParseError) Unwrap() error { return e.error }

// NewParseError builds a ParseError for the given byte offset and reason.
func NewParseError(offset int, format string, args ...any) *ParseError {
	message := fmt.Sprintf(format, args...)
	return &ParseError{
		error:   goerrors.Errorf("parse error at offset %d: %s", offset, message),
		Offset:  offset,
		Message: message,
	}
}

// LookupKind identifies which backend lookup failed.
type LookupKind int

const (
	LookupConcept LookupKind = iota
	LookupRefset
	LookupAttribute
	LookupAlternateIdentifier
)

func (k LookupKind) String() string {
	switch k {
	case LookupConcept:
		return "concept"
	case LookupRefset:
		return "refset"
	case LookupAttribute:
		return "attribute"
	case LookupAlternateIdentifier:
		return "alternate identifier"
	default:
		return "unknown"
	}
}

// LookupError reports that a referenced identifier does not resolve
// against the backend.
type LookupError struct {
	error
	Kind LookupKind
	Key  string
}

func (e *LookupError) Unwrap() error { return e.error }

// NewLookupError builds a LookupError for the given kind and key.
func NewLookupError(kind LookupKind, key string) *LookupError {
	return &LookupError{
		error: goerrors.Errorf("%s not found: %s", kind, key),
		Kind:  kind,
		Key:   key,
	}
}

// ResourceErrorKind distinguishes the two resource-exhaustion cases the
// engine guards against.
type ResourceErrorKind int

const (
	ResourceTimeout ResourceErrorKind = iota
	ResourceTooLarge
)

// ResourceError reports that a query exceeded a configured resource
// guard: its deadline, or its maximum result size.
type ResourceError struct {
	error
	Kind  ResourceErrorKind
	Limit int
	Count int
}

func (e *ResourceError) Unwrap() error { return e.error }

// NewTimeoutError builds a ResourceError for a deadline exceeded mid-query.
func NewTimeoutError() *ResourceError {
	return &ResourceError{
		error: goerrors.Errorf("query timed out"),
		Kind:  ResourceTimeout,
	}
}

// NewResultTooLargeError builds a ResourceError for a result set that
// exceeded the configured maximum size.
func NewResultTooLargeError(count, limit int) *ResourceError {
	return &ResourceError{
		error: goerrors.Errorf("result set too large: %d exceeds limit %d", count, limit),
		Kind:  ResourceTooLarge,
		Count: count,
		Limit: limit,
	}
}

// UnsupportedFeature reports that the source named a grammar construct
// the engine recognizes but does not yet evaluate.
type UnsupportedFeature struct {
	error
	Feature string
}

func (e *UnsupportedFeature) Unwrap() error { return e.error }

// NewUnsupportedFeature builds an UnsupportedFeature error.
func NewUnsupportedFeature(feature string) *UnsupportedFeature {
	return &UnsupportedFeature{
		error:   goerrors.Errorf("unsupported ECL feature: %s", feature),
		Feature: feature,
	}
}
