/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package errors

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	// ErrNotFound is returned when a database, collection or document does not exist
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists is returned when attempting to create a resource that already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput is returned when input validation fails before any request is sent
	ErrInvalidInput = errors.New("invalid input")

	// ErrPreconditionFailed is returned when an IfMatch version token no longer matches
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrUnauthorized is returned when the store rejects the caller's credentials
	ErrUnauthorized = errors.New("unauthorized")

	// ErrThrottled is returned when the store refuses a request because of rate limits
	ErrThrottled = errors.New("request throttled")

	// ErrMalformed is returned when the store (or the query parser) rejects a request as malformed
	ErrMalformed = errors.New("malformed request")

	// ErrTransport is returned for any other failure talking to the store
	ErrTransport = errors.New("transport error")
)

// Kind classifies an error for reporting.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindAlreadyExists
	KindInvalidInput
	KindPreconditionFailed
	KindUnauthorized
	KindThrottled
	KindMalformed
	KindTransport
)

var kindNames = map[Kind]string{
	KindUnknown:            "Unknown",
	KindNotFound:           "NotFound",
	KindAlreadyExists:      "AlreadyExists",
	KindInvalidInput:       "InvalidInput",
	KindPreconditionFailed: "PreconditionFailed",
	KindUnauthorized:       "Unauthorized",
	KindThrottled:          "Throttled",
	KindMalformed:          "Malformed",
	KindTransport:          "TransportError",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// kindOrder is checked in sequence; the first sentinel matched wins.
var kindOrder = []struct {
	kind     Kind
	sentinel error
}{
	{KindNotFound, ErrNotFound},
	{KindAlreadyExists, ErrAlreadyExists},
	{KindInvalidInput, ErrInvalidInput},
	{KindPreconditionFailed, ErrPreconditionFailed},
	{KindUnauthorized, ErrUnauthorized},
	{KindThrottled, ErrThrottled},
	{KindMalformed, ErrMalformed},
	{KindTransport, ErrTransport},
}

// KindOf returns the Kind of err, or KindUnknown when err matches no sentinel.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, k := range kindOrder {
		if errors.Is(err, k.sentinel) {
			return k.kind
		}
	}
	return KindUnknown
}

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Type string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with key %q not found", e.Type, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// AlreadyExistsError represents an error when a resource already exists
type AlreadyExistsError struct {
	Type string
	Key  string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s with key %q already exists", e.Type, e.Key)
}

func (e *AlreadyExistsError) Is(target error) bool {
	return target == ErrAlreadyExists
}

// ValidationError represents an input validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %q: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// ConditionFailedError represents a write rejected because the stored version changed
type ConditionFailedError struct {
	Operation string
	Condition string
}

func (e *ConditionFailedError) Error() string {
	return fmt.Sprintf("condition check failed for %s operation: %s", e.Operation, e.Condition)
}

func (e *ConditionFailedError) Is(target error) bool {
	return target == ErrPreconditionFailed
}

// ResourceError attaches the attempted operation and resource path to an error
// returned by a transport, so callers can log and abort with full context.
//
// The wrapped error keeps its kind:
//
//	var rErr *errors.ResourceError
//	if errors.As(err, &rErr) {
//	    log.Printf("%s %s failed: %v", rErr.Op, rErr.Path, rErr.Err)
//	}
type ResourceError struct {
	Op   string
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// Helper functions for creating errors

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resourceType, key string) error {
	return &NotFoundError{Type: resourceType, Key: key}
}

// NewAlreadyExistsError creates a new AlreadyExistsError
func NewAlreadyExistsError(resourceType, key string) error {
	return &AlreadyExistsError{Type: resourceType, Key: key}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NewConditionFailedError creates a new ConditionFailedError
func NewConditionFailedError(operation, condition string) error {
	return &ConditionFailedError{Operation: operation, Condition: condition}
}

// Wrap returns a ResourceError for op on path. A nil err stays nil.
func Wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &ResourceError{Op: op, Path: path, Err: err}
}

// Malformed returns an error matching ErrMalformed with the given detail.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsConditionFailed checks if an error is a failed version precondition
func IsConditionFailed(err error) bool {
	return errors.Is(err, ErrPreconditionFailed)
}

// IsThrottled checks if an error is a throttling error
func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}

// IsUnauthorized checks if an error is an authorization error
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsMalformed checks if an error is a malformed request error
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformed)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
