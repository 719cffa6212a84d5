/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("document", "Andersen.1")

	expected := `document with key "Andersen.1" not found`
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}

	if !errors.Is(err, ErrNotFound) {
		t.Error("NotFoundError should match ErrNotFound")
	}

	if !IsNotFound(err) {
		t.Error("IsNotFound should return true for NotFoundError")
	}
}

func TestAlreadyExistsError(t *testing.T) {
	err := NewAlreadyExistsError("database", "FamilyDB")

	expected := `database with key "FamilyDB" already exists`
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}

	if !errors.Is(err, ErrAlreadyExists) {
		t.Error("AlreadyExistsError should match ErrAlreadyExists")
	}

	if !IsAlreadyExists(err) {
		t.Error("IsAlreadyExists should return true for AlreadyExistsError")
	}
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		message  string
		expected string
	}{
		{
			name:     "with field",
			field:    "id",
			message:  "must not be empty",
			expected: `validation failed for field "id": must not be empty`,
		},
		{
			name:     "without field",
			field:    "",
			message:  "database name is required",
			expected: "validation failed: database name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidationError(tt.field, tt.message)

			if err.Error() != tt.expected {
				t.Errorf("Expected error message %q, got %q", tt.expected, err.Error())
			}

			if !errors.Is(err, ErrInvalidInput) {
				t.Error("ValidationError should match ErrInvalidInput")
			}

			if !IsValidationError(err) {
				t.Error("IsValidationError should return true for ValidationError")
			}
		})
	}
}

func TestConditionFailedError(t *testing.T) {
	err := NewConditionFailedError("replace", `_etag = "abc"`)

	expected := `condition check failed for replace operation: _etag = "abc"`
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}

	if !IsConditionFailed(err) {
		t.Error("IsConditionFailed should return true for ConditionFailedError")
	}
}

func TestResourceError(t *testing.T) {
	cause := NewNotFoundError("collection", "FamilyCollection")
	err := Wrap("read", "/databases/FamilyDB/collections/FamilyCollection", cause)

	expected := `read /databases/FamilyDB/collections/FamilyCollection: collection with key "FamilyCollection" not found`
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}

	if !IsNotFound(err) {
		t.Error("ResourceError should keep the kind of the wrapped error")
	}

	var rErr *ResourceError
	if !errors.As(err, &rErr) {
		t.Fatal("errors.As should find the ResourceError")
	}
	if rErr.Op != "read" {
		t.Errorf("Expected op read, got %q", rErr.Op)
	}

	if Wrap("read", "/databases/x", nil) != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		kind Kind
	}{
		{nil, KindUnknown},
		{errors.New("boom"), KindUnknown},
		{NewNotFoundError("document", "1"), KindNotFound},
		{Wrap("create", "/databases/d", NewAlreadyExistsError("database", "d")), KindAlreadyExists},
		{fmt.Errorf("scan: %w", ErrThrottled), KindThrottled},
		{Malformed("unexpected token %q", "FROM"), KindMalformed},
		{fmt.Errorf("dial: %w", ErrTransport), KindTransport},
		{ErrUnauthorized, KindUnauthorized},
		{NewConditionFailedError("delete", "etag"), KindPreconditionFailed},
		{NewValidationError("id", "empty"), KindInvalidInput},
	}

	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.kind {
			t.Errorf("KindOf(%v) = %s, want %s", tt.err, got, tt.kind)
		}
	}

	if KindTransport.String() != "TransportError" {
		t.Errorf("unexpected kind name %q", KindTransport.String())
	}
}

func TestErrorWrapping(t *testing.T) {
	original := NewNotFoundError("document", "123")
	wrapped := fmt.Errorf("replace failed: %w", original)

	if !errors.Is(wrapped, ErrNotFound) {
		t.Error("Wrapped NotFoundError should still match ErrNotFound")
	}

	if !IsNotFound(wrapped) {
		t.Error("IsNotFound should work with wrapped errors")
	}
}

func TestSentinelErrors(t *testing.T) {
	sentinels := []error{
		ErrNotFound,
		ErrAlreadyExists,
		ErrInvalidInput,
		ErrPreconditionFailed,
		ErrUnauthorized,
		ErrThrottled,
		ErrMalformed,
		ErrTransport,
	}

	for i, err1 := range sentinels {
		for j, err2 := range sentinels {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("Sentinel errors should be distinct: %v matches %v", err1, err2)
			}
		}
	}
}
