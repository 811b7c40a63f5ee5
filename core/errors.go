// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"errors"
	"fmt"
)

// Domain validation errors
var (
	// ErrValidation is the root of all request validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrNoTexts indicates an ingest request carried no texts.
	ErrNoTexts = errors.New("texts must be a non-empty array")

	// ErrEmptyContent indicates every supplied text was empty after chunking.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyQuery indicates a query request carried no query text.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrEmptyDocumentID indicates a delete request carried no document ID.
	ErrEmptyDocumentID = errors.New("documentId cannot be empty")

	// ErrInvalidLimit indicates a negative result limit.
	ErrInvalidLimit = errors.New("limit must not be negative")
)

// ValidationError reports a rejected request field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Err)
}

// Unwrap allows errors.Is to match both ErrValidation and the field cause.
func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}
