/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a lookup matches no live row.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists is returned when an insert collides with a unique key.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrImportLocked is returned when a transactions import is already being
	// processed by someone else.
	ErrImportLocked = errors.New("this import is already being processed, please try again later")
)

// FieldError is a single failed field constraint.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError reports every field constraint an entity failed.
type ValidationError struct {
	Entity string       `json:"entity"`
	Fields []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Error)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Entity, strings.Join(parts, "; "))
}

// Has reports whether field is among the failures.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(entity, field, message string) *ValidationError {
	return &ValidationError{Entity: entity, Fields: []FieldError{{Field: field, Error: message}}}
}

// InvariantError is raised by custom validators and state transition guards.
type InvariantError struct {
	Message string
}

func (e *InvariantError) Error() string { return e.Message }

func Invariant(format string, args ...interface{}) *InvariantError {
	return &InvariantError{Message: fmt.Sprintf(format, args...)}
}

// ProviderError hides the failure of an external provider behind a generic
// message. The cause stays reachable through errors.Unwrap.
type ProviderError struct {
	Message string
	cause   error
}

func NewProviderError(message string, cause error) *ProviderError {
	return &ProviderError{Message: message, cause: cause}
}

func (e *ProviderError) Error() string { return e.Message }

func (e *ProviderError) Unwrap() error { return e.cause }

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsInvariant(err error) bool {
	var v *InvariantError
	return errors.As(err, &v)
}
