/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
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

/*
Package errors provides structured error handling for FlySearch.

The errors package implements a coded, categorized error system with:
  - Error categories (Validation, Storage, Execution, Search)
  - Error codes for programmatic handling
  - User-friendly error messages with optional detail and hint
  - Cause chains built on github.com/cockroachdb/errors

Error Categories:
  - ValidationError: the statement was rejected before any data was fetched
  - StorageError: a storage bridge lookup failed
  - ExecutionError: the embedded engine rejected or failed to evaluate a statement
  - SearchError: the opaque failure returned when a pipeline stage fails

Propagation:
===========

Only validation errors and search failures cross the public search
boundary. Storage errors are logged and swallowed by the fetch stages,
and execution errors raised inside a stage are replaced by ErrSearchFailed
so that storage internals never reach API consumers.
*/
package errors

import (
	"fmt"

	crdberrors "github.com/cockroachdb/errors"
)

// ErrorCode represents a unique error identifier.
type ErrorCode int

const (
	// Execution errors (2000-2999)
	ErrCodeExecution       ErrorCode = 2000
	ErrCodeTableNotFound   ErrorCode = 2001
	ErrCodeColumnNotFound  ErrorCode = 2002
	ErrCodeTypeMismatch    ErrorCode = 2003
	ErrCodeDivisionByZero  ErrorCode = 2008
	ErrCodeUnknownFunction ErrorCode = 2010
	ErrCodeAmbiguousColumn ErrorCode = 2011

	// Storage errors (5000-5999)
	ErrCodeStorage       ErrorCode = 5000
	ErrCodeSchemaMissing ErrorCode = 5005
	ErrCodeMissingHash   ErrorCode = 5006

	// Validation errors (6000-6999)
	ErrCodeValidation      ErrorCode = 6000
	ErrCodeInvalidValue    ErrorCode = 6001
	ErrCodeValueOutOfRange ErrorCode = 6002
	ErrCodeInvalidFormat   ErrorCode = 6003
	ErrCodeMissingRequired ErrorCode = 6004
	ErrCodeUnsupported     ErrorCode = 6005

	// Search errors (7000-7999)
	ErrCodeSearchFailed ErrorCode = 7000
)

// Category represents the error category.
type Category string

const (
	CategoryExecution  Category = "EXECUTION"
	CategoryStorage    Category = "STORAGE"
	CategoryValidation Category = "VALIDATION"
	CategorySearch     Category = "SEARCH"
)

// Error represents a structured error in FlySearch.
type Error struct {
	Code     ErrorCode
	Category Category
	Message  string
	Detail   string
	Hint     string
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("ERROR %d (%s): %s - %s", e.Code, e.Category, e.Message, e.Detail)
	}
	return fmt.Sprintf("ERROR %d (%s): %s", e.Code, e.Category, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same error code. It lets
// callers match sentinels such as ErrSearchFailed with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// UserMessage returns a user-friendly error message.
func (e *Error) UserMessage() string {
	msg := fmt.Sprintf("ERROR: %s", e.Message)
	if e.Detail != "" {
		msg += fmt.Sprintf(" (%s)", e.Detail)
	}
	if e.Hint != "" {
		msg += fmt.Sprintf("\nHINT: %s", e.Hint)
	}
	return msg
}

// WithDetail returns a copy of the error with detail attached.
func (e *Error) WithDetail(detail string) *Error {
	c := *e
	c.Detail = detail
	return &c
}

// WithHint returns a copy of the error with a hint attached.
func (e *Error) WithHint(hint string) *Error {
	c := *e
	c.Hint = hint
	return &c
}

// WithCause returns a copy of the error wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	c := *e
	c.Cause = cause
	return &c
}

// ErrSearchFailed is the opaque error returned when a search pipeline stage
// fails. It never carries a cause.
var ErrSearchFailed = &Error{
	Code:     ErrCodeSearchFailed,
	Category: CategorySearch,
	Message:  "search failed",
}

// ============================================================================
// Validation Error Constructors
// ============================================================================

// NewValidationError creates a new validation error.
func NewValidationError(message string) *Error {
	return &Error{
		Code:     ErrCodeValidation,
		Category: CategoryValidation,
		Message:  message,
	}
}

// Unsupported creates an error for a construct the executor rejects.
func Unsupported(construct string) *Error {
	return &Error{
		Code:     ErrCodeUnsupported,
		Category: CategoryValidation,
		Message:  fmt.Sprintf("%s is not supported", construct),
	}
}

// MissingRequired creates an error for a missing required input.
func MissingRequired(field string) *Error {
	return &Error{
		Code:     ErrCodeMissingRequired,
		Category: CategoryValidation,
		Message:  fmt.Sprintf("%s is required", field),
	}
}

// InvalidValue creates an error for an invalid value.
func InvalidValue(field, reason string) *Error {
	return &Error{
		Code:     ErrCodeInvalidValue,
		Category: CategoryValidation,
		Message:  fmt.Sprintf("invalid value for '%s'", field),
		Detail:   reason,
	}
}

// ColumnNotFound creates an error for a column that no table provides.
func ColumnNotFound(column string) *Error {
	return &Error{
		Code:     ErrCodeColumnNotFound,
		Category: CategoryValidation,
		Message:  fmt.Sprintf("column '%s' does not exist", column),
	}
}

// AmbiguousColumn creates an error for an unqualified column defined by
// more than one table.
func AmbiguousColumn(column string, tables ...string) *Error {
	return &Error{
		Code:     ErrCodeAmbiguousColumn,
		Category: CategoryValidation,
		Message:  fmt.Sprintf("column '%s' is ambiguous", column),
		Detail:   fmt.Sprintf("defined by %v", tables),
		Hint:     "Qualify the column with a table name or alias.",
	}
}

// ============================================================================
// Execution Error Constructors
// ============================================================================

// NewExecutionError creates a new execution error.
func NewExecutionError(message string) *Error {
	return &Error{
		Code:     ErrCodeExecution,
		Category: CategoryExecution,
		Message:  message,
	}
}

// TableNotFound creates an error for a missing table or input relation.
func TableNotFound(table string) *Error {
	return &Error{
		Code:     ErrCodeTableNotFound,
		Category: CategoryExecution,
		Message:  fmt.Sprintf("table '%s' does not exist", table),
	}
}

// UnknownFunction creates an error for a function the engine does not know.
func UnknownFunction(name string) *Error {
	return &Error{
		Code:     ErrCodeUnknownFunction,
		Category: CategoryExecution,
		Message:  fmt.Sprintf("function '%s' does not exist", name),
	}
}

// TypeMismatch creates an error for an operand of the wrong type.
func TypeMismatch(op string, value interface{}) *Error {
	return &Error{
		Code:     ErrCodeTypeMismatch,
		Category: CategoryExecution,
		Message:  fmt.Sprintf("operator %s cannot be applied", op),
		Detail:   fmt.Sprintf("operand %v (%T)", value, value),
	}
}

// DivisionByZero creates an error for a division by zero.
func DivisionByZero() *Error {
	return &Error{
		Code:     ErrCodeDivisionByZero,
		Category: CategoryExecution,
		Message:  "division by zero",
	}
}

// ============================================================================
// Storage Error Constructors
// ============================================================================

// NewStorageError creates a new storage error.
func NewStorageError(message string) *Error {
	return &Error{
		Code:     ErrCodeStorage,
		Category: CategoryStorage,
		Message:  message,
	}
}

// SchemaMissing creates an error for an unknown schema or table.
func SchemaMissing(schema, table string) *Error {
	return &Error{
		Code:     ErrCodeSchemaMissing,
		Category: CategoryStorage,
		Message:  fmt.Sprintf("table '%s.%s' does not exist", schema, table),
	}
}

// MissingHash creates an error for a record without a usable hash value.
func MissingHash(table, hashAttribute string) *Error {
	return &Error{
		Code:     ErrCodeMissingHash,
		Category: CategoryStorage,
		Message:  fmt.Sprintf("record in '%s' has no value for hash attribute '%s'", table, hashAttribute),
	}
}

// ============================================================================
// Helper Functions
// ============================================================================

// Wrapf wraps err with a formatted message, keeping the stack trace.
func Wrapf(err error, format string, args ...interface{}) error {
	return crdberrors.Wrapf(err, format, args...)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return crdberrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return crdberrors.As(err, target)
}

func categoryOf(err error) Category {
	var e *Error
	if crdberrors.As(err, &e) {
		return e.Category
	}
	return ""
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	return categoryOf(err) == CategoryValidation
}

// IsStorageError checks if an error is a storage error.
func IsStorageError(err error) bool {
	return categoryOf(err) == CategoryStorage
}

// IsExecutionError checks if an error is an execution error.
func IsExecutionError(err error) bool {
	return categoryOf(err) == CategoryExecution
}

// IsSearchFailed checks if an error is the opaque search failure.
func IsSearchFailed(err error) bool {
	return crdberrors.Is(err, ErrSearchFailed)
}

// GetCode returns the error code if err is an *Error, or 0 otherwise.
func GetCode(err error) ErrorCode {
	var e *Error
	if crdberrors.As(err, &e) {
		return e.Code
	}
	return 0
}

// FormatError formats an error for user display.
func FormatError(err error) string {
	var e *Error
	if crdberrors.As(err, &e) {
		return e.UserMessage()
	}
	return fmt.Sprintf("ERROR: %v", err)
}
