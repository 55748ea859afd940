// Package apperr defines the error taxonomy shared by the energy, guardian,
// report and mission services, and its mapping onto HTTP status codes.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeModifyLimitExceeded Code = "MODIFY_LIMIT_EXCEEDED"
	CodeInsufficientEnergy  Code = "INSUFFICIENT_ENERGY"
	CodeTerminalStage       Code = "TERMINAL_STAGE"
	CodeGuardianLocked      Code = "GUARDIAN_LOCKED"
	CodeAlreadyClaimed      Code = "ALREADY_CLAIMED"
	CodeNotCompleted        Code = "NOT_COMPLETED"
	CodeConcurrencyConflict Code = "CONCURRENCY_CONFLICT"
	CodeTimeout             Code = "TIMEOUT"
	CodeNotFound            Code = "NOT_FOUND"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeForbidden           Code = "FORBIDDEN"
)

// Error is a domain error. Two errors match under errors.Is when their codes
// are equal and, if the target names a field, the fields are equal too.
type Error struct {
	Code    Code   `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Field == "" || t.Field == e.Field
}

var (
	ErrValidation          = &Error{Code: CodeValidation, Message: "invalid input"}
	ErrMissingTeam         = &Error{Code: CodeValidation, Field: "team_id", Message: "team is required"}
	ErrModifyLimitExceeded = &Error{Code: CodeModifyLimitExceeded, Message: "report modification limit reached for this day"}
	ErrInsufficientEnergy  = &Error{Code: CodeInsufficientEnergy, Message: "not enough energy"}
	ErrTerminalStage       = &Error{Code: CodeTerminalStage, Message: "guardian is already at its final stage"}
	ErrGuardianLocked      = &Error{Code: CodeGuardianLocked, Message: "guardian is locked"}
	ErrAlreadyClaimed      = &Error{Code: CodeAlreadyClaimed, Message: "reward already claimed"}
	ErrNotCompleted        = &Error{Code: CodeNotCompleted, Message: "mission not completed"}
	ErrConcurrencyConflict = &Error{Code: CodeConcurrencyConflict, Message: "concurrent update, please retry"}
	ErrTimeout             = &Error{Code: CodeTimeout, Message: "the request timed out, please try again"}
	ErrNotFound            = &Error{Code: CodeNotFound, Message: "not found"}
	ErrUnauthorized        = &Error{Code: CodeUnauthorized, Message: "authentication required"}
	ErrForbidden           = &Error{Code: CodeForbidden, Message: "not allowed"}
)

// Validation returns a validation error for one field.
func Validation(field, message string) *Error {
	return &Error{Code: CodeValidation, Field: field, Message: message}
}

// NotFound returns a not-found error naming the missing thing.
func NotFound(what string) *Error {
	return &Error{Code: CodeNotFound, Message: what + " not found"}
}

// FromContext converts context expiry into ErrTimeout and leaves other errors alone.
func FromContext(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}

// HTTPStatus maps an error onto a response status; unknown errors are 500.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeGuardianLocked:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeModifyLimitExceeded, CodeInsufficientEnergy, CodeAlreadyClaimed, CodeNotCompleted, CodeConcurrencyConflict:
		return http.StatusConflict
	case CodeTerminalStage:
		return http.StatusOK
	case CodeTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
