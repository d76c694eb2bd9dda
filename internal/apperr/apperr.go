// Package apperr defines the error taxonomy surfaced to AJAX callers. Every
// failure that crosses the HTTP boundary is converted to an *AppError first.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation Code = "VALIDATION_ERROR"
	CodeAuth       Code = "AUTH_ERROR"
	CodeCredit     Code = "CREDIT_ERROR"
	CodeRateLimit  Code = "RATE_LIMIT_ERROR"
	CodeServer     Code = "SERVER_ERROR"
	CodeSession    Code = "SESSION_ERROR"
	CodeNotFound   Code = "NOT_FOUND"
	CodeInternal   Code = "INTERNAL_ERROR"
)

type AppError struct {
	Code       Code           `json:"code"`
	Message    string         `json:"message"`
	StatusCode int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s - %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails attaches a key/value to the error payload. It mutates and returns e.
func (e *AppError) WithDetails(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func New(code Code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: status}
}

func Wrap(err error, code Code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: status, Err: err}
}

func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

func Auth(message string, status int) *AppError {
	if status != http.StatusForbidden {
		status = http.StatusUnauthorized
	}
	return New(CodeAuth, message, status)
}

func Credit(message string) *AppError {
	return New(CodeCredit, message, http.StatusPaymentRequired)
}

func RateLimit(message string) *AppError {
	return New(CodeRateLimit, message, http.StatusTooManyRequests)
}

func Server(err error, message string) *AppError {
	return Wrap(err, CodeServer, message, http.StatusBadGateway)
}

func Session(message string) *AppError {
	return New(CodeSession, message, http.StatusBadRequest)
}

func NotFound(message string) *AppError {
	return New(CodeNotFound, message, http.StatusNotFound)
}

func Internal(err error, message string) *AppError {
	return Wrap(err, CodeInternal, message, http.StatusInternalServerError)
}

// Is reports whether err carries an AppError with the given code.
func Is(err error, code Code) bool {
	var ae *AppError
	return errors.As(err, &ae) && ae.Code == code
}

// From converts any error into an AppError. Unknown errors become internal errors.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err, "An unexpected error occurred. Please try again later.")
}
