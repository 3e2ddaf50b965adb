// Package errors defines the service error type returned to API clients.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode is a machine readable error code sent to clients.
type ErrorCode string

const (
	CodeBadRequest          ErrorCode = "BAD_REQUEST"
	CodeUnauthorized        ErrorCode = "UNAUTHORIZED"
	CodeInvalidToken        ErrorCode = "INVALID_TOKEN"
	CodeForbidden           ErrorCode = "FORBIDDEN"
	CodeNotFound            ErrorCode = "NOT_FOUND"
	CodeConflict            ErrorCode = "CONFLICT"
	CodeRateLimited         ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeInternal            ErrorCode = "INTERNAL_ERROR"
	CodeInsufficientCredits ErrorCode = "INSUFFICIENT_CREDITS"
	CodeInvalidID           ErrorCode = "INVALID_ID"
	CodeUserIDNotAllowed    ErrorCode = "USER_ID_NOT_ALLOWED"
	CodeMissingField        ErrorCode = "MISSING_REQUIRED_FIELD"
	CodeInvalidField        ErrorCode = "INVALID_FIELD"
)

// ServiceError is an error with an HTTP status and a client facing message.
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"error"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails returns a copy of e with key set in its details.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	cp := *e
	cp.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// New creates a ServiceError.
func New(code ErrorCode, status int, message string) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status}
}

// Wrap creates a ServiceError that wraps err.
func Wrap(err error, code ErrorCode, status int, message string) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

func BadRequest(code ErrorCode, message string) *ServiceError {
	return New(code, http.StatusBadRequest, message)
}

func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "Authentication required"
	}
	return New(CodeUnauthorized, http.StatusUnauthorized, message)
}

func InvalidToken(err error) *ServiceError {
	return Wrap(err, CodeInvalidToken, http.StatusUnauthorized, "Invalid or expired token")
}

func Forbidden(message string) *ServiceError {
	return New(CodeForbidden, http.StatusForbidden, message)
}

func NotFound(message string) *ServiceError {
	return New(CodeNotFound, http.StatusNotFound, message)
}

func Conflict(code ErrorCode, message string) *ServiceError {
	return New(code, http.StatusConflict, message)
}

func PaymentRequired(message string) *ServiceError {
	return New(CodeInsufficientCredits, http.StatusPaymentRequired, message)
}

func Internal(message string, err error) *ServiceError {
	return Wrap(err, CodeInternal, http.StatusInternalServerError, message)
}

// RateLimitExceeded reports a throttled request.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return New(CodeRateLimited, http.StatusTooManyRequests, "Rate limit exceeded").
		WithDetails("limit", limit).
		WithDetails("window", window)
}

// GetServiceError extracts a ServiceError from err's chain.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if stderrors.As(err, &se) {
		return se
	}
	return nil
}

// IsServiceError reports whether err carries a ServiceError.
func IsServiceError(err error) bool {
	return GetServiceError(err) != nil
}
