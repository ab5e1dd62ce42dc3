// Package errors provides standardized error handling for the reels service.
// Every failure surfaced by the feed core or the HTTP shell is an *Error
// carrying one of the codes below.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a standardized error code for the reels service.
type ErrorCode string

const (
	// Engagement errors
	FEED_NOT_AUTHENTICATED ErrorCode = "FEED_NOT_AUTHENTICATED" // No signed-in user
	FEED_EMPTY_INPUT       ErrorCode = "FEED_EMPTY_INPUT"       // Blank comment or chat text
	FEED_TX_FAILED         ErrorCode = "FEED_TX_FAILED"         // Document store transaction aborted
	FEED_STORE_UNAVAILABLE ErrorCode = "FEED_STORE_UNAVAILABLE" // Running in read-only demo mode
	FEED_BUSY              ErrorCode = "FEED_BUSY"              // A like toggle is already in flight

	// Request errors
	FEED_VALIDATION ErrorCode = "FEED_VALIDATION" // General validation error
	FEED_NOT_FOUND  ErrorCode = "FEED_NOT_FOUND"  // Resource not found

	// Authentication errors
	FEED_AUTHN       ErrorCode = "FEED_AUTHN"       // Missing or malformed credentials
	FEED_JWT_INVALID ErrorCode = "FEED_JWT_INVALID" // Token failed verification

	// Server errors
	FEED_INTERNAL ErrorCode = "FEED_INTERNAL" // Internal server error
)

// Sentinels for errors.Is comparisons. Matching is by code only.
var (
	ErrNotAuthenticated  = New(FEED_NOT_AUTHENTICATED, "sign in required", "")
	ErrEmptyInput        = New(FEED_EMPTY_INPUT, "text must not be empty", "")
	ErrTransactionFailed = New(FEED_TX_FAILED, "transaction failed", "")
	ErrStoreUnavailable  = New(FEED_STORE_UNAVAILABLE, "data storage is disabled", "")
	ErrBusy              = New(FEED_BUSY, "operation already in progress", "")
)

// Error represents a standardized error response.
type Error struct {
	Code          ErrorCode   `json:"code"`
	Message       string      `json:"message"`
	CorrelationID string      `json:"correlationId"`
	Details       interface{} `json:"details,omitempty"`
	HTTPStatus    int         `json:"-"`
	Err           error       `json:"-"`
}

// New creates a new Error with the specified code and message.
func New(code ErrorCode, message string, correlationID string) *Error {
	return &Error{
		Code:          code,
		Message:       message,
		CorrelationID: correlationID,
		HTTPStatus:    httpStatusCodeForCode(code),
	}
}

// NewWithDetails creates a new Error with the specified code, message, and details.
func NewWithDetails(code ErrorCode, message string, correlationID string, details interface{}) *Error {
	e := New(code, message, correlationID)
	e.Details = details
	return e
}

// Wrap creates a new Error that records cause as its underlying error.
func Wrap(code ErrorCode, message string, cause error) *Error {
	e := New(code, message, "")
	e.Err = cause
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Details != nil {
		msg = fmt.Sprintf("%s (details: %v)", msg, e.Details)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithCorrelationID returns a copy of e stamped with the given correlation id.
func (e *Error) WithCorrelationID(correlationID string) *Error {
	c := *e
	c.CorrelationID = correlationID
	return &c
}

// CodeOf extracts the ErrorCode from err, or FEED_INTERNAL when err is not an *Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return FEED_INTERNAL
}

// httpStatusCodeForCode maps error codes to HTTP status codes.
func httpStatusCodeForCode(code ErrorCode) int {
	switch code {
	case FEED_VALIDATION, FEED_EMPTY_INPUT:
		return http.StatusBadRequest
	case FEED_NOT_AUTHENTICATED, FEED_AUTHN, FEED_JWT_INVALID:
		return http.StatusUnauthorized
	case FEED_NOT_FOUND:
		return http.StatusNotFound
	case FEED_TX_FAILED:
		return http.StatusConflict
	case FEED_BUSY:
		return http.StatusTooManyRequests
	case FEED_STORE_UNAVAILABLE:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
