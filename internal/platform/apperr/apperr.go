// Copyright (c) 2026 Inkwell. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apperr defines the centralized error handling framework for Inkwell.

It provides a rich error type that bridges the gap between the content core's
error kinds and high-level HTTP responses.

Architecture:

  - AppError: A struct containing a machine-readable ErrorCode and a user-friendly message.
  - Kinds: Every operation in the core fails with exactly one of BadRequest,
    NotFound, NotAuthorized, or Generic.
  - Mapping: Explicit mapping from AppError to standard HTTP Status Codes.

Every error that leaves the service layer should be wrapped as an [AppError] to ensure
consistent API responses. No exceptions cross the core boundary for expected
conditions; helpers convert at every public entry point.
*/
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the canonical error type for the Inkwell core.
//
// It carries an HTTP status code, a machine-readable code, and a client-safe
// message. BadRequest messages are always path-qualified and directly
// actionable (type name, field name, constraint violated) so callers can
// surface them verbatim.
//
// # Security
//
// The Cause field is for server-side logging only and is never sent to clients
// to avoid leaking internal implementation details (e.g., SQL queries).
type AppError struct {
	// Code is a machine-readable error identifier (e.g. "BAD_REQUEST", "NOT_FOUND").
	Code string `json:"code"`
	// Message is a human-readable description safe to return to the client.
	Message string `json:"error"`
	// HTTPStatus is the HTTP response status code.
	HTTPStatus int `json:"-"`
	// Cause is the underlying error, used for server-side logging only.
	Cause error `json:"-"`
}

// Error implements the error interface. It returns the client-safe message.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

// # Error Kinds

// BadRequest creates a 400 [AppError] for malformed input, schema violations,
// and validation failures.
func BadRequest(msg string) *AppError {
	return &AppError{
		Code:       "BAD_REQUEST",
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
	}
}

// BadRequestf creates a 400 [AppError] with a formatted message.
func BadRequestf(format string, args ...any) *AppError {
	return BadRequest(fmt.Sprintf(format, args...))
}

// NotFound creates a 404 [AppError] for a named resource.
//
// Example:
//
//	apperr.NotFound("Entity") // Returns "Entity not found"
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       "NOT_FOUND",
		Message:    resource + " not found",
		HTTPStatus: http.StatusNotFound,
	}
}

// NotFoundf creates a 404 [AppError] with a formatted message, used for
// aggregate lookups that need to name every missing id in one message.
func NotFoundf(format string, args ...any) *AppError {
	return &AppError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf(format, args...),
		HTTPStatus: http.StatusNotFound,
	}
}

// NotAuthorized creates a 403 [AppError] for authKey/session mismatches.
func NotAuthorized(msg string) *AppError {
	return &AppError{
		Code:       "NOT_AUTHORIZED",
		Message:    msg,
		HTTPStatus: http.StatusForbidden,
	}
}

// Unauthorized creates a 401 [AppError] for missing or invalid credentials.
func Unauthorized(msg string) *AppError {
	return &AppError{
		Code:       "UNAUTHORIZED",
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Generic creates a 500 [AppError] wrapping an unexpected server-side error.
// The cause is stored for logging but is never sent to the client.
func Generic(cause error) *AppError {
	return &AppError{
		Code:       "GENERIC",
		Message:    "An unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// # Helpers

// IsAppError reports whether err (or any error in its chain) is an [*AppError].
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// As extracts the [*AppError] from err's chain. It returns nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// IsBadRequest reports whether err is a BadRequest [AppError].
func IsBadRequest(err error) bool {
	ae := As(err)
	return ae != nil && ae.Code == "BAD_REQUEST"
}

// IsNotFound reports whether err is a NotFound [AppError].
func IsNotFound(err error) bool {
	ae := As(err)
	return ae != nil && ae.Code == "NOT_FOUND"
}
