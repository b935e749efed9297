// Package derrors defines the coded error type shared across services and
// transports. Codes name the failure class; the HTTP layer maps them to
// status codes and decides what is safe to put on the wire.
package derrors

import (
	"errors"
	"net/http"
)

// Code classifies an error for transport mapping and metrics.
type Code string

const (
	CodeBadRequest    Code = "bad_request"
	CodeValidation    Code = "validation_failed"
	CodeAuthProof     Code = "auth_proof_invalid"
	CodeInvalidInvite Code = "invalid_invite"
	CodeRemote        Code = "remote_error"
	CodeNotFound      Code = "not_found"
	CodeInternal      Code = "internal_error"
)

// Error carries a code, a human-readable description, and an optional cause.
type Error struct {
	Code        Code
	Description string
	cause       error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Description + ": " + e.cause.Error()
	}
	return e.Description
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a coded error with no cause.
func New(code Code, description string) *Error {
	return &Error{Code: code, Description: description}
}

// Wrap builds a coded error wrapping cause.
func Wrap(code Code, description string, cause error) *Error {
	return &Error{Code: code, Description: description, cause: cause}
}

// CodeOf extracts the code from err, defaulting to CodeInternal for uncoded
// errors so nothing unclassified leaks details.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternal
}

// DescriptionOf extracts the description from err, empty for uncoded errors.
func DescriptionOf(err error) string {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Description
	}
	return ""
}

// ToHTTPStatus maps a code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidation, CodeAuthProof, CodeInvalidInvite:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRemote:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
