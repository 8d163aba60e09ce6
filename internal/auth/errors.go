// Package auth verifies the email, password and token parameters of CDN requests.
package auth

import (
	"errors"
	"net/http"
)

// Error is an authentication failure with the HTTP status it maps to.
type Error struct {
	// Status is the HTTP status code.
	Status int

	// Code is the error name written in responses.
	Code string

	// Message is the human-readable explanation.
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Authentication failures.
var (
	ErrEmailMissing = &Error{
		Status:  http.StatusUnauthorized,
		Code:    "Unauthorized",
		Message: "IdentityRejected: You must specify the email address associated with your account using a Multi-part Form body. Please use 'email' as the key.",
	}
	ErrEmailUnknown = &Error{
		Status:  http.StatusConflict,
		Code:    "Conflict",
		Message: "IdentityRejected: The requested email may already exist, require verification, or be permanently disabled.",
	}
	ErrPasswordMissing = &Error{
		Status:  http.StatusUnauthorized,
		Code:    "Unauthorized",
		Message: "IdentityRejected: You must specify the password associated with your account using a Multi-part Form body. Please use 'password' as the key.",
	}
	ErrPasswordMismatch = &Error{
		Status:  http.StatusUnauthorized,
		Code:    "Unauthorized",
		Message: "IdentityRejected: The request password may be incorrect, disabled, or throttled to prevent abuse.",
	}
	ErrTokenMissing = &Error{
		Status:  http.StatusUnauthorized,
		Code:    "Unauthorized",
		Message: "IdentityRejected: You must specify the token associated with your account using a Multi-part Form body. Please use 'token' as the key.",
	}
	ErrTokenMismatch = &Error{
		Status:  http.StatusUnauthorized,
		Code:    "Unauthorized",
		Message: "IdentityRejected: The request token may be incorrect, throttled, or be permanently disabled to prevent abuse.",
	}
)

// AsError returns the *Error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}
