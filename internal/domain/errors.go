// Package domain contains the core business entities for the Amethyst CDN.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).

var (
	// ===========================================
	// User Errors
	// ===========================================

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates a user with the same email exists.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrInvalidEmail indicates the email does not look like an address.
	ErrInvalidEmail = errors.New("invalid email address")

	// ===========================================
	// Namespace Errors
	// ===========================================

	// ErrNamespaceNotFound indicates the requested namespace does not exist.
	ErrNamespaceNotFound = errors.New("namespace not found")

	// ErrNamespaceAlreadyExists indicates the namespace id is taken.
	ErrNamespaceAlreadyExists = errors.New("namespace already exists")

	// ErrInvalidNamespace indicates the namespace id cannot be used as a path segment.
	ErrInvalidNamespace = errors.New("invalid namespace identifier")

	// ===========================================
	// Content Errors
	// ===========================================

	// ErrContentNotFound indicates the requested content does not exist.
	ErrContentNotFound = errors.New("content not found")

	// ErrContentAlreadyExists indicates content with the same name exists in the namespace.
	ErrContentAlreadyExists = errors.New("content already exists")

	// ErrInvalidContentID indicates the content id cannot be used as a path segment.
	ErrInvalidContentID = errors.New("invalid content identifier")
)

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Resource identifies the affected resource (e.g., namespace, content key).
	Resource string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Resource)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, resource string) *DomainError {
	return &DomainError{
		Err:      err,
		Message:  message,
		Resource: resource,
	}
}
