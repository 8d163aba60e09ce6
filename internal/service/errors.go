// Package service provides the business logic of the Amethyst CDN.
package service

import "errors"

// Common service errors.
var (
	// Identity errors
	ErrPasswordRequired = errors.New("password is required")

	// Identifier generation errors
	ErrIdentifierExhausted = errors.New("identifier space exhausted: no free identifier after the configured attempts")

	// Content errors
	ErrUploadMissing = errors.New("upload file is required")

	// General errors
	ErrInternalError = errors.New("internal server error")
)
