package domain

import (
	"regexp"
	"time"
)

var namespacePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// Namespace is a tenant-like grouping of content owned by one user.
type Namespace struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNamespace creates a namespace owned by email.
func NewNamespace(id, email string) *Namespace {
	return &Namespace{
		ID:        id,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
}

// ValidateNamespaceID checks that id is usable as a single path segment.
func ValidateNamespaceID(id string) error {
	if !namespacePattern.MatchString(id) {
		return NewDomainError(ErrInvalidNamespace, "namespace must be 1-64 letters, digits, '_' or '-'", id)
	}
	return nil
}
