// Package domain contains the core business entities for the Amethyst CDN.
// These are pure Go structs with no external dependencies, representing
// users, their namespaces and the content index.
package domain

import (
	"regexp"
	"time"
)

// Role is the privilege level of a user.
type Role string

const (
	// RoleAdmin is given to the first account ever registered.
	RoleAdmin Role = "ADMIN"

	// RoleUser is given to every later account.
	RoleUser Role = "USER"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)

// ValidateEmail checks the syntactic shape of an email address.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return NewDomainError(ErrInvalidEmail, "email must look like name@host.tld", email)
	}
	return nil
}

// User represents a registered account.
// Each user owns exactly one namespace and authenticates with its token.
type User struct {
	// Email is the unique key of the user.
	Email string `json:"email"`

	// PasswordHash is the encoded PBKDF2 hash of the password.
	// This should never be exposed in API responses.
	PasswordHash string `json:"-"`

	// Token is the bearer credential used by protected operations.
	Token string `json:"-"`

	// Namespace is the id of the namespace owned by the user.
	Namespace string `json:"namespace"`

	// Role is ADMIN for the first registrant, USER otherwise.
	Role Role `json:"role"`

	// CreatedAt is the timestamp when the user was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the timestamp of the last token change.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUser creates a new User with default values.
func NewUser(email, passwordHash, token, namespace string, role Role) *User {
	now := time.Now().UTC()
	return &User{
		Email:        email,
		PasswordHash: passwordHash,
		Token:        token,
		Namespace:    namespace,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsAdmin returns true if the user has administrative privileges.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
