package crypto

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// PasswordIterations is the PBKDF2 work factor for new hashes.
	PasswordIterations = 20000

	passwordScheme  = "pbkdf2-sha512"
	passwordSaltLen = 16
	passwordKeyLen  = 64
)

// ErrInvalidPasswordHash indicates a stored hash is not in the expected format.
var ErrInvalidPasswordHash = errors.New("invalid password hash format")

// HashPassword derives a salted PBKDF2-SHA512 hash of password.
// Format: pbkdf2-sha512$<iterations>$<salt hex>$<key hex>
func HashPassword(password string) (string, error) {
	salt := make([]byte, passwordSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(password), salt, PasswordIterations, passwordKeyLen, sha512.New)
	return fmt.Sprintf("%s$%d$%s$%s",
		passwordScheme, PasswordIterations, hex.EncodeToString(salt), hex.EncodeToString(key),
	), nil
}

// VerifyPassword reports whether password matches the encoded hash.
// The comparison runs in constant time.
func VerifyPassword(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != passwordScheme {
		return false, ErrInvalidPasswordHash
	}

	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations < 1 {
		return false, ErrInvalidPasswordHash
	}
	salt, err := hex.DecodeString(parts[2])
	if err != nil {
		return false, ErrInvalidPasswordHash
	}
	want, err := hex.DecodeString(parts[3])
	if err != nil || len(want) == 0 {
		return false, ErrInvalidPasswordHash
	}

	got := pbkdf2.Key([]byte(password), salt, iterations, len(want), sha512.New)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// EqualTokens compares two tokens in constant time.
func EqualTokens(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
