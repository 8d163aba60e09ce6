package crypto

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

const (
	// RegisterTokenRounds is the digest round count for tokens issued at registration.
	RegisterTokenRounds = 25

	// ResetTokenRounds is the digest round count for tokens issued by a reset.
	ResetTokenRounds = 50

	// NamespaceIDBaseSize is the number of random bytes of a first-try namespace id.
	NamespaceIDBaseSize = 4

	tokenSeedSize   = 96
	contentSeedSize = 128
)

// IteratedSHA512 hashes content and then re-hashes the hex digest rounds-1 more times.
func IteratedSHA512(content string, rounds int) string {
	if rounds < 1 {
		rounds = 1
	}
	sum := sha512.Sum512([]byte(content))
	digest := hex.EncodeToString(sum[:])
	for i := 1; i < rounds; i++ {
		sum = sha512.Sum512([]byte(digest))
		digest = hex.EncodeToString(sum[:])
	}
	return digest
}

// GenerateToken creates a bearer token: an iterated SHA-512 over a random
// seed and the current time. Returns 128 hex characters.
func GenerateToken(rounds int) (string, error) {
	seed, err := randomBytes(tokenSeedSize)
	if err != nil {
		return "", err
	}
	content := base64.StdEncoding.EncodeToString(seed) + strconv.FormatInt(time.Now().UnixMilli(), 10)
	return IteratedSHA512(content, rounds), nil
}

// GenerateNamespaceID returns size random bytes, hex encoded.
func GenerateNamespaceID(size int) (string, error) {
	if size < NamespaceIDBaseSize {
		size = NamespaceIDBaseSize
	}
	b, err := randomBytes(size)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateContentID returns the SHA-1 hex digest of a random seed.
func GenerateContentID() (string, error) {
	seed, err := randomBytes(contentSeedSize)
	if err != nil {
		return "", err
	}
	sum := sha1.Sum([]byte(base64.StdEncoding.EncodeToString(seed)))
	return hex.EncodeToString(sum[:]), nil
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
