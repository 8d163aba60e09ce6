// Package crypto provides the hashing and identifier primitives of the Amethyst CDN.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
)

// HashReader checksums an upload as it is read.
type HashReader struct {
	reader io.Reader
	sha256 hash.Hash
	size   int64
}

// NewHashReader creates a new HashReader.
func NewHashReader(r io.Reader) *HashReader {
	return &HashReader{
		reader: r,
		sha256: sha256.New(),
	}
}

// Read implements io.Reader and updates the checksum.
func (h *HashReader) Read(p []byte) (n int, err error) {
	n, err = h.reader.Read(p)
	if n > 0 {
		h.sha256.Write(p[:n])
		h.size += int64(n)
	}
	return n, err
}

// SHA256 returns the hex digest of everything read so far.
func (h *HashReader) SHA256() string {
	return hex.EncodeToString(h.sha256.Sum(nil))
}

// Size returns the total number of bytes read.
func (h *HashReader) Size() int64 {
	return h.size
}


// ComputeStreamSHA256 drains r and returns its checksum and length.
// Uploads are rewound by the caller before they are stored.
func ComputeStreamSHA256(r io.Reader) (string, int64, error) {
	h := NewHashReader(r)
	if _, err := io.Copy(io.Discard, h); err != nil {
		return "", 0, fmt.Errorf("failed to compute SHA-256: %w", err)
	}
	return h.SHA256(), h.Size(), nil
}
