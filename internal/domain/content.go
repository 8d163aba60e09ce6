package domain

import (
	"strings"
	"time"
)

// ContentKind selects how the rendered viewer presents an entry.
type ContentKind string

const (
	// KindText is rendered as escaped HTML inside the highlighter page.
	KindText ContentKind = "text"

	// KindImage is served inline with its extension MIME type.
	KindImage ContentKind = "image"

	// KindBinary is streamed through the bandwidth throttle.
	KindBinary ContentKind = "binary"
)

// MaxContentIDLength bounds the length of a content id including its extension.
const MaxContentIDLength = 255

// UploadDescriptor describes the file as the client sent it.
type UploadDescriptor struct {
	// Name is the original filename.
	Name string `json:"name"`

	// Size is the number of bytes stored.
	Size int64 `json:"size"`

	// Checksum is the hex SHA-256 of the content.
	Checksum string `json:"checksum"`
}

// ContentEntry is the index record of one stored object.
type ContentEntry struct {
	// Namespace owns the entry.
	Namespace string `json:"namespace"`

	// ContentID is the identifier inside the namespace, extension included.
	ContentID string `json:"content_id"`

	// Email of the uploader.
	Email string `json:"email"`

	// File is the backend location of the stored object.
	File string `json:"file"`

	// Name is the optional display name given at upload.
	Name *string `json:"name,omitempty"`

	// Type is the optional rendering hint as supplied by the uploader.
	Type *string `json:"type,omitempty"`

	Upload UploadDescriptor `json:"upload"`

	// Expire is nil for content that never expires.
	Expire *time.Time `json:"expire,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ContentKey returns the index key of a namespace/content id pair.
func ContentKey(namespace, contentID string) string {
	return namespace + "/" + contentID
}

// Key returns the index key of the entry.
func (c *ContentEntry) Key() string {
	return ContentKey(c.Namespace, c.ContentID)
}

// Location returns the public path of the rendered view.
func (c *ContentEntry) Location() string {
	return "/-/" + c.Key()
}

// Kind returns the normalized rendering hint.
// Unknown or missing hints are treated as binary.
func (c *ContentEntry) Kind() ContentKind {
	if c.Type == nil {
		return KindBinary
	}
	switch ContentKind(strings.ToLower(strings.TrimSpace(*c.Type))) {
	case KindText:
		return KindText
	case KindImage:
		return KindImage
	default:
		return KindBinary
	}
}

// IsExpired reports whether the entry's expiry is strictly before now.
func (c *ContentEntry) IsExpired(now time.Time) bool {
	return c.Expire != nil && c.Expire.Before(now)
}

// ValidateContentID checks that id is usable as a single path segment.
func ValidateContentID(id string) error {
	if id == "" || id == "." || id == ".." || len(id) > MaxContentIDLength {
		return NewDomainError(ErrInvalidContentID, "content id is empty or too long", id)
	}
	if strings.ContainsAny(id, "/\\\x00") {
		return NewDomainError(ErrInvalidContentID, "content id must not contain separators", id)
	}
	return nil
}
