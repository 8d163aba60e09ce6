package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestContentEntry_Kind(t *testing.T) {
	tests := []struct {
		name string
		hint *string
		want ContentKind
	}{
		{"missing", nil, KindBinary},
		{"text", strPtr("text"), KindText},
		{"upper text", strPtr("TEXT"), KindText},
		{"image", strPtr("Image"), KindImage},
		{"binary", strPtr("binary"), KindBinary},
		{"unknown", strPtr("video"), KindBinary},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &ContentEntry{Type: tt.hint}
			assert.Equal(t, tt.want, entry.Kind())
		})
	}
}

func TestContentEntry_IsExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Millisecond)
	future := now.Add(time.Hour)

	assert.False(t, (&ContentEntry{}).IsExpired(now))
	assert.True(t, (&ContentEntry{Expire: &past}).IsExpired(now))
	assert.False(t, (&ContentEntry{Expire: &future}).IsExpired(now))
	assert.False(t, (&ContentEntry{Expire: &now}).IsExpired(now))
}

func TestContentEntry_Location(t *testing.T) {
	entry := &ContentEntry{Namespace: "a1b2c3d4", ContentID: "notes.txt"}
	assert.Equal(t, "a1b2c3d4/notes.txt", entry.Key())
	assert.Equal(t, "/-/a1b2c3d4/notes.txt", entry.Location())
}

func TestValidateContentID(t *testing.T) {
	valid := []string{"notes.txt", "a", "0f3e.png", "my file.bin"}
	for _, id := range valid {
		assert.NoError(t, ValidateContentID(id), id)
	}

	invalid := []string{"", ".", "..", "a/b", `a\b`, string(make([]byte, MaxContentIDLength+1))}
	for _, id := range invalid {
		err := ValidateContentID(id)
		assert.True(t, errors.Is(err, ErrInvalidContentID), "%q", id)
	}
}

func TestValidateNamespaceID(t *testing.T) {
	assert.NoError(t, ValidateNamespaceID("deadbeef"))
	assert.NoError(t, ValidateNamespaceID("team_files-1"))
	assert.ErrorIs(t, ValidateNamespaceID(""), ErrInvalidNamespace)
	assert.ErrorIs(t, ValidateNamespaceID("-leading"), ErrInvalidNamespace)
	assert.ErrorIs(t, ValidateNamespaceID("../etc"), ErrInvalidNamespace)
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("someone@example.com"))
	assert.NoError(t, ValidateEmail("first.last+tag@sub-domain.example.co"))
	assert.ErrorIs(t, ValidateEmail("no-at-sign"), ErrInvalidEmail)
	assert.ErrorIs(t, ValidateEmail("user@localhost"), ErrInvalidEmail)
}
