package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
)

// RootDir is the directory under the storage root that holds all namespaces.
const RootDir = "namespace"

// Key addresses one stored object.
type Key struct {
	Namespace string
	ContentID string
}

// Validate checks that both segments are single, non-traversing path elements.
func (k Key) Validate() error {
	for _, seg := range []string{k.Namespace, k.ContentID} {
		if seg == "" || seg == "." || seg == ".." || strings.ContainsAny(seg, "/\\\x00") {
			return fmt.Errorf("%w: %q", ErrInvalidKey, k.String())
		}
	}
	return nil
}

// String returns namespace/content_id.
func (k Key) String() string {
	return k.Namespace + "/" + k.ContentID
}

// ComputePath returns the filesystem path of key under basePath.
//
// Example:
//
//	basePath: "/data"
//	key: {"a1b2c3d4", "notes.txt"}
//	result: "/data/namespace/a1b2c3d4/notes.txt"
func ComputePath(basePath string, key Key) string {
	return filepath.Join(basePath, RootDir, key.Namespace, key.ContentID)
}

// ComputeObjectKey returns the object store key of key under prefix.
func ComputeObjectKey(prefix string, key Key) string {
	return path.Join(prefix, key.Namespace, key.ContentID)
}

// contextReader stops a copy once its context is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

// ContextReader wraps r so that reads fail with ctx.Err() after cancellation.
func ContextReader(ctx context.Context, r io.Reader) io.Reader {
	return &contextReader{ctx: ctx, r: r}
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
