// Package storage persists trimmed outputs so they can be downloaded after a
// job finishes. It defines the Storage interface (port) and implementations
// for local disk and S3.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when a key has no stored object.
var ErrObjectNotFound = errors.New("object not found")

// Object describes a stored output.
type Object struct {
	Key  string `json:"key"`
	URL  string `json:"url,omitempty"`
	Size int64  `json:"size"`
}

// Storage stores trimmed audio by key.
type Storage interface {
	// Put writes data under key and returns where it was stored.
	// An existing object with the same key is replaced.
	Put(ctx context.Context, key string, data io.Reader, contentType string) (Object, error)

	// Open returns a reader for the object stored under key.
	// The caller is responsible for closing the returned ReadCloser.
	// Returns ErrObjectNotFound if nothing is stored under key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object stored under key. Deleting a missing key
	// is not an error.
	Delete(ctx context.Context, key string) error
}
