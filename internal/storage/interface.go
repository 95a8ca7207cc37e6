package storage

import (
	"context"
)

// ObjectStorage stores exported job artifacts by key.
type ObjectStorage interface {
	// Put writes data under key, replacing any existing object
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get reads the object stored under key
	Get(ctx context.Context, key string) ([]byte, error)

	// URL returns an address the artifact can be fetched from
	URL(key string) string

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)

	// DeletePrefix removes every object whose key starts with prefix
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}
