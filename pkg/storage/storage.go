package storage

import (
	"context"
	"errors"
)

// ErrNotFound reports that the requested path holds no object. Callers match
// it with errors.Is to translate into their own not-found kinds.
var ErrNotFound = errors.New("not found")

// Storage is a flat path-addressed blob store. Implementations back it with
// the local filesystem or S3; repositories never know which.
type Storage interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, path string) (bool, error)
}
