package storage

import (
	"context"
	"io"

	"github.com/holtet/backstack/internal/model"
)

// Gateway abstracts a storage backend for backup artifacts. Implementations
// exist for local filesystems and S3-compatible object stores.
//
// Delete reports removed=false with a nil error when the artifact is already
// absent, so that deletion retries stay idempotent.
type Gateway interface {
	// Put streams an artifact to the backend at the given path and returns
	// the number of bytes written.
	Put(ctx context.Context, path string, r io.Reader, size int64) (int64, error)

	// Get opens an artifact for reading. The caller must close the reader.
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes an artifact. Absent artifacts are not an error.
	Delete(ctx context.Context, path string) (removed bool, err error)

	// List returns the paths of all artifacts under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Usage reports space consumed under the given prefix.
	Usage(ctx context.Context, prefix string) (model.StorageUsage, error)
}

// Resolver builds a Gateway for a configured storage backend.
type Resolver interface {
	Resolve(backend *model.StorageBackend) (Gateway, error)
}
