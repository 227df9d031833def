package storage

import (
	"context"
	"io"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/holtet/backstack/internal/model"
)

// RetryGateway wraps a Gateway and retries transient failures on the
// non-streaming operations with exponential backoff. Put and Get are not
// retried here because their readers cannot be rewound; callers retry those
// at a higher level with a fresh stream.
type RetryGateway struct {
	inner    Gateway
	attempts uint64
}

// WithRetry wraps gw so Delete, List and Usage retry up to attempts times.
func WithRetry(gw Gateway, attempts int) *RetryGateway {
	if attempts < 1 {
		attempts = 1
	}
	return &RetryGateway{inner: gw, attempts: uint64(attempts)}
}

func (g *RetryGateway) backoff() retry.Backoff {
	b := retry.NewExponential(500 * time.Millisecond)
	b = retry.WithCappedDuration(15*time.Second, b)
	return retry.WithMaxRetries(g.attempts-1, b)
}

func (g *RetryGateway) Put(ctx context.Context, path string, r io.Reader, size int64) (int64, error) {
	return g.inner.Put(ctx, path, r, size)
}

func (g *RetryGateway) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	return g.inner.Get(ctx, path)
}

func (g *RetryGateway) Delete(ctx context.Context, path string) (bool, error) {
	var removed bool
	err := retry.Do(ctx, g.backoff(), func(ctx context.Context) error {
		var err error
		removed, err = g.inner.Delete(ctx, path)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	return removed, err
}

func (g *RetryGateway) List(ctx context.Context, prefix string) ([]string, error) {
	var paths []string
	err := retry.Do(ctx, g.backoff(), func(ctx context.Context) error {
		var err error
		paths, err = g.inner.List(ctx, prefix)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	return paths, err
}

func (g *RetryGateway) Usage(ctx context.Context, prefix string) (model.StorageUsage, error) {
	var usage model.StorageUsage
	err := retry.Do(ctx, g.backoff(), func(ctx context.Context) error {
		var err error
		usage, err = g.inner.Usage(ctx, prefix)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	return usage, err
}
