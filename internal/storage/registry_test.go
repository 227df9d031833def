package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holtet/backstack/internal/model"
)

func testBackend(typ string) *model.StorageBackend {
	return &model.StorageBackend{
		ID:        "sb-1",
		Name:      "primary",
		Type:      typ,
		Enabled:   true,
		BasePath:  "/mnt/backups",
		Bucket:    "backups",
		Region:    "us-east-1",
		UpdatedAt: time.Now(),
	}
}

func TestRegistry_ResolveLocal(t *testing.T) {
	r := NewRegistry()

	gw, err := r.Resolve(testBackend(model.BackendTypeLocal))
	require.NoError(t, err)
	assert.IsType(t, &LocalGateway{}, gw)
}

func TestRegistry_ResolveS3(t *testing.T) {
	r := NewRegistry()

	gw, err := r.Resolve(testBackend(model.BackendTypeS3))
	require.NoError(t, err)
	assert.IsType(t, &S3Gateway{}, gw)
}

func TestRegistry_CachesByUpdatedAt(t *testing.T) {
	r := NewRegistry()
	backend := testBackend(model.BackendTypeLocal)

	first, err := r.Resolve(backend)
	require.NoError(t, err)

	second, err := r.Resolve(backend)
	require.NoError(t, err)
	assert.Same(t, first, second)

	// Changing the row invalidates the cached gateway.
	backend.UpdatedAt = backend.UpdatedAt.Add(time.Second)
	third, err := r.Resolve(backend)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

func TestRegistry_RejectsDisabledBackend(t *testing.T) {
	r := NewRegistry()
	backend := testBackend(model.BackendTypeLocal)
	backend.Enabled = false

	_, err := r.Resolve(backend)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")
}

func TestRegistry_RejectsMisconfiguredBackend(t *testing.T) {
	r := NewRegistry()

	local := testBackend(model.BackendTypeLocal)
	local.BasePath = ""
	_, err := r.Resolve(local)
	assert.ErrorContains(t, err, "no base path")

	s3b := testBackend(model.BackendTypeS3)
	s3b.Bucket = ""
	_, err = r.Resolve(s3b)
	assert.ErrorContains(t, err, "no bucket")

	unknown := testBackend("tape")
	_, err = r.Resolve(unknown)
	assert.ErrorContains(t, err, "unknown storage backend type")
}
