package core

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/holtet/backstack/internal/model"
	"github.com/holtet/backstack/internal/storage"
)

func backendScanFunc(b model.StorageBackend) func(dest ...any) error {
	return func(dest ...any) error {
		*dest[0].(*string) = b.ID
		*dest[1].(*string) = b.Name
		*dest[2].(*string) = b.Type
		*dest[3].(*bool) = b.Enabled
		*dest[4].(*string) = b.BasePath
		*dest[5].(*string) = b.Endpoint
		*dest[6].(*string) = b.Region
		*dest[7].(*string) = b.Bucket
		*dest[8].(*string) = b.AccessKey
		*dest[9].(*string) = b.SecretKey
		*dest[10].(*int64) = b.CapacityBytes
		*dest[11].(*time.Time) = b.CreatedAt
		*dest[12].(*time.Time) = b.UpdatedAt
		return nil
	}
}

func localBackend(t *testing.T, id string) model.StorageBackend {
	return model.StorageBackend{
		ID:            id,
		Name:          "primary",
		Type:          model.BackendTypeLocal,
		Enabled:       true,
		BasePath:      t.TempDir(),
		CapacityBytes: 1 << 40,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
}

func TestStorageBackendService_GetByID(t *testing.T) {
	db := &mockDB{}
	svc := NewStorageBackendService(db, storage.NewRegistry())
	ctx := context.Background()

	backend := localBackend(t, "sb-1")
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"sb-1"}).
		Return(&mockRow{scanFunc: backendScanFunc(backend)})

	got, err := svc.GetByID(ctx, "sb-1")
	require.NoError(t, err)
	assert.Equal(t, "primary", got.Name)
	assert.Equal(t, model.BackendTypeLocal, got.Type)
}

func TestStorageBackendService_Delete_RefusesWhenInUse(t *testing.T) {
	db := &mockDB{}
	svc := NewStorageBackendService(db, storage.NewRegistry())
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"sb-1"}).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*dest[0].(*int) = 3
			return nil
		}})

	err := svc.Delete(ctx, "sb-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendInUse)
}

func TestStorageBackendService_Delete_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewStorageBackendService(db, storage.NewRegistry())
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"sb-1"}).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*dest[0].(*int) = 0
			return nil
		}})
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.CommandTag{}, nil)

	require.NoError(t, svc.Delete(ctx, "sb-1"))
	db.AssertExpectations(t)
}

func TestStorageBackendService_UsageAll_SkipsDisabled(t *testing.T) {
	db := &mockDB{}
	svc := NewStorageBackendService(db, storage.NewRegistry())
	ctx := context.Background()

	enabled := localBackend(t, "sb-1")
	disabled := localBackend(t, "sb-2")
	disabled.Enabled = false
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(newMockRows(backendScanFunc(enabled), backendScanFunc(disabled)), nil)

	usages, err := svc.UsageAll(ctx)
	require.NoError(t, err)
	require.Len(t, usages, 1)
	assert.Equal(t, int64(1<<40), usages["sb-1"].CapacityBytes)
	_, ok := usages["sb-2"]
	assert.False(t, ok)
}

func TestStorageBackendService_Usage_CapsWithCapacity(t *testing.T) {
	db := &mockDB{}
	svc := NewStorageBackendService(db, storage.NewRegistry())
	ctx := context.Background()

	backend := localBackend(t, "sb-1")
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"sb-1"}).
		Return(&mockRow{scanFunc: backendScanFunc(backend)})

	usage, err := svc.Usage(ctx, "sb-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), usage.UsedBytes)
	assert.Equal(t, int64(1<<40), usage.CapacityBytes)
}
