package core

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/holtet/backstack/internal/model"
	"github.com/holtet/backstack/internal/storage"
)

const backendColumns = `id, name, type, enabled, base_path, endpoint, region, bucket, access_key, secret_key, capacity_bytes, created_at, updated_at`

func scanBackend(row interface{ Scan(dest ...any) error }) (model.StorageBackend, error) {
	var b model.StorageBackend
	err := row.Scan(&b.ID, &b.Name, &b.Type, &b.Enabled, &b.BasePath,
		&b.Endpoint, &b.Region, &b.Bucket, &b.AccessKey, &b.SecretKey,
		&b.CapacityBytes, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

type StorageBackendService struct {
	db       DB
	resolver storage.Resolver
}

func NewStorageBackendService(db DB, resolver storage.Resolver) *StorageBackendService {
	return &StorageBackendService{db: db, resolver: resolver}
}

func (s *StorageBackendService) Create(ctx context.Context, b *model.StorageBackend) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO storage_backends (id, name, type, enabled, base_path, endpoint, region, bucket, access_key, secret_key, capacity_bytes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		b.ID, b.Name, b.Type, b.Enabled, b.BasePath, b.Endpoint, b.Region,
		b.Bucket, b.AccessKey, b.SecretKey, b.CapacityBytes,
		b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert storage backend: %w", err)
	}
	return nil
}

func (s *StorageBackendService) GetByID(ctx context.Context, id string) (*model.StorageBackend, error) {
	b, err := scanBackend(s.db.QueryRow(ctx,
		`SELECT `+backendColumns+` FROM storage_backends WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get storage backend %s: %w", id, err)
	}
	return &b, nil
}

func (s *StorageBackendService) List(ctx context.Context) ([]model.StorageBackend, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+backendColumns+` FROM storage_backends ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list storage backends: %w", err)
	}
	defer rows.Close()

	var backends []model.StorageBackend
	for rows.Next() {
		b, err := scanBackend(rows)
		if err != nil {
			return nil, fmt.Errorf("scan storage backend: %w", err)
		}
		backends = append(backends, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate storage backends: %w", err)
	}
	return backends, nil
}

func (s *StorageBackendService) Update(ctx context.Context, b *model.StorageBackend) error {
	_, err := s.db.Exec(ctx,
		`UPDATE storage_backends SET name = $1, enabled = $2, base_path = $3, endpoint = $4, region = $5, bucket = $6, access_key = $7, secret_key = $8, capacity_bytes = $9, updated_at = now() WHERE id = $10`,
		b.Name, b.Enabled, b.BasePath, b.Endpoint, b.Region, b.Bucket,
		b.AccessKey, b.SecretKey, b.CapacityBytes, b.ID,
	)
	if err != nil {
		return fmt.Errorf("update storage backend %s: %w", b.ID, err)
	}
	return nil
}

// Delete removes a backend definition. Backends that still hold backup
// rows are refused.
func (s *StorageBackendService) Delete(ctx context.Context, id string) error {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM backups WHERE storage_backend_id = $1 AND status != 'deleted'`,
		id).Scan(&count)
	if err != nil {
		return fmt.Errorf("count backups on backend %s: %w", id, err)
	}
	if count > 0 {
		return fmt.Errorf("delete storage backend %s: %w", id, ErrBackendInUse)
	}

	_, err = s.db.Exec(ctx, `DELETE FROM storage_backends WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete storage backend %s: %w", id, err)
	}
	return nil
}

// UsageAll measures every enabled backend in parallel, keyed by backend ID.
// One unreachable backend fails the whole report.
func (s *StorageBackendService) UsageAll(ctx context.Context) (map[string]model.StorageUsage, error) {
	backends, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	usages := make([]model.StorageUsage, len(backends))
	g, ctx := errgroup.WithContext(ctx)

	for i, backend := range backends {
		if !backend.Enabled {
			continue
		}
		g.Go(func() error {
			gw, err := s.resolver.Resolve(&backend)
			if err != nil {
				return err
			}
			u, err := gw.Usage(ctx, "")
			if err != nil {
				return fmt.Errorf("measure backend %s usage: %w", backend.ID, err)
			}
			u.CapacityBytes = backend.CapacityBytes
			usages[i] = u
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make(map[string]model.StorageUsage, len(backends))
	for i, backend := range backends {
		if backend.Enabled {
			result[backend.ID] = usages[i]
		}
	}
	return result, nil
}

// Usage measures the space consumed on a backend and caps it with the
// configured capacity.
func (s *StorageBackendService) Usage(ctx context.Context, id string) (model.StorageUsage, error) {
	backend, err := s.GetByID(ctx, id)
	if err != nil {
		return model.StorageUsage{}, err
	}

	gw, err := s.resolver.Resolve(backend)
	if err != nil {
		return model.StorageUsage{}, err
	}

	usage, err := gw.Usage(ctx, "")
	if err != nil {
		return model.StorageUsage{}, fmt.Errorf("measure backend %s usage: %w", id, err)
	}
	usage.CapacityBytes = backend.CapacityBytes
	return usage, nil
}
