package model

import "time"

// Storage backend types.
const (
	BackendTypeLocal = "local"
	BackendTypeS3    = "s3"
	BackendTypeSMB   = "smb"
)

// StorageBackend is a named artifact store. Credentials and layout are
// backend-specific; the engine only depends on the gateway operations.
type StorageBackend struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`

	// Local filesystem.
	BasePath string `json:"base_path,omitempty"`

	// S3-compatible object storage.
	Endpoint  string `json:"endpoint,omitempty"`
	Region    string `json:"region,omitempty"`
	Bucket    string `json:"bucket,omitempty"`
	AccessKey string `json:"access_key,omitempty"`
	SecretKey string `json:"-"`

	// CapacityBytes caps usage reporting; zero means unknown.
	CapacityBytes int64 `json:"capacity_bytes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StorageUsage reports consumption of a backend.
type StorageUsage struct {
	UsedBytes     int64 `json:"used_bytes"`
	ObjectCount   int64 `json:"object_count"`
	CapacityBytes int64 `json:"capacity_bytes"`
}
