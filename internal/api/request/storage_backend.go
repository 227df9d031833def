package request

type CreateStorageBackend struct {
	Name    string `json:"name" validate:"required,slug"`
	Type    string `json:"type" validate:"required,oneof=local s3 smb"`
	Enabled *bool  `json:"enabled" validate:"omitempty"`

	BasePath string `json:"base_path" validate:"omitempty,max=4096"`

	Endpoint  string `json:"endpoint" validate:"omitempty,url"`
	Region    string `json:"region" validate:"omitempty,max=64"`
	Bucket    string `json:"bucket" validate:"omitempty,max=255"`
	AccessKey string `json:"access_key" validate:"omitempty,max=255"`
	SecretKey string `json:"secret_key" validate:"omitempty,max=255"`

	CapacityBytes int64 `json:"capacity_bytes" validate:"min=0"`
}

type UpdateStorageBackend struct {
	Name    *string `json:"name" validate:"omitempty,slug"`
	Enabled *bool   `json:"enabled" validate:"omitempty"`

	BasePath *string `json:"base_path" validate:"omitempty,max=4096"`

	Endpoint  *string `json:"endpoint" validate:"omitempty,url"`
	Region    *string `json:"region" validate:"omitempty,max=64"`
	Bucket    *string `json:"bucket" validate:"omitempty,max=255"`
	AccessKey *string `json:"access_key" validate:"omitempty,max=255"`
	SecretKey *string `json:"secret_key" validate:"omitempty,max=255"`

	CapacityBytes *int64 `json:"capacity_bytes" validate:"omitempty,min=0"`
}
