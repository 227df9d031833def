package request

import "time"

// CreateBackup requests an ad-hoc full backup outside any schedule.
type CreateBackup struct {
	SourceType       string `json:"source_type" validate:"required,oneof=vm container"`
	SourceID         string `json:"source_id" validate:"required,max=128"`
	StorageBackendID string `json:"storage_backend_id" validate:"required"`
}

// SetProtection tightens a backup's deletion protection. Immutability can
// only be turned on, never off; the other fields may be relaxed.
type SetProtection struct {
	Immutable        *bool      `json:"immutable" validate:"omitempty"`
	LegalHoldEnabled *bool      `json:"legal_hold_enabled" validate:"omitempty"`
	RetentionUntil   *time.Time `json:"retention_until" validate:"omitempty"`
}
