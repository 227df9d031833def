package model

import "time"

// Backup is one captured artifact. A chain is one full backup (sequence 0)
// followed by incrementals, each pointing at its immediate predecessor via
// ParentBackupID. Chain identity fields are immutable once the backup
// completes.
type Backup struct {
	ID             string  `json:"id"`
	ChainID        string  `json:"chain_id"`
	SequenceNumber int     `json:"sequence_number"`
	ParentBackupID *string `json:"parent_backup_id,omitempty"`

	Mode                string `json:"backup_mode"`
	SizeBytes           int64  `json:"size_bytes"`
	CompressedSizeBytes int64  `json:"compressed_size_bytes"`
	Checksum            string `json:"checksum,omitempty"`
	Verified            bool   `json:"verified"`
	StoragePath         string `json:"storage_path,omitempty"`
	StorageBackendID    string `json:"storage_backend_id"`

	// CheckpointToken is the change-tracking token produced by the snapshot
	// producer when this backup was captured. The next incremental in the
	// chain captures changes since this point.
	CheckpointToken *string `json:"checkpoint_token,omitempty"`

	Status        string     `json:"status"`
	StatusMessage *string    `json:"status_message,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`

	// Protection facts. Each is a hard deletion veto independent of
	// retention-bucket outcome.
	Immutable      bool       `json:"immutable"`
	RetentionUntil *time.Time `json:"retention_until,omitempty"`
	LegalHold      bool       `json:"legal_hold_enabled"`

	SourceType string  `json:"source_type"`
	SourceID   string  `json:"source_id"`
	ScheduleID *string `json:"schedule_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Protected reports whether the backup is shielded from deletion at the
// given instant by immutability, legal hold, or a retention-until lock.
func (b *Backup) Protected(now time.Time) bool {
	if b.Immutable || b.LegalHold {
		return true
	}
	return b.RetentionUntil != nil && b.RetentionUntil.After(now)
}
