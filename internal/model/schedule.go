package model

import "time"

// RetentionConfig holds per-tier GFS keep counts. Zero disables a tier.
type RetentionConfig struct {
	Daily   int `json:"daily"`
	Weekly  int `json:"weekly"`
	Monthly int `json:"monthly"`
	Yearly  int `json:"yearly"`
}

// Empty reports whether every tier is disabled, in which case a sweep
// keeps nothing by policy and deletes everything unprotected.
func (c RetentionConfig) Empty() bool {
	return c.Daily == 0 && c.Weekly == 0 && c.Monthly == 0 && c.Yearly == 0
}

// Schedule is a recurring backup trigger for one source.
type Schedule struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	SourceType       string `json:"source_type"`
	SourceID         string `json:"source_id"`
	StorageBackendID string `json:"storage_backend_id"`
	CronExpression   string `json:"cron_expression"`
	Enabled          bool   `json:"enabled"`

	// ModePolicy selects full vs incremental behavior: auto, full_only,
	// or incremental_preferred.
	ModePolicy string `json:"backup_mode_policy"`

	// MaxChainLength is the maximum sequence number before the next backup
	// is forced to start a new chain. Zero means unlimited.
	MaxChainLength int `json:"max_chain_length"`

	// FullBackupDay optionally anchors a full backup to a calendar day of
	// month; a trigger on that day always starts a new chain.
	FullBackupDay *int `json:"full_backup_day,omitempty"`

	// State carried to the snapshot producer so it knows the
	// change-tracking baseline.
	LastFullBackupID *string `json:"last_full_backup_id,omitempty"`
	CheckpointName   *string `json:"checkpoint_name,omitempty"`

	Retention RetentionConfig `json:"retention_config"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
