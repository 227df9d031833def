package request

// RetentionConfig is the GFS keep-count policy attached to a schedule.
type RetentionConfig struct {
	Daily   int `json:"daily" validate:"min=0,max=365"`
	Weekly  int `json:"weekly" validate:"min=0,max=260"`
	Monthly int `json:"monthly" validate:"min=0,max=120"`
	Yearly  int `json:"yearly" validate:"min=0,max=100"`
}

type CreateSchedule struct {
	Name             string          `json:"name" validate:"required,slug"`
	SourceType       string          `json:"source_type" validate:"required,oneof=vm container"`
	SourceID         string          `json:"source_id" validate:"required,max=128"`
	StorageBackendID string          `json:"storage_backend_id" validate:"required"`
	CronExpression   string          `json:"cron_expression" validate:"required,cron"`
	Enabled          *bool           `json:"enabled" validate:"omitempty"`
	ModePolicy       string          `json:"backup_mode_policy" validate:"omitempty,oneof=auto full_only incremental_preferred"`
	MaxChainLength   int             `json:"max_chain_length" validate:"min=0,max=1000"`
	FullBackupDay    *int            `json:"full_backup_day" validate:"omitempty,min=1,max=31"`
	Retention        RetentionConfig `json:"retention_config"`
}

type UpdateSchedule struct {
	Name             *string          `json:"name" validate:"omitempty,slug"`
	StorageBackendID *string          `json:"storage_backend_id" validate:"omitempty"`
	CronExpression   *string          `json:"cron_expression" validate:"omitempty,cron"`
	Enabled          *bool            `json:"enabled" validate:"omitempty"`
	ModePolicy       *string          `json:"backup_mode_policy" validate:"omitempty,oneof=auto full_only incremental_preferred"`
	MaxChainLength   *int             `json:"max_chain_length" validate:"omitempty,min=0,max=1000"`
	FullBackupDay    *int             `json:"full_backup_day" validate:"omitempty,min=1,max=31"`
	Retention        *RetentionConfig `json:"retention_config" validate:"omitempty"`
}
