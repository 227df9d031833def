package activity

import (
	"time"

	"github.com/holtet/backstack/internal/chain"
	"github.com/holtet/backstack/internal/model"
)

// ScheduleContext is everything a backup run workflow needs up front: the
// schedule, its storage backend, and the chain tip the next backup would
// extend.
type ScheduleContext struct {
	Schedule model.Schedule
	Backend  model.StorageBackend
	Tip      *model.Backup
}

// BackupContext pairs a backup row with its storage backend for artifact
// operations.
type BackupContext struct {
	Backup  model.Backup
	Backend model.StorageBackend
}

// ClaimSlotParams carries the decided chain slot for a new backup row.
type ClaimSlotParams struct {
	BackupID              string
	ScheduleID            string
	SourceType            string
	SourceID              string
	StorageBackendID      string
	ChainID               string
	SequenceNumber        int
	ParentBackupID        *string
	Mode                  string
	ParentCheckpointToken *string
}

// FinalizeBackupParams records a completed capture and upload.
type FinalizeBackupParams struct {
	BackupID            string
	SizeBytes           int64
	CompressedSizeBytes int64
	Checksum            string
	StoragePath         string
	CheckpointToken     *string
}

// SetBackupStatusParams updates a backup row's status and optional message.
type SetBackupStatusParams struct {
	BackupID      string
	Status        string
	StatusMessage string
}

// UpdateChainStateParams records chain bookkeeping on a schedule after a
// completed run.
type UpdateChainStateParams struct {
	ScheduleID       string
	LastFullBackupID *string
	CheckpointName   *string
}

// CaptureUploadParams drives the capture-and-upload activity.
type CaptureUploadParams struct {
	BackupID              string
	SourceType            string
	SourceID              string
	Mode                  string
	CheckpointName        string
	ParentCheckpointToken string
	StorageBackendID      string
	StoragePath           string
}

// CaptureUploadResult is the outcome of a capture-and-upload activity.
type CaptureUploadResult struct {
	SizeBytes           int64
	CompressedSizeBytes int64
	Checksum            string
	CheckpointToken     *string
}

// ProbeParams asks whether a source supports incremental capture right now.
type ProbeParams struct {
	SourceType            string
	SourceID              string
	ParentCheckpointToken string
}

// RetentionEvaluation is the serializable sweep outcome for one source.
type RetentionEvaluation struct {
	ScheduleID string
	Keep       []string
	Delete     []string
	// StuckDeleting holds backups whose earlier deletion never finished.
	// The sweep retries their artifact removal before this pass's deletes.
	StuckDeleting []string
	Vetoes        []chain.Veto
}

// RestorePlanParams controls restoration plan construction.
type RestorePlanParams struct {
	BackupID string
}

// FetchStepParams downloads one plan step's artifact into the restore's
// staging subdirectory.
type FetchStepParams struct {
	BackupID  string
	RestoreID string
}

// FetchStepResult reports where a step artifact landed. ChecksumVerified
// is true when the download was compared against the recorded checksum.
type FetchStepResult struct {
	LocalPath        string
	SizeBytes        int64
	FetchedAt        time.Time
	ChecksumVerified bool
}
