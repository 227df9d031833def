package activity

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"

	"github.com/holtet/backstack/internal/chain"
	"github.com/holtet/backstack/internal/core"
	"github.com/holtet/backstack/internal/metrics"
	"github.com/holtet/backstack/internal/model"
	"github.com/holtet/backstack/internal/platform"
)

// BackupDB contains activities that read from and update the backup
// database through the core services.
type BackupDB struct {
	svcs *core.Services

	// restoreThroughput converts plan sizes into advisory time estimates.
	restoreThroughput int64
}

// NewBackupDB creates a new BackupDB activity struct.
func NewBackupDB(svcs *core.Services, restoreThroughputBytesPerSec int64) *BackupDB {
	return &BackupDB{svcs: svcs, restoreThroughput: restoreThroughputBytesPerSec}
}

// GetScheduleContext loads the schedule, its storage backend, and the
// current chain tip for a backup run.
func (a *BackupDB) GetScheduleContext(ctx context.Context, scheduleID string) (*ScheduleContext, error) {
	sched, err := a.svcs.Schedule.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	backend, err := a.svcs.StorageBackend.GetByID(ctx, sched.StorageBackendID)
	if err != nil {
		return nil, err
	}

	tip, err := a.svcs.Backup.ChainTip(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	return &ScheduleContext{Schedule: *sched, Backend: *backend, Tip: tip}, nil
}

// GetBackupContext loads a backup row and its storage backend.
func (a *BackupDB) GetBackupContext(ctx context.Context, backupID string) (*BackupContext, error) {
	b, err := a.svcs.Backup.GetByID(ctx, backupID)
	if err != nil {
		return nil, err
	}

	backend, err := a.svcs.StorageBackend.GetByID(ctx, b.StorageBackendID)
	if err != nil {
		return nil, err
	}

	return &BackupContext{Backup: *b, Backend: *backend}, nil
}

// ClaimChainSlot inserts the pending backup row for a decided slot. A lost
// race surfaces as a non-retryable application error so the workflow can
// re-read the chain tip and decide again instead of blindly retrying.
func (a *BackupDB) ClaimChainSlot(ctx context.Context, params ClaimSlotParams) error {
	now := time.Now().UTC()
	b := &model.Backup{
		ID:               params.BackupID,
		ChainID:          params.ChainID,
		SequenceNumber:   params.SequenceNumber,
		ParentBackupID:   params.ParentBackupID,
		Mode:             params.Mode,
		Status:           model.StatusPending,
		SourceType:       params.SourceType,
		SourceID:         params.SourceID,
		StorageBackendID: params.StorageBackendID,
		ScheduleID:       &params.ScheduleID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := a.svcs.Backup.ClaimChainSlot(ctx, b)
	if errors.Is(err, core.ErrSlotTaken) {
		return temporal.NewNonRetryableApplicationError(err.Error(), "SlotTaken", err)
	}
	return err
}

// MarkBackupRunning flips a claimed backup to running.
func (a *BackupDB) MarkBackupRunning(ctx context.Context, backupID string) error {
	return a.svcs.Backup.MarkRunning(ctx, backupID)
}

// FinalizeBackup records a completed capture and flips the row to
// completed.
func (a *BackupDB) FinalizeBackup(ctx context.Context, params FinalizeBackupParams) error {
	b, err := a.svcs.Backup.GetByID(ctx, params.BackupID)
	if err != nil {
		return err
	}

	err = a.svcs.Backup.Finalize(ctx, params.BackupID, params.SizeBytes,
		params.CompressedSizeBytes, params.Checksum, params.StoragePath, params.CheckpointToken)
	if err != nil {
		return err
	}

	metrics.BackupsTotal.WithLabelValues(b.SourceType, b.Mode, model.StatusCompleted).Inc()
	metrics.BackupBytes.WithLabelValues(b.SourceType, b.Mode).Observe(float64(params.SizeBytes))
	if b.StartedAt != nil {
		metrics.BackupDuration.WithLabelValues(b.SourceType, b.Mode).Observe(time.Since(*b.StartedAt).Seconds())
	}
	return nil
}

// SetBackupStatus updates a backup row's status.
func (a *BackupDB) SetBackupStatus(ctx context.Context, params SetBackupStatusParams) error {
	if err := a.svcs.Backup.SetStatus(ctx, params.BackupID, params.Status, params.StatusMessage); err != nil {
		return err
	}
	if params.Status == model.StatusFailed {
		if b, err := a.svcs.Backup.GetByID(ctx, params.BackupID); err == nil {
			metrics.BackupsTotal.WithLabelValues(b.SourceType, b.Mode, model.StatusFailed).Inc()
		}
	}
	return nil
}

// MarkBackupVerified records that a staged download of this backup
// matched its stored checksum.
func (a *BackupDB) MarkBackupVerified(ctx context.Context, backupID string) error {
	return a.svcs.Backup.MarkVerified(ctx, backupID)
}

// UpdateScheduleChainState records the last full backup and checkpoint
// name on the schedule after a completed run.
func (a *BackupDB) UpdateScheduleChainState(ctx context.Context, params UpdateChainStateParams) error {
	return a.svcs.Schedule.UpdateChainState(ctx, params.ScheduleID, params.LastFullBackupID, params.CheckpointName)
}

// ListRetentionTargets returns the enabled schedules whose retention
// config keeps at least one tier, the inputs for a sweep.
func (a *BackupDB) ListRetentionTargets(ctx context.Context) ([]model.Schedule, error) {
	schedules, err := a.svcs.Schedule.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	var targets []model.Schedule
	for _, s := range schedules {
		if !s.Retention.Empty() {
			targets = append(targets, s)
		}
	}
	return targets, nil
}

// EvaluateRetention classifies a schedule's backups into keep and delete
// sets and records veto metrics.
func (a *BackupDB) EvaluateRetention(ctx context.Context, scheduleID string) (*RetentionEvaluation, error) {
	sched, err := a.svcs.Schedule.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	result, err := a.svcs.Retention.EvaluateSource(ctx, sched.SourceType, sched.SourceID, sched.Retention, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	eval := &RetentionEvaluation{ScheduleID: scheduleID, Vetoes: result.Vetoes}
	for _, b := range result.Keep {
		eval.Keep = append(eval.Keep, b.ID)
	}
	for _, b := range result.Delete {
		eval.Delete = append(eval.Delete, b.ID)
	}

	// Rows stranded in deleting by an earlier failed artifact removal.
	stuck, err := a.svcs.Backup.ListDeleting(ctx, sched.SourceType, sched.SourceID)
	if err != nil {
		return nil, err
	}
	for _, b := range stuck {
		eval.StuckDeleting = append(eval.StuckDeleting, b.ID)
	}
	for _, v := range result.Vetoes {
		metrics.RetentionVetoesTotal.WithLabelValues(v.Reason).Inc()
	}
	return eval, nil
}

// MarkBackupDeleted completes the second phase of deletion after the
// artifact is gone.
func (a *BackupDB) MarkBackupDeleted(ctx context.Context, backupID string) error {
	if err := a.svcs.Backup.SetStatus(ctx, backupID, model.StatusDeleted, ""); err != nil {
		return err
	}
	metrics.RetentionDeletionsTotal.Inc()
	return nil
}

// CheckChainIntegrity verifies the chain a backup belongs to and reports
// issue metrics.
func (a *BackupDB) CheckChainIntegrity(ctx context.Context, chainID string) (*chain.Report, error) {
	report, err := a.svcs.Integrity.CheckChain(ctx, chainID)
	if err != nil {
		return nil, err
	}
	for _, issue := range report.Issues {
		metrics.ChainIntegrityIssues.WithLabelValues(issue.Code, issue.Severity).Inc()
	}
	return report, nil
}

// BuildRestorePlan builds the ordered restoration plan for a backup. A
// broken chain is a non-retryable failure; retrying cannot mend it.
func (a *BackupDB) BuildRestorePlan(ctx context.Context, params RestorePlanParams) (*chain.Plan, error) {
	plan, err := a.svcs.Integrity.PlanRestore(ctx, params.BackupID, a.restoreThroughput)
	if err != nil {
		var broken *chain.ChainBrokenError
		if errors.As(err, &broken) {
			return nil, temporal.NewNonRetryableApplicationError(broken.Error(), "ChainBroken", err)
		}
		return nil, err
	}
	return plan, nil
}

// RecordRestoreResult counts a finished restoration for metrics.
func (a *BackupDB) RecordRestoreResult(ctx context.Context, status string) error {
	metrics.RestoresTotal.WithLabelValues(status).Inc()
	return nil
}

// NewBackupID generates the row ID for a claimed slot. Kept as an activity
// so workflows stay deterministic.
func (a *BackupDB) NewBackupID(ctx context.Context) (string, error) {
	return platform.NewID(), nil
}

// NewChainID generates a fresh chain ID for a full backup.
func (a *BackupDB) NewChainID(ctx context.Context) (string, error) {
	return platform.NewID(), nil
}
