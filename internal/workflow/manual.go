package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/holtet/backstack/internal/activity"
)

// RunManualBackupWorkflow captures an ad-hoc backup whose row was already
// claimed by the API. Manual backups are always full backups on their own
// chain, so there is no slot race and no schedule state to update.
func RunManualBackupWorkflow(ctx workflow.Context, backupID string) error {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    3,
			InitialInterval:    1 * time.Second,
			MaximumInterval:    10 * time.Second,
			BackoffCoefficient: 2.0,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var bctx activity.BackupContext
	err := workflow.ExecuteActivity(ctx, "GetBackupContext", backupID).Get(ctx, &bctx)
	if err != nil {
		return err
	}

	err = workflow.ExecuteActivity(ctx, "MarkBackupRunning", backupID).Get(ctx, nil)
	if err != nil {
		_ = abortBackup(ctx, backupID, err)
		return err
	}

	storagePath := fmt.Sprintf("%s/%s/%s/%04d-%s-%s.gz",
		bctx.Backup.SourceType, bctx.Backup.SourceID,
		bctx.Backup.ChainID, bctx.Backup.SequenceNumber, bctx.Backup.Mode, backupID)

	captureCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Hour,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    3,
			InitialInterval:    5 * time.Second,
			MaximumInterval:    1 * time.Minute,
			BackoffCoefficient: 2.0,
		},
	})

	var result activity.CaptureUploadResult
	err = workflow.ExecuteActivity(captureCtx, "CaptureAndUpload", activity.CaptureUploadParams{
		BackupID:         backupID,
		SourceType:       bctx.Backup.SourceType,
		SourceID:         bctx.Backup.SourceID,
		Mode:             bctx.Backup.Mode,
		CheckpointName:   "manual-" + backupID,
		StorageBackendID: bctx.Backup.StorageBackendID,
		StoragePath:      storagePath,
	}).Get(ctx, &result)
	if err != nil {
		_ = abortBackup(ctx, backupID, err)
		return err
	}

	err = workflow.ExecuteActivity(ctx, "FinalizeBackup", activity.FinalizeBackupParams{
		BackupID:            backupID,
		SizeBytes:           result.SizeBytes,
		CompressedSizeBytes: result.CompressedSizeBytes,
		Checksum:            result.Checksum,
		StoragePath:         storagePath,
		CheckpointToken:     result.CheckpointToken,
	}).Get(ctx, nil)
	if err != nil {
		_ = abortBackup(ctx, backupID, err)
		return err
	}
	return nil
}
