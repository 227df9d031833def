package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/holtet/backstack/internal/activity"
	"github.com/holtet/backstack/internal/chain"
	"github.com/holtet/backstack/internal/model"
)

// RestoreBackupWorkflow stages a restoration of the given backup: it
// verifies the chain, builds the ordered plan, and downloads every step's
// artifact into the staging area for the operator to apply.
func RestoreBackupWorkflow(ctx workflow.Context, backupID string) error {
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

	if bctx.Backup.Status != model.StatusCompleted {
		return recordRestoreFailed(ctx, fmt.Errorf("backup %s is %s, not completed", backupID, bctx.Backup.Status))
	}

	// Verify the chain before moving any bytes. A target past the last
	// contiguous completed member cannot be restored.
	var report chain.Report
	err = workflow.ExecuteActivity(ctx, "CheckChainIntegrity", bctx.Backup.ChainID).Get(ctx, &report)
	if err != nil {
		return recordRestoreFailed(ctx, err)
	}
	if bctx.Backup.SequenceNumber > report.RestorableThrough {
		return recordRestoreFailed(ctx, fmt.Errorf("chain %s is only restorable through sequence %d, target is %d",
			bctx.Backup.ChainID, report.RestorableThrough, bctx.Backup.SequenceNumber))
	}

	var plan chain.Plan
	err = workflow.ExecuteActivity(ctx, "BuildRestorePlan", activity.RestorePlanParams{
		BackupID: backupID,
	}).Get(ctx, &plan)
	if err != nil {
		return recordRestoreFailed(ctx, err)
	}

	// Downloads run long and heartbeat from the activity.
	fetchCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Hour,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    3,
			InitialInterval:    5 * time.Second,
			MaximumInterval:    1 * time.Minute,
			BackoffCoefficient: 2.0,
		},
	})

	for _, step := range plan.Steps {
		var fetched activity.FetchStepResult
		err = workflow.ExecuteActivity(fetchCtx, "FetchStep", activity.FetchStepParams{
			BackupID:  step.BackupID,
			RestoreID: backupID,
		}).Get(ctx, &fetched)
		if err != nil {
			return recordRestoreFailed(ctx, fmt.Errorf("fetch step %d (%s): %w", step.SequenceNumber, step.BackupID, err))
		}
		if fetched.ChecksumVerified {
			// Verification is bookkeeping; a failed write does not undo
			// the staged artifact.
			err = workflow.ExecuteActivity(ctx, "MarkBackupVerified", step.BackupID).Get(ctx, nil)
			if err != nil {
				workflow.GetLogger(ctx).Warn("recording verification failed",
					"backup_id", step.BackupID, "error", err)
			}
		}
		workflow.GetLogger(ctx).Info("staged restore step",
			"backup_id", step.BackupID, "sequence", step.SequenceNumber, "path", fetched.LocalPath)
	}

	return workflow.ExecuteActivity(ctx, "RecordRestoreResult", model.StatusCompleted).Get(ctx, nil)
}

func recordRestoreFailed(ctx workflow.Context, err error) error {
	_ = workflow.ExecuteActivity(ctx, "RecordRestoreResult", model.StatusFailed).Get(ctx, nil)
	return err
}
