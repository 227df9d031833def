package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/holtet/backstack/internal/activity"
	"github.com/holtet/backstack/internal/model"
)

// DeleteBackupWorkflow removes a backup's stored artifact and then marks
// the row deleted. Artifact deletion is idempotent so the workflow is safe
// to retry end to end.
func DeleteBackupWorkflow(ctx workflow.Context, backupID string) error {
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

	// When started directly by a retention sweep the row may still say
	// completed; move it to deleting first so readers stop offering it.
	err := workflow.ExecuteActivity(ctx, "SetBackupStatus", activity.SetBackupStatusParams{
		BackupID: backupID,
		Status:   model.StatusDeleting,
	}).Get(ctx, nil)
	if err != nil {
		return err
	}

	// On failure the row stays in deleting and the next sweep retries the
	// artifact removal.
	err = workflow.ExecuteActivity(ctx, "DeleteArtifact", backupID).Get(ctx, nil)
	if err != nil {
		workflow.GetLogger(ctx).Warn("artifact deletion failed", "backup_id", backupID, "error", err)
		return err
	}

	return workflow.ExecuteActivity(ctx, "MarkBackupDeleted", backupID).Get(ctx, nil)
}
