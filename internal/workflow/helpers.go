package workflow

import (
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/holtet/backstack/internal/activity"
	"github.com/holtet/backstack/internal/model"
)

// abortBackup records the terminal status for a backup that did not
// complete: cancelled when the workflow itself was cancelled, failed
// otherwise. The status write runs on a disconnected context so it goes
// through even after cancellation. It returns any error but callers
// typically ignore it since the primary error is more important.
func abortBackup(ctx workflow.Context, backupID string, cause error) error {
	status := model.StatusFailed
	if temporal.IsCanceledError(cause) {
		status = model.StatusCancelled
	}
	dctx, cancel := workflow.NewDisconnectedContext(ctx)
	defer cancel()
	return workflow.ExecuteActivity(dctx, "SetBackupStatus", activity.SetBackupStatusParams{
		BackupID:      backupID,
		Status:        status,
		StatusMessage: cause.Error(),
	}).Get(dctx, nil)
}
