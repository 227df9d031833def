package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/holtet/backstack/internal/activity"
	"github.com/holtet/backstack/internal/model"
)

// RetentionSweepWorkflow runs retention for every enabled schedule with a
// retention policy. Each source is swept in a child workflow so one bad
// source never blocks the rest.
func RetentionSweepWorkflow(ctx workflow.Context) error {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var targets []model.Schedule
	err := workflow.ExecuteActivity(ctx, "ListRetentionTargets").Get(ctx, &targets)
	if err != nil {
		return err
	}

	logger := workflow.GetLogger(ctx)
	logger.Info("found retention targets", "count", len(targets))

	for _, sched := range targets {
		childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
			WorkflowID: "retention-sweep-" + sched.ID,
		})
		err := workflow.ExecuteChildWorkflow(childCtx, SweepSourceWorkflow, sched.ID).Get(ctx, nil)
		if err != nil {
			logger.Error("retention sweep failed for schedule", "scheduleID", sched.ID, "error", err)
			// Continue sweeping other sources even if one fails.
		}
	}

	return nil
}

// SweepSourceWorkflow evaluates retention for one schedule's source and
// deletes the expired backups. The evaluation already orders deletions
// deepest first so no backup loses a parent it still needs.
func SweepSourceWorkflow(ctx workflow.Context, scheduleID string) error {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var eval activity.RetentionEvaluation
	err := workflow.ExecuteActivity(ctx, "EvaluateRetention", scheduleID).Get(ctx, &eval)
	if err != nil {
		return err
	}

	logger := workflow.GetLogger(ctx)
	logger.Info("retention evaluation complete",
		"scheduleID", scheduleID, "keep", len(eval.Keep), "delete", len(eval.Delete),
		"stuckDeleting", len(eval.StuckDeleting), "vetoes", len(eval.Vetoes))

	// Resume deletions a previous sweep left in deleting before taking on
	// this pass's expirations.
	for _, backupID := range append(eval.StuckDeleting, eval.Delete...) {
		childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
			WorkflowID: "backup-delete-" + backupID,
		})
		err := workflow.ExecuteChildWorkflow(childCtx, DeleteBackupWorkflow, backupID).Get(ctx, nil)
		if err != nil {
			logger.Error("failed to delete expired backup", "backupID", backupID, "error", err)
			// Deletions run deepest first; when a member survives, its
			// ancestors must survive this pass too.
			return err
		}
	}

	return nil
}
