package workflow

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/holtet/backstack/internal/activity"
	"github.com/holtet/backstack/internal/chain"
	"github.com/holtet/backstack/internal/model"
)

// claimAttempts bounds the re-decide loop when a concurrent run takes the
// chain slot first.
const claimAttempts = 3

// RunScheduledBackupWorkflow performs one backup run for a schedule: it
// decides the chain slot, claims it, captures the source, uploads the
// artifact, and records the result.
func RunScheduledBackupWorkflow(ctx workflow.Context, scheduleID string) error {
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

	var sctx activity.ScheduleContext
	err := workflow.ExecuteActivity(ctx, "GetScheduleContext", scheduleID).Get(ctx, &sctx)
	if err != nil {
		return err
	}

	if !sctx.Schedule.Enabled {
		return fmt.Errorf("schedule %s is disabled", scheduleID)
	}

	// Probe only when an incremental is even possible: a policy that allows
	// it and a prior backup with a checkpoint to build on.
	supported := false
	if sctx.Schedule.ModePolicy != model.PolicyFullOnly && sctx.Tip != nil && sctx.Tip.CheckpointToken != nil {
		err = workflow.ExecuteActivity(ctx, "ProbeIncremental", activity.ProbeParams{
			SourceType:            sctx.Schedule.SourceType,
			SourceID:              sctx.Schedule.SourceID,
			ParentCheckpointToken: *sctx.Tip.CheckpointToken,
		}).Get(ctx, &supported)
		if err != nil {
			return err
		}

		// incremental_preferred probes once more before accepting the
		// downgrade to a full; a transient agent hiccup should not cost a
		// whole new chain.
		if !supported && sctx.Schedule.ModePolicy == model.PolicyIncrementalPreferred {
			err = workflow.ExecuteActivity(ctx, "ProbeIncremental", activity.ProbeParams{
				SourceType:            sctx.Schedule.SourceType,
				SourceID:              sctx.Schedule.SourceID,
				ParentCheckpointToken: *sctx.Tip.CheckpointToken,
			}).Get(ctx, &supported)
			if err != nil {
				return err
			}
		}
	}

	var backupID string
	err = workflow.ExecuteActivity(ctx, "NewBackupID").Get(ctx, &backupID)
	if err != nil {
		return err
	}

	// Claim a chain slot, re-deciding against a fresh tip when a concurrent
	// run wins the unique index race.
	var decision chain.Decision
	for attempt := 0; ; attempt++ {
		var newChainID string
		err = workflow.ExecuteActivity(ctx, "NewChainID").Get(ctx, &newChainID)
		if err != nil {
			return err
		}

		decision = chain.Decide(chain.DecideInput{
			Policy:               sctx.Schedule.ModePolicy,
			MaxChainLength:       sctx.Schedule.MaxChainLength,
			FullBackupDay:        sctx.Schedule.FullBackupDay,
			Prior:                sctx.Tip,
			Now:                  workflow.Now(ctx).UTC(),
			IncrementalSupported: supported,
			NewChainID:           newChainID,
		})

		err = workflow.ExecuteActivity(ctx, "ClaimChainSlot", activity.ClaimSlotParams{
			BackupID:              backupID,
			ScheduleID:            scheduleID,
			SourceType:            sctx.Schedule.SourceType,
			SourceID:              sctx.Schedule.SourceID,
			StorageBackendID:      sctx.Schedule.StorageBackendID,
			ChainID:               decision.ChainID,
			SequenceNumber:        decision.SequenceNumber,
			ParentBackupID:        decision.ParentBackupID,
			Mode:                  decision.Mode,
			ParentCheckpointToken: decision.CheckpointToken,
		}).Get(ctx, nil)
		if err == nil {
			break
		}

		var appErr *temporal.ApplicationError
		if !errors.As(err, &appErr) || appErr.Type() != "SlotTaken" || attempt >= claimAttempts-1 {
			return err
		}

		// Another run claimed this slot. Refetch the tip and decide again.
		err = workflow.ExecuteActivity(ctx, "GetScheduleContext", scheduleID).Get(ctx, &sctx)
		if err != nil {
			return err
		}
	}

	err = workflow.ExecuteActivity(ctx, "MarkBackupRunning", backupID).Get(ctx, nil)
	if err != nil {
		_ = abortBackup(ctx, backupID, err)
		return err
	}

	checkpointName := "sched-" + scheduleID
	if sctx.Schedule.CheckpointName != nil {
		checkpointName = *sctx.Schedule.CheckpointName
	}

	parentToken := ""
	if decision.CheckpointToken != nil {
		parentToken = *decision.CheckpointToken
	}

	storagePath := fmt.Sprintf("%s/%s/%s/%04d-%s-%s.gz",
		sctx.Schedule.SourceType, sctx.Schedule.SourceID,
		decision.ChainID, decision.SequenceNumber, decision.Mode, backupID)

	// Capture and upload run long and heartbeat from the activity.
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
		BackupID:              backupID,
		SourceType:            sctx.Schedule.SourceType,
		SourceID:              sctx.Schedule.SourceID,
		Mode:                  decision.Mode,
		CheckpointName:        checkpointName,
		ParentCheckpointToken: parentToken,
		StorageBackendID:      sctx.Schedule.StorageBackendID,
		StoragePath:           storagePath,
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

	lastFull := sctx.Schedule.LastFullBackupID
	if decision.Mode == model.ModeFull {
		lastFull = &backupID
	}
	return workflow.ExecuteActivity(ctx, "UpdateScheduleChainState", activity.UpdateChainStateParams{
		ScheduleID:       scheduleID,
		LastFullBackupID: lastFull,
		CheckpointName:   &checkpointName,
	}).Get(ctx, nil)
}
