package core

import (
	"context"
	"fmt"

	temporalclient "go.temporal.io/sdk/client"
)

const taskQueue = "backstack-tasks"

// skipWorkflowKey is a context key that suppresses workflow execution.
// Used in tests and during nested creation where the caller drives the
// workflow itself.
type skipWorkflowKey struct{}

// WithSkipWorkflow returns a context that causes startWorkflow to be a no-op.
func WithSkipWorkflow(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipWorkflowKey{}, true)
}

// workflowID builds a human-readable Temporal workflow ID from a prefix and
// the resource's unique ID.
func workflowID(prefix, id string) string {
	return fmt.Sprintf("%s-%s", prefix, id)
}

// startWorkflow executes a Temporal workflow on the shared task queue. The
// workflow ID doubles as a mutual-exclusion key: Temporal rejects a second
// start while a workflow with the same ID is still running, which is how
// per-source backup runs stay exclusive.
func startWorkflow(ctx context.Context, tc temporalclient.Client, workflowName, wfID string, arg any) error {
	if v, _ := ctx.Value(skipWorkflowKey{}).(bool); v {
		return nil
	}
	_, err := tc.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
		ID:        wfID,
		TaskQueue: taskQueue,
	}, workflowName, arg)
	return err
}
