package workflow

import (
	"github.com/stretchr/testify/mock"
	"go.temporal.io/sdk/testsuite"

	"github.com/holtet/backstack/internal/activity"
	"github.com/holtet/backstack/internal/model"
)

// registerActivities registers activity structs with the test workflow
// environment so that parameter and return types can be deserialized
// correctly by the Temporal test framework. All activities are mocked via
// OnActivity, but the framework still needs the type information.
func registerActivities(env *testsuite.TestWorkflowEnvironment) {
	env.RegisterActivity(&activity.BackupDB{})
	env.RegisterActivity(&activity.Capture{})
}

// matchFailedStatus matches a SetBackupStatus call that marks the given
// backup failed with some message. The exact message includes Temporal
// activity error wrapping that is not predictable in tests.
func matchFailedStatus(backupID string) interface{} {
	return mock.MatchedBy(func(params activity.SetBackupStatusParams) bool {
		return params.BackupID == backupID &&
			params.Status == model.StatusFailed &&
			params.StatusMessage != ""
	})
}

// matchCancelledStatus matches a SetBackupStatus call that marks the
// given backup cancelled.
func matchCancelledStatus(backupID string) interface{} {
	return mock.MatchedBy(func(params activity.SetBackupStatusParams) bool {
		return params.BackupID == backupID &&
			params.Status == model.StatusCancelled &&
			params.StatusMessage != ""
	})
}
