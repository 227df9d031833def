package workflow

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/holtet/backstack/internal/activity"
	"github.com/holtet/backstack/internal/model"
)

type DeleteBackupWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *DeleteBackupWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	registerActivities(s.env)
}

func (s *DeleteBackupWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func (s *DeleteBackupWorkflowTestSuite) TestSuccess() {
	s.env.OnActivity("SetBackupStatus", mock.Anything, activity.SetBackupStatusParams{
		BackupID: "bk-1",
		Status:   model.StatusDeleting,
	}).Return(nil)
	s.env.OnActivity("DeleteArtifact", mock.Anything, "bk-1").Return(nil)
	s.env.OnActivity("MarkBackupDeleted", mock.Anything, "bk-1").Return(nil)

	s.env.ExecuteWorkflow(DeleteBackupWorkflow, "bk-1")
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *DeleteBackupWorkflowTestSuite) TestArtifactDeletionFails_RowStaysDeleting() {
	s.env.OnActivity("SetBackupStatus", mock.Anything, activity.SetBackupStatusParams{
		BackupID: "bk-1",
		Status:   model.StatusDeleting,
	}).Return(nil)
	s.env.OnActivity("DeleteArtifact", mock.Anything, "bk-1").
		Return(temporal.NewNonRetryableApplicationError("backend unreachable", "StorageFailed", nil))

	s.env.ExecuteWorkflow(DeleteBackupWorkflow, "bk-1")
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
	s.env.AssertNotCalled(s.T(), "MarkBackupDeleted", mock.Anything, mock.Anything)
}

func TestDeleteBackupWorkflow(t *testing.T) {
	suite.Run(t, new(DeleteBackupWorkflowTestSuite))
}
