package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/holtet/backstack/internal/activity"
	"github.com/holtet/backstack/internal/chain"
	"github.com/holtet/backstack/internal/model"
)

type RestoreBackupWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *RestoreBackupWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	registerActivities(s.env)
}

func (s *RestoreBackupWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func restoreTarget() model.Backup {
	return model.Backup{
		ID:             "bk-3",
		ChainID:        "chain-1",
		SequenceNumber: 2,
		Status:         model.StatusCompleted,
	}
}

func (s *RestoreBackupWorkflowTestSuite) TestSuccess_StagesWholeChain() {
	target := restoreTarget()

	s.env.OnActivity("GetBackupContext", mock.Anything, "bk-3").Return(&activity.BackupContext{
		Backup:  target,
		Backend: model.StorageBackend{ID: "sb-1"},
	}, nil)
	s.env.OnActivity("CheckChainIntegrity", mock.Anything, "chain-1").Return(&chain.Report{
		ChainID:           "chain-1",
		Valid:             true,
		Restorable:        true,
		TotalBackups:      3,
		CompletedBackups:  3,
		RestorableThrough: 2,
	}, nil)
	s.env.OnActivity("BuildRestorePlan", mock.Anything, activity.RestorePlanParams{
		BackupID: "bk-3",
	}).Return(&chain.Plan{
		TargetBackupID: "bk-3",
		ChainID:        "chain-1",
		Steps: []chain.PlanStep{
			{BackupID: "bk-1", SequenceNumber: 0, Mode: model.ModeFull, Action: chain.ActionRestoreFull},
			{BackupID: "bk-2", SequenceNumber: 1, Mode: model.ModeIncremental, Action: chain.ActionApplyIncremental},
			{BackupID: "bk-3", SequenceNumber: 2, Mode: model.ModeIncremental, Action: chain.ActionApplyIncremental},
		},
		TotalSizeBytes: 6144,
		EstimatedTime:  time.Minute,
	}, nil)
	for _, id := range []string{"bk-1", "bk-2", "bk-3"} {
		s.env.OnActivity("FetchStep", mock.Anything, activity.FetchStepParams{
			BackupID:  id,
			RestoreID: "bk-3",
		}).Return(&activity.FetchStepResult{
			LocalPath:        "/var/lib/backstack/restore/bk-3/" + id,
			ChecksumVerified: true,
		}, nil)
		s.env.OnActivity("MarkBackupVerified", mock.Anything, id).Return(nil)
	}
	s.env.OnActivity("RecordRestoreResult", mock.Anything, model.StatusCompleted).Return(nil)

	s.env.ExecuteWorkflow(RestoreBackupWorkflow, "bk-3")
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *RestoreBackupWorkflowTestSuite) TestUncheckedArtifactNotMarkedVerified() {
	target := restoreTarget()

	s.env.OnActivity("GetBackupContext", mock.Anything, "bk-3").Return(&activity.BackupContext{
		Backup: target,
	}, nil)
	s.env.OnActivity("CheckChainIntegrity", mock.Anything, "chain-1").Return(&chain.Report{
		ChainID:           "chain-1",
		Valid:             true,
		Restorable:        true,
		RestorableThrough: 2,
	}, nil)
	s.env.OnActivity("BuildRestorePlan", mock.Anything, mock.Anything).Return(&chain.Plan{
		TargetBackupID: "bk-3",
		ChainID:        "chain-1",
		Steps: []chain.PlanStep{
			{BackupID: "bk-3", SequenceNumber: 2, Mode: model.ModeIncremental, Action: chain.ActionApplyIncremental},
		},
	}, nil)
	// A row without a stored checksum stages fine but must not be
	// flipped to verified.
	s.env.OnActivity("FetchStep", mock.Anything, mock.Anything).
		Return(&activity.FetchStepResult{LocalPath: "/var/lib/backstack/restore/bk-3/bk-3"}, nil)
	s.env.OnActivity("RecordRestoreResult", mock.Anything, model.StatusCompleted).Return(nil)

	s.env.ExecuteWorkflow(RestoreBackupWorkflow, "bk-3")
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
	s.env.AssertNotCalled(s.T(), "MarkBackupVerified", mock.Anything, mock.Anything)
}

func (s *RestoreBackupWorkflowTestSuite) TestTargetPastRestorablePoint() {
	target := restoreTarget()

	s.env.OnActivity("GetBackupContext", mock.Anything, "bk-3").Return(&activity.BackupContext{
		Backup: target,
	}, nil)
	s.env.OnActivity("CheckChainIntegrity", mock.Anything, "chain-1").Return(&chain.Report{
		ChainID:           "chain-1",
		Valid:             false,
		RestorableThrough: 1,
		Issues: []chain.Issue{
			{Severity: chain.SeverityCritical, Code: chain.IssueSequenceGap, SequenceNumber: 2},
		},
	}, nil)
	s.env.OnActivity("RecordRestoreResult", mock.Anything, model.StatusFailed).Return(nil)

	s.env.ExecuteWorkflow(RestoreBackupWorkflow, "bk-3")
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
	s.Contains(s.env.GetWorkflowError().Error(), "only restorable through")
	s.env.AssertNotCalled(s.T(), "FetchStep", mock.Anything, mock.Anything)
}

func (s *RestoreBackupWorkflowTestSuite) TestIncompleteBackupRefused() {
	target := restoreTarget()
	target.Status = model.StatusRunning

	s.env.OnActivity("GetBackupContext", mock.Anything, "bk-3").Return(&activity.BackupContext{
		Backup: target,
	}, nil)
	s.env.OnActivity("RecordRestoreResult", mock.Anything, model.StatusFailed).Return(nil)

	s.env.ExecuteWorkflow(RestoreBackupWorkflow, "bk-3")
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
	s.Contains(s.env.GetWorkflowError().Error(), "not completed")
}

func (s *RestoreBackupWorkflowTestSuite) TestBrokenChainPlanFails() {
	target := restoreTarget()

	s.env.OnActivity("GetBackupContext", mock.Anything, "bk-3").Return(&activity.BackupContext{
		Backup: target,
	}, nil)
	s.env.OnActivity("CheckChainIntegrity", mock.Anything, "chain-1").Return(&chain.Report{
		ChainID:           "chain-1",
		Valid:             true,
		RestorableThrough: 2,
	}, nil)
	s.env.OnActivity("BuildRestorePlan", mock.Anything, mock.Anything).
		Return(nil, temporal.NewNonRetryableApplicationError("chain chain-1 broken at backup bk-2", "ChainBroken", nil))
	s.env.OnActivity("RecordRestoreResult", mock.Anything, model.StatusFailed).Return(nil)

	s.env.ExecuteWorkflow(RestoreBackupWorkflow, "bk-3")
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}

func TestRestoreBackupWorkflow(t *testing.T) {
	suite.Run(t, new(RestoreBackupWorkflowTestSuite))
}
