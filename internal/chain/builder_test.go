package chain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holtet/backstack/internal/model"
)

func completedBackup(id, chainID string, seq int, parentID *string) *model.Backup {
	completed := time.Date(2026, 8, 10, 3, 0, 0, 0, time.UTC)
	token := "cp-" + id
	return &model.Backup{
		ID:              id,
		ChainID:         chainID,
		SequenceNumber:  seq,
		ParentBackupID:  parentID,
		Mode:            model.ModeIncremental,
		Status:          model.StatusCompleted,
		CompletedAt:     &completed,
		CheckpointToken: &token,
	}
}

func TestDecide_FirstBackupStartsChain(t *testing.T) {
	d := Decide(DecideInput{
		Policy:               model.PolicyAuto,
		Prior:                nil,
		Now:                  time.Date(2026, 8, 10, 3, 0, 0, 0, time.UTC),
		IncrementalSupported: true,
		NewChainID:           "chain-new",
	})

	assert.Equal(t, model.ModeFull, d.Mode)
	assert.Equal(t, "chain-new", d.ChainID)
	assert.Equal(t, 0, d.SequenceNumber)
	assert.Nil(t, d.ParentBackupID)
	assert.Nil(t, d.CheckpointToken)
	assert.Equal(t, ReasonFirstBackup, d.FullReason)
}

func TestDecide_IncrementalExtendsChain(t *testing.T) {
	prior := completedBackup("b-3", "chain-1", 3, nil)

	d := Decide(DecideInput{
		Policy:               model.PolicyAuto,
		MaxChainLength:       7,
		Prior:                prior,
		Now:                  time.Date(2026, 8, 10, 3, 0, 0, 0, time.UTC),
		IncrementalSupported: true,
		NewChainID:           "chain-unused",
	})

	assert.Equal(t, model.ModeIncremental, d.Mode)
	assert.Equal(t, "chain-1", d.ChainID)
	assert.Equal(t, 4, d.SequenceNumber)
	require.NotNil(t, d.ParentBackupID)
	assert.Equal(t, "b-3", *d.ParentBackupID)
	require.NotNil(t, d.CheckpointToken)
	assert.Equal(t, "cp-b-3", *d.CheckpointToken)
	assert.Empty(t, d.FullReason)
}

func TestDecide_FullOnlyPolicy(t *testing.T) {
	prior := completedBackup("b-1", "chain-1", 1, nil)

	d := Decide(DecideInput{
		Policy:               model.PolicyFullOnly,
		Prior:                prior,
		Now:                  time.Date(2026, 8, 10, 3, 0, 0, 0, time.UTC),
		IncrementalSupported: true,
		NewChainID:           "chain-2",
	})

	assert.Equal(t, model.ModeFull, d.Mode)
	assert.Equal(t, "chain-2", d.ChainID)
	assert.Equal(t, 0, d.SequenceNumber)
	assert.Equal(t, ReasonPolicyFullOnly, d.FullReason)
}

func TestDecide_MaxChainLengthForcesFull(t *testing.T) {
	prior := completedBackup("b-7", "chain-1", 7, nil)

	d := Decide(DecideInput{
		Policy:               model.PolicyIncrementalPreferred,
		MaxChainLength:       7,
		Prior:                prior,
		Now:                  time.Date(2026, 8, 10, 3, 0, 0, 0, time.UTC),
		IncrementalSupported: true,
		NewChainID:           "chain-2",
	})

	assert.Equal(t, model.ModeFull, d.Mode)
	assert.Equal(t, ReasonChainLength, d.FullReason)
}

func TestDecide_BelowMaxChainLengthStaysIncremental(t *testing.T) {
	prior := completedBackup("b-6", "chain-1", 6, nil)

	d := Decide(DecideInput{
		Policy:               model.PolicyAuto,
		MaxChainLength:       7,
		Prior:                prior,
		Now:                  time.Date(2026, 8, 10, 3, 0, 0, 0, time.UTC),
		IncrementalSupported: true,
	})

	assert.Equal(t, model.ModeIncremental, d.Mode)
	assert.Equal(t, 7, d.SequenceNumber)
}

func TestDecide_FullBackupDayForcesFull(t *testing.T) {
	prior := completedBackup("b-2", "chain-1", 2, nil)
	day := 1

	d := Decide(DecideInput{
		Policy:               model.PolicyIncrementalPreferred,
		FullBackupDay:        &day,
		Prior:                prior,
		Now:                  time.Date(2026, 9, 1, 3, 0, 0, 0, time.UTC),
		IncrementalSupported: true,
		NewChainID:           "chain-2",
	})

	assert.Equal(t, model.ModeFull, d.Mode)
	assert.Equal(t, ReasonFullBackupDay, d.FullReason)
}

func TestDecide_FullBackupDayNotToday(t *testing.T) {
	prior := completedBackup("b-2", "chain-1", 2, nil)
	day := 1

	d := Decide(DecideInput{
		Policy:               model.PolicyAuto,
		FullBackupDay:        &day,
		Prior:                prior,
		Now:                  time.Date(2026, 9, 2, 3, 0, 0, 0, time.UTC),
		IncrementalSupported: true,
	})

	assert.Equal(t, model.ModeIncremental, d.Mode)
}

func TestDecide_ProbeFallbackForcesFull(t *testing.T) {
	prior := completedBackup("b-2", "chain-1", 2, nil)

	d := Decide(DecideInput{
		Policy:               model.PolicyAuto,
		Prior:                prior,
		Now:                  time.Date(2026, 8, 10, 3, 0, 0, 0, time.UTC),
		IncrementalSupported: false,
		NewChainID:           "chain-2",
	})

	assert.Equal(t, model.ModeFull, d.Mode)
	assert.Equal(t, ReasonProbeFallback, d.FullReason)
}

// Scenario: seq1 failed, most recent completed is seq0. The next decision
// must derive from seq0 and reuse sequence 1, not produce sequence 2. The
// caller's lookup already skips failed rows, so Prior here is seq0.
func TestDecide_FailedBackupSequenceReused(t *testing.T) {
	prior := completedBackup("b-0", "chain-1", 0, nil)
	prior.Mode = model.ModeFull

	d := Decide(DecideInput{
		Policy:               model.PolicyAuto,
		MaxChainLength:       7,
		Prior:                prior,
		Now:                  time.Date(2026, 8, 10, 3, 0, 0, 0, time.UTC),
		IncrementalSupported: true,
	})

	assert.Equal(t, model.ModeIncremental, d.Mode)
	assert.Equal(t, 1, d.SequenceNumber)
	require.NotNil(t, d.ParentBackupID)
	assert.Equal(t, "b-0", *d.ParentBackupID)
}
