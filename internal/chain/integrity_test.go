package chain

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holtet/backstack/internal/model"
)

func chainMember(id string, seq int, status string, parentID *string) model.Backup {
	b := model.Backup{
		ID:             id,
		ChainID:        "c1",
		SequenceNumber: seq,
		Status:         status,
		ParentBackupID: parentID,
		Mode:           model.ModeIncremental,
		Checksum:       "sha256:" + id,
		Verified:       true,
	}
	if seq == 0 {
		b.Mode = model.ModeFull
	}
	if status == model.StatusCompleted {
		completed := time.Date(2026, 8, 1, 2, 0, 0, 0, time.UTC).Add(time.Duration(seq) * time.Hour)
		b.CompletedAt = &completed
	}
	return b
}

func TestCheckChain_Healthy(t *testing.T) {
	full := chainMember("full", 0, model.StatusCompleted, nil)
	incr1 := chainMember("incr1", 1, model.StatusCompleted, &full.ID)
	incr2 := chainMember("incr2", 2, model.StatusCompleted, &incr1.ID)

	r := CheckChain("c1", []model.Backup{full, incr1, incr2})

	assert.True(t, r.Valid)
	assert.True(t, r.Restorable)
	assert.Equal(t, 3, r.TotalBackups)
	assert.Equal(t, 3, r.CompletedBackups)
	assert.Equal(t, 2, r.RestorableThrough)
	assert.Empty(t, r.Issues)
}

func TestCheckChain_SequenceGap(t *testing.T) {
	full := chainMember("full", 0, model.StatusCompleted, nil)
	// Sequence 1 missing entirely; 2 exists.
	incr2 := chainMember("incr2", 2, model.StatusCompleted, nil)

	r := CheckChain("c1", []model.Backup{full, incr2})

	assert.False(t, r.Valid)
	assert.False(t, r.Restorable)
	assert.Equal(t, 0, r.RestorableThrough)
	require.NotEmpty(t, r.Issues)
	found := false
	for _, issue := range r.Issues {
		if issue.Code == IssueSequenceGap {
			found = true
			assert.Equal(t, SeverityCritical, issue.Severity)
			assert.Equal(t, 1, issue.SequenceNumber)
		}
	}
	assert.True(t, found)
}

func TestCheckChain_DuplicateSequence(t *testing.T) {
	full := chainMember("full", 0, model.StatusCompleted, nil)
	a := chainMember("incr1a", 1, model.StatusCompleted, &full.ID)
	b := chainMember("incr1b", 1, model.StatusCompleted, &full.ID)

	r := CheckChain("c1", []model.Backup{full, a, b})

	assert.False(t, r.Valid)
	found := false
	for _, issue := range r.Issues {
		if issue.Code == IssueDuplicateSequence {
			found = true
			assert.Equal(t, SeverityCritical, issue.Severity)
		}
	}
	assert.True(t, found)
}

func TestCheckChain_RunningMidChainIsWarning(t *testing.T) {
	full := chainMember("full", 0, model.StatusCompleted, nil)
	running := chainMember("incr1", 1, model.StatusRunning, &full.ID)
	incr2 := chainMember("incr2", 2, model.StatusCompleted, &running.ID)

	r := CheckChain("c1", []model.Backup{full, running, incr2})

	// The completed set has a gap at 1 (critical) and the running member
	// is flagged as a warning.
	assert.False(t, r.Restorable)
	assert.Equal(t, 0, r.RestorableThrough)
	var codes []string
	for _, issue := range r.Issues {
		codes = append(codes, issue.Code)
	}
	assert.Contains(t, codes, IssueIncompleteMember)
	assert.Contains(t, codes, IssueSequenceGap)
}

func TestCheckChain_RunningTipIsNotFlagged(t *testing.T) {
	full := chainMember("full", 0, model.StatusCompleted, nil)
	tip := chainMember("incr1", 1, model.StatusRunning, &full.ID)

	r := CheckChain("c1", []model.Backup{full, tip})

	assert.True(t, r.Valid)
	assert.True(t, r.Restorable)
	assert.Equal(t, 0, r.RestorableThrough)
	assert.Empty(t, r.Issues)
}

func TestCheckChain_UnverifiedChecksumIsWarning(t *testing.T) {
	full := chainMember("full", 0, model.StatusCompleted, nil)
	full.Verified = false

	r := CheckChain("c1", []model.Backup{full})

	assert.True(t, r.Valid)
	assert.True(t, r.Restorable)
	require.Len(t, r.Issues, 1)
	assert.Equal(t, IssueUnverifiedChecksum, r.Issues[0].Code)
	assert.Equal(t, SeverityWarning, r.Issues[0].Severity)
}

func TestCheckChain_OrphanedIncremental(t *testing.T) {
	ghost := "hard-deleted-parent"
	orphan := chainMember("orphan", 1, model.StatusCompleted, &ghost)

	r := CheckChain("c1", []model.Backup{orphan})

	assert.False(t, r.Valid)
	assert.False(t, r.Restorable)
	assert.Equal(t, -1, r.RestorableThrough)
	var codes []string
	for _, issue := range r.Issues {
		codes = append(codes, issue.Code)
	}
	assert.Contains(t, codes, IssueOrphanedIncrement)
}

func TestCheckChain_EmptyChain(t *testing.T) {
	r := CheckChain("c1", nil)

	assert.True(t, r.Valid)
	assert.False(t, r.Restorable)
	assert.Equal(t, -1, r.RestorableThrough)
	assert.Zero(t, r.TotalBackups)
}

func TestLoadBearing(t *testing.T) {
	full := chainMember("full", 0, model.StatusCompleted, nil)
	incr1 := chainMember("incr1", 1, model.StatusCompleted, &full.ID)
	incr2 := chainMember("incr2", 2, model.StatusCompleted, &incr1.ID)
	members := []model.Backup{full, incr1, incr2}

	retained := map[string]bool{"incr2": true}
	assert.True(t, LoadBearing("full", members, retained))
	assert.True(t, LoadBearing("incr1", members, retained))
	assert.False(t, LoadBearing("incr2", members, retained))

	// Nothing retained downstream: the full backup is not load-bearing.
	assert.False(t, LoadBearing("full", members, map[string]bool{}))
}

// Sequence contiguity (sequence numbers contiguous from 0 among
// non-cancelled backups) holds for any insert/cancel ordering produced by
// the builder: cancelled and failed rows are skipped when deriving the
// next slot, so the completed set can only grow contiguously.
func TestSequenceContiguity_RandomOrderings(t *testing.T) {
	rng := newTestRand(t)

	for trial := 0; trial < 200; trial++ {
		members := simulateChain(rng)
		live := filterOutCancelled(members)
		r := CheckChain("c1", live)

		// Every sequence up to the restorable watermark is completed with
		// no duplicates below it.
		seen := map[int]int{}
		for _, b := range live {
			if b.Status == model.StatusCompleted {
				seen[b.SequenceNumber]++
			}
		}
		for seq := 0; seq <= r.RestorableThrough; seq++ {
			require.Equal(t, 1, seen[seq], "trial %d: sequence %d", trial, seq)
		}
	}
}

// simulateChain emulates a schedule triggering jobs against one chain:
// each trigger derives the next sequence from the latest completed row,
// then terminates as completed, failed, or cancelled.
func simulateChain(rng *rand.Rand) []model.Backup {
	var members []model.Backup
	var prior *model.Backup

	triggers := 1 + rng.Intn(12)
	for i := 0; i < triggers; i++ {
		seq := 0
		var parentID *string
		if prior != nil {
			seq = prior.SequenceNumber + 1
			parentID = &prior.ID
		}
		b := chainMember(randID(rng), seq, model.StatusCompleted, parentID)
		switch rng.Intn(4) {
		case 0:
			b.Status = model.StatusFailed
			b.CompletedAt = nil
		case 1:
			b.Status = model.StatusCancelled
			b.CompletedAt = nil
		}
		members = append(members, b)
		if b.Status == model.StatusCompleted {
			prior = &members[len(members)-1]
		}
	}
	return members
}

func filterOutCancelled(members []model.Backup) []model.Backup {
	var out []model.Backup
	for _, b := range members {
		if b.Status != model.StatusCancelled && b.Status != model.StatusFailed {
			out = append(out, b)
		}
	}
	return out
}

func randID(rng *rand.Rand) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 8)
	for i := range b {
		b[i] = alphabet[rng.Intn(len(alphabet))]
	}
	return string(b)
}
