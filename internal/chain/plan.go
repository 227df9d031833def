package chain

import (
	"fmt"
	"time"

	"github.com/holtet/backstack/internal/model"
)

// Restoration plan step actions.
const (
	ActionRestoreFull      = "restore_full"
	ActionApplyIncremental = "apply_incremental"
)

// PlanStep is one artifact to fetch and apply during a restoration.
type PlanStep struct {
	BackupID       string `json:"backup_id"`
	SequenceNumber int    `json:"sequence_number"`
	Mode           string `json:"backup_mode"`
	StoragePath    string `json:"storage_path"`
	SizeBytes      int64  `json:"size_bytes"`
	Action         string `json:"action"`
}

// Plan is an ordered restoration plan: the chain's full backup first, then
// each incremental in ascending sequence up to and including the target.
type Plan struct {
	TargetBackupID string        `json:"target_backup_id"`
	ChainID        string        `json:"chain_id"`
	Steps          []PlanStep    `json:"steps"`
	TotalSizeBytes int64         `json:"total_size_bytes"`
	EstimatedTime  time.Duration `json:"estimated_time_ns"`
}

// BuildPlan walks parent links backward from the target to the chain's
// full backup and reverses the path into apply order. The walk fails with
// ChainBrokenError at the first broken link: a missing parent row, a
// cross-chain link, a sequence that is not exactly one less, or a parent
// that is not completed.
//
// throughputBytesPerSec converts the total download size into an advisory
// time estimate; zero disables the estimate.
func BuildPlan(target *model.Backup, index map[string]*model.Backup, throughputBytesPerSec int64) (*Plan, error) {
	if target.Status != model.StatusCompleted {
		return nil, &ChainBrokenError{
			ChainID:          target.ChainID,
			BackupID:         target.ID,
			Reason:           fmt.Sprintf("target backup is %s, not completed", target.Status),
			LastSafeSequence: RestorableThrough(membersOf(target.ChainID, index)),
		}
	}

	var path []*model.Backup
	cur := target
	for {
		path = append(path, cur)
		if cur.SequenceNumber == 0 {
			if cur.ParentBackupID != nil {
				return nil, broken(target, index, cur.ID, "full backup has a parent link")
			}
			break
		}
		if cur.ParentBackupID == nil {
			return nil, broken(target, index, cur.ID, "incremental has no parent link")
		}
		parent, ok := index[*cur.ParentBackupID]
		if !ok {
			return nil, broken(target, index, cur.ID, "parent backup "+*cur.ParentBackupID+" is missing")
		}
		if parent.ChainID != cur.ChainID {
			return nil, broken(target, index, cur.ID, "parent backup belongs to chain "+parent.ChainID)
		}
		if parent.SequenceNumber != cur.SequenceNumber-1 {
			return nil, broken(target, index, cur.ID,
				fmt.Sprintf("parent sequence %d, want %d", parent.SequenceNumber, cur.SequenceNumber-1))
		}
		if parent.Status != model.StatusCompleted {
			return nil, broken(target, index, parent.ID, "parent backup is "+parent.Status+", not completed")
		}
		cur = parent
	}

	plan := &Plan{
		TargetBackupID: target.ID,
		ChainID:        target.ChainID,
		Steps:          make([]PlanStep, 0, len(path)),
	}
	for i := len(path) - 1; i >= 0; i-- {
		b := path[i]
		action := ActionApplyIncremental
		if b.SequenceNumber == 0 {
			action = ActionRestoreFull
		}
		plan.Steps = append(plan.Steps, PlanStep{
			BackupID:       b.ID,
			SequenceNumber: b.SequenceNumber,
			Mode:           b.Mode,
			StoragePath:    b.StoragePath,
			SizeBytes:      b.SizeBytes,
			Action:         action,
		})
		plan.TotalSizeBytes += b.SizeBytes
	}
	if throughputBytesPerSec > 0 {
		secs := float64(plan.TotalSizeBytes) / float64(throughputBytesPerSec)
		plan.EstimatedTime = time.Duration(secs * float64(time.Second))
	}
	return plan, nil
}

func broken(target *model.Backup, index map[string]*model.Backup, atID, reason string) *ChainBrokenError {
	return &ChainBrokenError{
		ChainID:          target.ChainID,
		BackupID:         atID,
		Reason:           reason,
		LastSafeSequence: RestorableThrough(membersOf(target.ChainID, index)),
	}
}

func membersOf(chainID string, index map[string]*model.Backup) []model.Backup {
	var members []model.Backup
	for _, b := range index {
		if b.ChainID == chainID {
			members = append(members, *b)
		}
	}
	return members
}
