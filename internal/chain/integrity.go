package chain

import (
	"fmt"
	"sort"

	"github.com/holtet/backstack/internal/model"
)

// Issue severities.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// Issue codes.
const (
	IssueSequenceGap        = "sequence_gap"
	IssueDuplicateSequence  = "duplicate_sequence"
	IssueIncompleteMember   = "incomplete_member"
	IssueUnverifiedChecksum = "unverified_checksum"
	IssueOrphanedIncrement  = "orphaned_incremental"
)

// Issue is one structural problem found in a chain. Critical issues block
// restore past the break; warnings mean the chain is degraded but still
// restorable to an earlier point.
type Issue struct {
	Severity       string `json:"severity"`
	Code           string `json:"code"`
	BackupID       string `json:"backup_id,omitempty"`
	SequenceNumber int    `json:"sequence_number"`
	Message        string `json:"message"`
}

// Report is the result of a chain integrity check. RestorableThrough is
// the last contiguous completed sequence number, -1 when the chain has no
// usable full backup.
type Report struct {
	ChainID           string  `json:"chain_id"`
	Valid             bool    `json:"valid"`
	Restorable        bool    `json:"restorable"`
	TotalBackups      int     `json:"total_backups"`
	CompletedBackups  int     `json:"completed_backups"`
	RestorableThrough int     `json:"restorable_through"`
	Issues            []Issue `json:"issues,omitempty"`
}

// CheckChain validates a chain's structural consistency. Members are all
// live (non-deleted) rows of the chain in any status. The chain is Valid
// when no critical issue was found and Restorable when it can be restored
// to its latest completed member.
func CheckChain(chainID string, members []model.Backup) Report {
	r := Report{ChainID: chainID, TotalBackups: len(members)}

	completedBySeq := map[int][]model.Backup{}
	index := map[string]bool{}
	maxCompleted := -1
	for _, b := range members {
		index[b.ID] = true
		if b.Status == model.StatusCompleted {
			r.CompletedBackups++
			completedBySeq[b.SequenceNumber] = append(completedBySeq[b.SequenceNumber], b)
			if b.SequenceNumber > maxCompleted {
				maxCompleted = b.SequenceNumber
			}
		}
	}

	for seq, dups := range completedBySeq {
		if len(dups) > 1 {
			r.Issues = append(r.Issues, Issue{
				Severity:       SeverityCritical,
				Code:           IssueDuplicateSequence,
				BackupID:       dups[1].ID,
				SequenceNumber: seq,
				Message:        fmt.Sprintf("%d completed backups share sequence %d", len(dups), seq),
			})
		}
	}

	contiguous := -1
	for seq := 0; seq <= maxCompleted; seq++ {
		if len(completedBySeq[seq]) == 0 {
			r.Issues = append(r.Issues, Issue{
				Severity:       SeverityCritical,
				Code:           IssueSequenceGap,
				SequenceNumber: seq,
				Message:        fmt.Sprintf("no completed backup at sequence %d", seq),
			})
			break
		}
		contiguous = seq
	}
	r.RestorableThrough = contiguous

	for _, b := range members {
		switch b.Status {
		case model.StatusPending, model.StatusRunning:
			if b.SequenceNumber <= maxCompleted {
				r.Issues = append(r.Issues, Issue{
					Severity:       SeverityWarning,
					Code:           IssueIncompleteMember,
					BackupID:       b.ID,
					SequenceNumber: b.SequenceNumber,
					Message:        fmt.Sprintf("backup at sequence %d is still %s mid-chain", b.SequenceNumber, b.Status),
				})
			}
		case model.StatusCompleted:
			if b.Checksum != "" && !b.Verified {
				r.Issues = append(r.Issues, Issue{
					Severity:       SeverityWarning,
					Code:           IssueUnverifiedChecksum,
					BackupID:       b.ID,
					SequenceNumber: b.SequenceNumber,
					Message:        "checksum present but not verified against the artifact",
				})
			}
			if b.ParentBackupID != nil && !index[*b.ParentBackupID] {
				r.Issues = append(r.Issues, Issue{
					Severity:       SeverityCritical,
					Code:           IssueOrphanedIncrement,
					BackupID:       b.ID,
					SequenceNumber: b.SequenceNumber,
					Message:        "parent backup " + *b.ParentBackupID + " no longer exists",
				})
			}
		}
	}

	sort.Slice(r.Issues, func(i, j int) bool {
		if r.Issues[i].SequenceNumber != r.Issues[j].SequenceNumber {
			return r.Issues[i].SequenceNumber < r.Issues[j].SequenceNumber
		}
		return r.Issues[i].Code < r.Issues[j].Code
	})

	r.Valid = true
	for _, issue := range r.Issues {
		if issue.Severity == SeverityCritical {
			r.Valid = false
			break
		}
	}
	r.Restorable = contiguous >= 0 && contiguous == maxCompleted && maxCompleted >= 0 && r.Valid
	return r
}

// RestorableThrough returns the last contiguous completed sequence number
// of the chain members, -1 when sequence 0 is not completed.
func RestorableThrough(members []model.Backup) int {
	completed := map[int]bool{}
	for _, b := range members {
		if b.Status == model.StatusCompleted {
			completed[b.SequenceNumber] = true
		}
	}
	last := -1
	for completed[last+1] {
		last++
	}
	return last
}

// LoadBearing reports whether the backup has at least one completed
// descendant in the retained set: deleting it would make that descendant
// unrestorable.
func LoadBearing(backupID string, members []model.Backup, retained map[string]bool) bool {
	children := map[string][]model.Backup{}
	for _, b := range members {
		if b.ParentBackupID != nil && b.Status == model.StatusCompleted {
			children[*b.ParentBackupID] = append(children[*b.ParentBackupID], b)
		}
	}
	stack := []string{backupID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range children[id] {
			if retained[c.ID] {
				return true
			}
			stack = append(stack, c.ID)
		}
	}
	return false
}
