package chain

import (
	"sort"
	"time"

	"github.com/holtet/backstack/internal/model"
)

// Veto reasons for otherwise-eligible deletion candidates.
const (
	VetoImmutable      = "immutable"
	VetoLegalHold      = "legal_hold"
	VetoRetentionUntil = "retention_until"
	VetoLoadBearing    = "load_bearing"
)

// Veto records a deliberate no-op: a backup fell outside every retention
// tier but must not be deleted. Logged, never surfaced as failure.
type Veto struct {
	BackupID string `json:"backup_id"`
	Reason   string `json:"reason"`
}

// RetentionInput is the evaluation request for one source. Backups must be
// the source's completed backups; order does not matter.
type RetentionInput struct {
	Backups []model.Backup
	Config  model.RetentionConfig
	Now     time.Time
}

// RetentionResult partitions a source's completed backups. Delete is in
// safe deletion order: deepest incrementals first, full backups last, so a
// crash mid-sweep never strands an incremental whose parent is gone.
type RetentionResult struct {
	Keep   []model.Backup `json:"keep"`
	Delete []model.Backup `json:"delete"`
	Vetoes []Veto         `json:"vetoes,omitempty"`
}

// EvaluateRetention classifies each completed backup into GFS buckets and
// computes the keep and delete sets. Bucketing is applied independently per
// tier and unioned; a backup matched by zero tiers is a deletion candidate
// unless a protection flag or a kept descendant vetoes it.
//
// Period membership uses completed_at in UTC: that is when the recovery
// point actually became valid.
func EvaluateRetention(in RetentionInput) RetentionResult {
	backups := make([]model.Backup, 0, len(in.Backups))
	for _, b := range in.Backups {
		if b.Status == model.StatusCompleted && b.CompletedAt != nil {
			backups = append(backups, b)
		}
	}
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CompletedAt.After(*backups[j].CompletedAt)
	})

	keep := map[string]bool{}
	markDaily(backups, in.Config.Daily, keep)
	markPeriodFirsts(backups, in.Config.Weekly, weekKey, keep)
	markPeriodFirsts(backups, in.Config.Monthly, monthKey, keep)
	markPeriodFirsts(backups, in.Config.Yearly, yearKey, keep)

	index := make(map[string]*model.Backup, len(backups))
	for i := range backups {
		index[backups[i].ID] = &backups[i]
	}

	var result RetentionResult
	retained := map[string]bool{}
	var candidates []model.Backup

	for _, b := range backups {
		if keep[b.ID] {
			retained[b.ID] = true
			result.Keep = append(result.Keep, b)
			continue
		}
		switch {
		case b.Immutable:
			retained[b.ID] = true
			result.Vetoes = append(result.Vetoes, Veto{BackupID: b.ID, Reason: VetoImmutable})
		case b.LegalHold:
			retained[b.ID] = true
			result.Vetoes = append(result.Vetoes, Veto{BackupID: b.ID, Reason: VetoLegalHold})
		case b.RetentionUntil != nil && b.RetentionUntil.After(in.Now):
			retained[b.ID] = true
			result.Vetoes = append(result.Vetoes, Veto{BackupID: b.ID, Reason: VetoRetentionUntil})
		default:
			candidates = append(candidates, b)
		}
	}

	// Every ancestor of a retained backup is load-bearing: deleting it
	// would make the retained descendant unrestorable. Walk parent links
	// to a fixpoint since a newly retained ancestor protects its own
	// ancestors in turn.
	loadBearing := ancestorsOf(retained, index)
	for _, id := range loadBearing {
		retained[id] = true
		result.Vetoes = append(result.Vetoes, Veto{BackupID: id, Reason: VetoLoadBearing})
	}

	for _, b := range candidates {
		if !retained[b.ID] {
			result.Delete = append(result.Delete, b)
		}
	}
	sort.Slice(result.Delete, func(i, j int) bool {
		a, b := result.Delete[i], result.Delete[j]
		if a.ChainID != b.ChainID {
			return a.ChainID < b.ChainID
		}
		return a.SequenceNumber > b.SequenceNumber
	})
	return result
}

// markDaily keeps the most recent n backups, one per calendar day. Older
// backups on an already-counted day do not consume tier slots.
func markDaily(desc []model.Backup, n int, keep map[string]bool) {
	if n <= 0 {
		return
	}
	seen := map[int]bool{}
	for _, b := range desc {
		day := dayKey(*b.CompletedAt)
		if seen[day] {
			continue
		}
		seen[day] = true
		keep[b.ID] = true
		if len(seen) >= n {
			return
		}
	}
}

// markPeriodFirsts keeps the most recent n backups that are each the first
// completed backup of their period.
func markPeriodFirsts(desc []model.Backup, n int, key func(time.Time) int, keep map[string]bool) {
	if n <= 0 {
		return
	}
	firsts := map[int]model.Backup{}
	for _, b := range desc {
		k := key(*b.CompletedAt)
		cur, ok := firsts[k]
		if !ok || b.CompletedAt.Before(*cur.CompletedAt) {
			firsts[k] = b
		}
	}

	picked := make([]model.Backup, 0, len(firsts))
	for _, b := range firsts {
		picked = append(picked, b)
	}
	sort.Slice(picked, func(i, j int) bool {
		return picked[i].CompletedAt.After(*picked[j].CompletedAt)
	})
	for i, b := range picked {
		if i >= n {
			return
		}
		keep[b.ID] = true
	}
}

// ancestorsOf returns ids of backups reachable via parent links from the
// retained set that are not themselves retained yet.
func ancestorsOf(retained map[string]bool, index map[string]*model.Backup) []string {
	var found []string
	marked := map[string]bool{}

	var stack []string
	for id := range retained {
		stack = append(stack, id)
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		b, ok := index[id]
		if !ok || b.ParentBackupID == nil {
			continue
		}
		pid := *b.ParentBackupID
		if retained[pid] || marked[pid] {
			continue
		}
		if _, ok := index[pid]; !ok {
			// Parent row missing entirely; the integrity checker
			// reports the orphan, nothing to retain here.
			continue
		}
		marked[pid] = true
		found = append(found, pid)
		stack = append(stack, pid)
	}
	sort.Strings(found)
	return found
}

func dayKey(t time.Time) int {
	t = t.UTC()
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

func weekKey(t time.Time) int {
	y, w := t.UTC().ISOWeek()
	return y*100 + w
}

func monthKey(t time.Time) int {
	t = t.UTC()
	return t.Year()*100 + int(t.Month())
}

func yearKey(t time.Time) int {
	return t.UTC().Year()
}
