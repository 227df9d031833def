// Package chain implements the backup chain and retention engine: deciding
// full vs incremental for a triggered job, classifying completed backups
// into GFS retention buckets, planning restorations, and validating chain
// integrity before anything is deleted or restored.
//
// Everything here is a pure function over explicit inputs. Persistence,
// locking, and transport live in internal/core and internal/workflow.
package chain

import "fmt"

// ChainBrokenError reports an integrity violation that blocks a requested
// restore target. LastSafeSequence is the last sequence number the chain is
// still restorable to, or -1 when nothing is restorable.
type ChainBrokenError struct {
	ChainID          string `json:"chain_id"`
	BackupID         string `json:"backup_id"`
	Reason           string `json:"reason"`
	LastSafeSequence int    `json:"last_safe_sequence"`
}

func (e *ChainBrokenError) Error() string {
	return fmt.Sprintf("chain %s broken at backup %s: %s (restorable through sequence %d)",
		e.ChainID, e.BackupID, e.Reason, e.LastSafeSequence)
}
