package model

// Backup lifecycle status constants.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
	StatusDeleting  = "deleting"
	StatusDeleted   = "deleted"
)

// Backup modes.
const (
	ModeFull        = "full"
	ModeIncremental = "incremental"
)

// Schedule backup mode policies.
const (
	PolicyAuto                 = "auto"
	PolicyFullOnly             = "full_only"
	PolicyIncrementalPreferred = "incremental_preferred"
)

// Backup source types.
const (
	SourceTypeVM        = "vm"
	SourceTypeContainer = "container"
)

// IsTerminal reports whether a backup status is final.
func IsTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusDeleted:
		return true
	}
	return false
}
