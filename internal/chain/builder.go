package chain

import (
	"time"

	"github.com/holtet/backstack/internal/model"
)

// Reasons a decision forced a full backup, recorded for observability.
const (
	ReasonFirstBackup     = "no completed backup for source"
	ReasonPolicyFullOnly  = "policy is full_only"
	ReasonChainLength     = "chain reached max length"
	ReasonFullBackupDay   = "calendar full-backup day"
	ReasonProbeFallback   = "incremental capture unsupported for source"
	ReasonIncrementalNext = ""
)

// DecideInput is everything the chain builder needs to assign chain
// identity to a triggered job. Prior is the most recent *completed* backup
// for the source; failed and cancelled rows must already be skipped by the
// caller's lookup.
type DecideInput struct {
	Policy         string
	MaxChainLength int
	FullBackupDay  *int
	Prior          *model.Backup
	Now            time.Time

	// IncrementalSupported is the outcome of the snapshot producer's
	// capability probe for this source.
	IncrementalSupported bool

	// NewChainID is used as the chain identity if the decision starts a
	// new chain. Callers generate it up front so the decision itself
	// stays deterministic.
	NewChainID string
}

// Decision assigns chain identity to a new backup job.
type Decision struct {
	Mode            string  `json:"backup_mode"`
	ChainID         string  `json:"chain_id"`
	SequenceNumber  int     `json:"sequence_number"`
	ParentBackupID  *string `json:"parent_backup_id,omitempty"`
	CheckpointToken *string `json:"checkpoint_token,omitempty"`

	// FullReason is set when Mode is full and names what forced it.
	FullReason string `json:"full_reason,omitempty"`
}

// Decide determines whether the triggered job is a full backup starting a
// new chain or an incremental extending the prior one.
//
// MaxChainLength and FullBackupDay are hard overrides: they force a full
// regardless of policy. A failed capability probe also forces a full; the
// difference between auto and incremental_preferred is only how hard the
// caller probes before accepting the downgrade (the preferred policy
// re-probes before giving up).
func Decide(in DecideInput) Decision {
	if reason := fullReason(in); reason != "" {
		return Decision{
			Mode:           model.ModeFull,
			ChainID:        in.NewChainID,
			SequenceNumber: 0,
			FullReason:     reason,
		}
	}

	prior := in.Prior
	return Decision{
		Mode:            model.ModeIncremental,
		ChainID:         prior.ChainID,
		SequenceNumber:  prior.SequenceNumber + 1,
		ParentBackupID:  &prior.ID,
		CheckpointToken: prior.CheckpointToken,
	}
}

func fullReason(in DecideInput) string {
	if in.Prior == nil {
		return ReasonFirstBackup
	}
	if in.Policy == model.PolicyFullOnly {
		return ReasonPolicyFullOnly
	}
	if in.MaxChainLength > 0 && in.Prior.SequenceNumber >= in.MaxChainLength {
		return ReasonChainLength
	}
	if in.FullBackupDay != nil && in.Now.UTC().Day() == *in.FullBackupDay {
		return ReasonFullBackupDay
	}
	if !in.IncrementalSupported {
		return ReasonProbeFallback
	}
	return ReasonIncrementalNext
}
