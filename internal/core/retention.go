package core

import (
	"context"
	"time"

	"github.com/holtet/backstack/internal/chain"
	"github.com/holtet/backstack/internal/model"
)

// RetentionService evaluates GFS retention for sources. Evaluation is pure;
// deletion of the selected backups happens through the retention sweep
// workflow so each artifact delete is durable and retried.
type RetentionService struct {
	backups *BackupService
}

func NewRetentionService(backups *BackupService) *RetentionService {
	return &RetentionService{backups: backups}
}

// EvaluateSource classifies every completed backup of a source into keep
// and delete sets under the given retention config. The result is a dry
// run; callers decide whether to act on the delete set.
func (s *RetentionService) EvaluateSource(ctx context.Context, sourceType, sourceID string, cfg model.RetentionConfig, now time.Time) (*chain.RetentionResult, error) {
	backups, err := s.backups.ListBySource(ctx, sourceType, sourceID)
	if err != nil {
		return nil, err
	}

	result := chain.EvaluateRetention(chain.RetentionInput{
		Backups: backups,
		Config:  cfg,
		Now:     now,
	})
	return &result, nil
}
