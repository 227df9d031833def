package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/holtet/backstack/internal/chain"
	"github.com/holtet/backstack/internal/model"
)

// IntegrityService verifies chain structure and builds restoration plans
// from the persisted chain state.
type IntegrityService struct {
	backups *BackupService
}

func NewIntegrityService(backups *BackupService) *IntegrityService {
	return &IntegrityService{backups: backups}
}

// CheckChain loads a chain and reports structural issues and the
// restorable watermark.
func (s *IntegrityService) CheckChain(ctx context.Context, chainID string) (*chain.Report, error) {
	members, err := s.backups.ListChain(ctx, chainID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("chain %s has no backups: %w", chainID, pgx.ErrNoRows)
	}

	report := chain.CheckChain(chainID, members)
	return &report, nil
}

// PlanRestore builds the ordered restoration plan for a backup by walking
// its parent links back to the chain's full backup.
func (s *IntegrityService) PlanRestore(ctx context.Context, backupID string, throughputBytesPerSec int64) (*chain.Plan, error) {
	target, err := s.backups.GetByID(ctx, backupID)
	if err != nil {
		return nil, err
	}

	members, err := s.backups.ListChain(ctx, target.ChainID)
	if err != nil {
		return nil, err
	}

	index := make(map[string]*model.Backup, len(members))
	for i := range members {
		index[members[i].ID] = &members[i]
	}

	return chain.BuildPlan(target, index, throughputBytesPerSec)
}
