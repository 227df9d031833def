package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/holtet/backstack/internal/model"
)

const backupColumns = `id, chain_id, sequence_number, parent_backup_id, backup_mode, size_bytes, compressed_size_bytes, checksum, verified, storage_path, storage_backend_id, checkpoint_token, status, status_message, started_at, completed_at, immutable, retention_until, legal_hold_enabled, source_type, source_id, schedule_id, created_at, updated_at`

func scanBackup(row interface{ Scan(dest ...any) error }) (model.Backup, error) {
	var b model.Backup
	err := row.Scan(&b.ID, &b.ChainID, &b.SequenceNumber, &b.ParentBackupID,
		&b.Mode, &b.SizeBytes, &b.CompressedSizeBytes, &b.Checksum, &b.Verified,
		&b.StoragePath, &b.StorageBackendID, &b.CheckpointToken,
		&b.Status, &b.StatusMessage, &b.StartedAt, &b.CompletedAt,
		&b.Immutable, &b.RetentionUntil, &b.LegalHold,
		&b.SourceType, &b.SourceID, &b.ScheduleID,
		&b.CreatedAt, &b.UpdatedAt)
	return b, err
}

type BackupService struct {
	db DB
	tc temporalclient.Client
}

func NewBackupService(db DB, tc temporalclient.Client) *BackupService {
	return &BackupService{db: db, tc: tc}
}

// ClaimChainSlot inserts a pending backup row, atomically claiming its
// (chain_id, sequence_number) slot. A partial unique index over rows that
// are not failed, cancelled, or deleted rejects concurrent claims of the
// same slot; the loser gets ErrSlotTaken and must re-read the chain tip
// before retrying. Slots a retention sweep removed become claimable
// again, so a chain can regrow past a pruned position.
func (s *BackupService) ClaimChainSlot(ctx context.Context, b *model.Backup) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO backups (id, chain_id, sequence_number, parent_backup_id, backup_mode, size_bytes, compressed_size_bytes, checksum, verified, storage_path, storage_backend_id, checkpoint_token, status, status_message, started_at, completed_at, immutable, retention_until, legal_hold_enabled, source_type, source_id, schedule_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`,
		b.ID, b.ChainID, b.SequenceNumber, b.ParentBackupID, b.Mode,
		b.SizeBytes, b.CompressedSizeBytes, b.Checksum, b.Verified,
		b.StoragePath, b.StorageBackendID, b.CheckpointToken,
		b.Status, b.StatusMessage, b.StartedAt, b.CompletedAt,
		b.Immutable, b.RetentionUntil, b.LegalHold,
		b.SourceType, b.SourceID, b.ScheduleID,
		b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("claim slot %s/%d: %w", b.ChainID, b.SequenceNumber, ErrSlotTaken)
		}
		return fmt.Errorf("insert backup: %w", err)
	}
	return nil
}

func (s *BackupService) GetByID(ctx context.Context, id string) (*model.Backup, error) {
	b, err := scanBackup(s.db.QueryRow(ctx,
		`SELECT `+backupColumns+` FROM backups WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get backup %s: %w", id, err)
	}
	return &b, nil
}

// ListFilter narrows List results. Zero values mean no filtering.
type ListFilter struct {
	SourceType string
	SourceID   string
	ChainID    string
	ScheduleID string
	Status     string
}

func (s *BackupService) List(ctx context.Context, filter ListFilter, limit int, cursor string) ([]model.Backup, bool, error) {
	query := `SELECT ` + backupColumns + ` FROM backups WHERE status != 'deleted'`
	var args []any
	argIdx := 1

	addFilter := func(column, value string) {
		if value == "" {
			return
		}
		query += fmt.Sprintf(` AND %s = $%d`, column, argIdx)
		args = append(args, value)
		argIdx++
	}
	addFilter("source_type", filter.SourceType)
	addFilter("source_id", filter.SourceID)
	addFilter("chain_id", filter.ChainID)
	addFilter("schedule_id", filter.ScheduleID)
	addFilter("status", filter.Status)

	if cursor != "" {
		query += fmt.Sprintf(` AND id > $%d`, argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += ` ORDER BY id`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	var backups []model.Backup
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, b)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate backups: %w", err)
	}

	hasMore := len(backups) > limit
	if hasMore {
		backups = backups[:limit]
	}
	return backups, hasMore, nil
}

// ListChain returns every non-deleted member of a chain ordered by sequence.
func (s *BackupService) ListChain(ctx context.Context, chainID string) ([]model.Backup, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+backupColumns+` FROM backups WHERE chain_id = $1 AND status != 'deleted' ORDER BY sequence_number, created_at`,
		chainID)
	if err != nil {
		return nil, fmt.Errorf("list chain %s: %w", chainID, err)
	}
	defer rows.Close()

	var backups []model.Backup
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chain %s: %w", chainID, err)
	}
	return backups, nil
}

// ListBySource returns all completed backups for one source, the input for
// retention evaluation.
func (s *BackupService) ListBySource(ctx context.Context, sourceType, sourceID string) ([]model.Backup, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+backupColumns+` FROM backups WHERE source_type = $1 AND source_id = $2 AND status = 'completed' ORDER BY completed_at`,
		sourceType, sourceID)
	if err != nil {
		return nil, fmt.Errorf("list backups for %s/%s: %w", sourceType, sourceID, err)
	}
	defer rows.Close()

	var backups []model.Backup
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backups for %s/%s: %w", sourceType, sourceID, err)
	}
	return backups, nil
}

// ListDeleting returns backups for a source whose artifact removal never
// finished, deepest chain positions first so re-runs keep the
// deepest-first deletion order. A sweep resumes these before evaluating
// fresh retention candidates.
func (s *BackupService) ListDeleting(ctx context.Context, sourceType, sourceID string) ([]model.Backup, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+backupColumns+` FROM backups
		 WHERE source_type = $1 AND source_id = $2 AND status = 'deleting'
		 ORDER BY chain_id, sequence_number DESC`,
		sourceType, sourceID)
	if err != nil {
		return nil, fmt.Errorf("list deleting backups for %s/%s: %w", sourceType, sourceID, err)
	}
	defer rows.Close()

	var backups []model.Backup
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deleting backups for %s/%s: %w", sourceType, sourceID, err)
	}
	return backups, nil
}

// ChainTip returns the most recent completed backup for a schedule, the
// candidate parent for the next incremental. Returns nil when the schedule
// has no completed backups yet.
func (s *BackupService) ChainTip(ctx context.Context, scheduleID string) (*model.Backup, error) {
	b, err := scanBackup(s.db.QueryRow(ctx,
		`SELECT `+backupColumns+` FROM backups
		 WHERE schedule_id = $1 AND status = 'completed'
		 ORDER BY completed_at DESC LIMIT 1`, scheduleID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chain tip for schedule %s: %w", scheduleID, err)
	}
	return &b, nil
}

func (s *BackupService) MarkRunning(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE backups SET status = $1, started_at = now(), updated_at = now() WHERE id = $2`,
		model.StatusRunning, id)
	if err != nil {
		return fmt.Errorf("mark backup %s running: %w", id, err)
	}
	return nil
}

// Finalize records a successful capture and flips the row to completed.
func (s *BackupService) Finalize(ctx context.Context, id string, sizeBytes, compressedBytes int64, checksum, storagePath string, checkpointToken *string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE backups SET status = $1, size_bytes = $2, compressed_size_bytes = $3, checksum = $4, storage_path = $5, checkpoint_token = $6, completed_at = now(), updated_at = now() WHERE id = $7`,
		model.StatusCompleted, sizeBytes, compressedBytes, checksum, storagePath, checkpointToken, id)
	if err != nil {
		return fmt.Errorf("finalize backup %s: %w", id, err)
	}
	return nil
}

func (s *BackupService) SetStatus(ctx context.Context, id, status, message string) error {
	var msg *string
	if message != "" {
		msg = &message
	}
	_, err := s.db.Exec(ctx,
		`UPDATE backups SET status = $1, status_message = $2, updated_at = now() WHERE id = $3`,
		status, msg, id)
	if err != nil {
		return fmt.Errorf("set backup %s status to %s: %w", id, status, err)
	}
	return nil
}

// MarkVerified records a successful checksum verification.
func (s *BackupService) MarkVerified(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE backups SET verified = true, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark backup %s verified: %w", id, err)
	}
	return nil
}

// SetProtection updates the deletion vetoes on a backup. Enabling
// immutability is one-way; it cannot be cleared through this path.
func (s *BackupService) SetProtection(ctx context.Context, id string, immutable, legalHold bool, retentionUntil *time.Time) error {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current.Status == model.StatusDeleted || current.Status == model.StatusDeleting {
		return fmt.Errorf("backup %s is being deleted", id)
	}
	if current.Immutable && !immutable {
		return fmt.Errorf("backup %s immutability cannot be cleared", id)
	}

	_, err = s.db.Exec(ctx,
		`UPDATE backups SET immutable = $1, legal_hold_enabled = $2, retention_until = $3, updated_at = now() WHERE id = $4`,
		immutable, legalHold, retentionUntil, id)
	if err != nil {
		return fmt.Errorf("update backup %s protection: %w", id, err)
	}
	return nil
}

// Delete starts the two-phase deletion of a backup: the row is flipped to
// deleting and a workflow removes the storage artifact before marking the
// row deleted. Protected backups and backups with live dependents are
// refused.
func (s *BackupService) Delete(ctx context.Context, id string) error {
	b, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if b.Protected(time.Now().UTC()) {
		return fmt.Errorf("delete backup %s: %w", id, ErrBackupProtected)
	}

	var dependents int
	err = s.db.QueryRow(ctx,
		`SELECT count(*) FROM backups WHERE parent_backup_id = $1 AND status NOT IN ('failed', 'cancelled', 'deleted')`,
		id).Scan(&dependents)
	if err != nil {
		return fmt.Errorf("count dependents of backup %s: %w", id, err)
	}
	if dependents > 0 {
		return fmt.Errorf("delete backup %s: %w", id, ErrHasDependents)
	}

	if err := s.SetStatus(ctx, id, model.StatusDeleting, ""); err != nil {
		return err
	}

	if err := startWorkflow(ctx, s.tc, "DeleteBackupWorkflow", workflowID("backup-delete", id), id); err != nil {
		return fmt.Errorf("start DeleteBackupWorkflow: %w", err)
	}
	return nil
}

// Cancel requests cancellation of the workflow driving an in-flight
// backup. The workflow records the cancelled status once the request is
// observed; backups that already reached a terminal status are refused.
func (s *BackupService) Cancel(ctx context.Context, id string) error {
	b, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if b.Status != model.StatusPending && b.Status != model.StatusRunning {
		return fmt.Errorf("cancel backup %s: status is %s: %w", id, b.Status, ErrNotCancellable)
	}

	// Scheduled runs are keyed by schedule ID, manual runs by backup ID.
	wfID := workflowID("backup-manual", id)
	if b.ScheduleID != nil {
		wfID = workflowID("backup-run", *b.ScheduleID)
	}
	if err := s.tc.CancelWorkflow(ctx, wfID, ""); err != nil {
		return fmt.Errorf("cancel workflow %s: %w", wfID, err)
	}
	return nil
}

// CreateManual inserts a schedule-less full backup starting its own chain
// and kicks off the capture workflow. Manual backups never extend an
// existing chain; an ad-hoc capture has no claim on a schedule's
// checkpoint lineage.
func (s *BackupService) CreateManual(ctx context.Context, b *model.Backup) error {
	if err := s.ClaimChainSlot(ctx, b); err != nil {
		return err
	}

	if err := startWorkflow(ctx, s.tc, "RunManualBackupWorkflow", workflowID("backup-manual", b.ID), b.ID); err != nil {
		return fmt.Errorf("start RunManualBackupWorkflow: %w", err)
	}
	return nil
}

// Restore starts a restore workflow that re-checks chain integrity and
// applies the restoration plan for this backup.
func (s *BackupService) Restore(ctx context.Context, id string) error {
	b, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if b.Status != model.StatusCompleted {
		return fmt.Errorf("restore backup %s: status is %s, want completed", id, b.Status)
	}

	if err := startWorkflow(ctx, s.tc, "RestoreBackupWorkflow", workflowID("backup-restore", id), id); err != nil {
		return fmt.Errorf("start RestoreBackupWorkflow: %w", err)
	}
	return nil
}
