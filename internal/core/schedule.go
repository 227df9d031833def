package core

import (
	"context"
	"encoding/json"
	"fmt"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/holtet/backstack/internal/model"
)

const scheduleColumns = `id, name, source_type, source_id, storage_backend_id, cron_expression, enabled, backup_mode_policy, max_chain_length, full_backup_day, last_full_backup_id, checkpoint_name, retention_config, created_at, updated_at`

func scanSchedule(row interface{ Scan(dest ...any) error }) (model.Schedule, error) {
	var sched model.Schedule
	var retention []byte
	err := row.Scan(&sched.ID, &sched.Name, &sched.SourceType, &sched.SourceID,
		&sched.StorageBackendID, &sched.CronExpression, &sched.Enabled,
		&sched.ModePolicy, &sched.MaxChainLength, &sched.FullBackupDay,
		&sched.LastFullBackupID, &sched.CheckpointName, &retention,
		&sched.CreatedAt, &sched.UpdatedAt)
	if err != nil {
		return sched, err
	}
	if len(retention) > 0 {
		if err := json.Unmarshal(retention, &sched.Retention); err != nil {
			return sched, fmt.Errorf("decode retention config: %w", err)
		}
	}
	return sched, nil
}

type ScheduleService struct {
	db DB
	tc temporalclient.Client
}

func NewScheduleService(db DB, tc temporalclient.Client) *ScheduleService {
	return &ScheduleService{db: db, tc: tc}
}

func (s *ScheduleService) Create(ctx context.Context, sched *model.Schedule) error {
	retention, err := json.Marshal(sched.Retention)
	if err != nil {
		return fmt.Errorf("encode retention config: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO schedules (id, name, source_type, source_id, storage_backend_id, cron_expression, enabled, backup_mode_policy, max_chain_length, full_backup_day, last_full_backup_id, checkpoint_name, retention_config, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		sched.ID, sched.Name, sched.SourceType, sched.SourceID,
		sched.StorageBackendID, sched.CronExpression, sched.Enabled,
		sched.ModePolicy, sched.MaxChainLength, sched.FullBackupDay,
		sched.LastFullBackupID, sched.CheckpointName, retention,
		sched.CreatedAt, sched.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

func (s *ScheduleService) GetByID(ctx context.Context, id string) (*model.Schedule, error) {
	sched, err := scanSchedule(s.db.QueryRow(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get schedule %s: %w", id, err)
	}
	return &sched, nil
}

func (s *ScheduleService) List(ctx context.Context, limit int, cursor string) ([]model.Schedule, bool, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules`
	var args []any
	argIdx := 1

	if cursor != "" {
		query += fmt.Sprintf(` WHERE id > $%d`, argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += ` ORDER BY id`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []model.Schedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, sched)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate schedules: %w", err)
	}

	hasMore := len(schedules) > limit
	if hasMore {
		schedules = schedules[:limit]
	}
	return schedules, hasMore, nil
}

// ListEnabled returns every enabled schedule, used by the worker to
// register cron triggers and by the retention sweep to find its targets.
func (s *ScheduleService) ListEnabled(ctx context.Context) ([]model.Schedule, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE enabled ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list enabled schedules: %w", err)
	}
	defer rows.Close()

	var schedules []model.Schedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, sched)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}
	return schedules, nil
}

func (s *ScheduleService) Update(ctx context.Context, sched *model.Schedule) error {
	retention, err := json.Marshal(sched.Retention)
	if err != nil {
		return fmt.Errorf("encode retention config: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`UPDATE schedules SET name = $1, storage_backend_id = $2, cron_expression = $3, enabled = $4, backup_mode_policy = $5, max_chain_length = $6, full_backup_day = $7, retention_config = $8, updated_at = now() WHERE id = $9`,
		sched.Name, sched.StorageBackendID, sched.CronExpression, sched.Enabled,
		sched.ModePolicy, sched.MaxChainLength, sched.FullBackupDay, retention, sched.ID,
	)
	if err != nil {
		return fmt.Errorf("update schedule %s: %w", sched.ID, err)
	}
	return nil
}

func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule %s: %w", id, err)
	}
	return nil
}

// UpdateChainState records the chain bookkeeping after a completed run:
// the last full backup and the checkpoint name the producer tracks.
func (s *ScheduleService) UpdateChainState(ctx context.Context, id string, lastFullBackupID, checkpointName *string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE schedules SET last_full_backup_id = $1, checkpoint_name = $2, updated_at = now() WHERE id = $3`,
		lastFullBackupID, checkpointName, id)
	if err != nil {
		return fmt.Errorf("update schedule %s chain state: %w", id, err)
	}
	return nil
}

// RunNow triggers an immediate backup run for a schedule. The workflow ID
// is derived from the schedule so a run cannot overlap a cron-triggered one
// for the same schedule.
func (s *ScheduleService) RunNow(ctx context.Context, id string) error {
	sched, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !sched.Enabled {
		return fmt.Errorf("schedule %s is disabled", id)
	}

	if err := startWorkflow(ctx, s.tc, "RunScheduledBackupWorkflow", workflowID("backup-run", id), id); err != nil {
		return fmt.Errorf("start RunScheduledBackupWorkflow: %w", err)
	}
	return nil
}
