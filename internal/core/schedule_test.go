package core

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	temporalmocks "go.temporal.io/sdk/mocks"

	"github.com/holtet/backstack/internal/model"
)

func scheduleScanFunc(sched model.Schedule) func(dest ...any) error {
	retention, _ := json.Marshal(sched.Retention)
	return func(dest ...any) error {
		*dest[0].(*string) = sched.ID
		*dest[1].(*string) = sched.Name
		*dest[2].(*string) = sched.SourceType
		*dest[3].(*string) = sched.SourceID
		*dest[4].(*string) = sched.StorageBackendID
		*dest[5].(*string) = sched.CronExpression
		*dest[6].(*bool) = sched.Enabled
		*dest[7].(*string) = sched.ModePolicy
		*dest[8].(*int) = sched.MaxChainLength
		*dest[9].(**int) = sched.FullBackupDay
		*dest[10].(**string) = sched.LastFullBackupID
		*dest[11].(**string) = sched.CheckpointName
		*dest[12].(*[]byte) = retention
		*dest[13].(*time.Time) = sched.CreatedAt
		*dest[14].(*time.Time) = sched.UpdatedAt
		return nil
	}
}

func testSchedule(id string) model.Schedule {
	now := time.Now().UTC()
	return model.Schedule{
		ID:               id,
		Name:             "nightly-web",
		SourceType:       model.SourceTypeVM,
		SourceID:         "web-1",
		StorageBackendID: "sb-1",
		CronExpression:   "0 2 * * *",
		Enabled:          true,
		ModePolicy:       model.PolicyAuto,
		MaxChainLength:   6,
		Retention:        model.RetentionConfig{Daily: 7, Weekly: 4, Monthly: 12, Yearly: 3},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestScheduleService_CreateAndGet(t *testing.T) {
	db := &mockDB{}
	tc := &temporalmocks.Client{}
	svc := NewScheduleService(db, tc)
	ctx := context.Background()

	sched := testSchedule("sch-1")
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.CommandTag{}, nil)

	require.NoError(t, svc.Create(ctx, &sched))

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"sch-1"}).
		Return(&mockRow{scanFunc: scheduleScanFunc(sched)})

	got, err := svc.GetByID(ctx, "sch-1")
	require.NoError(t, err)
	assert.Equal(t, "nightly-web", got.Name)
	assert.Equal(t, model.RetentionConfig{Daily: 7, Weekly: 4, Monthly: 12, Yearly: 3}, got.Retention)
}

func TestScheduleService_List_Pagination(t *testing.T) {
	db := &mockDB{}
	tc := &temporalmocks.Client{}
	svc := NewScheduleService(db, tc)
	ctx := context.Background()

	rows := newMockRows(
		scheduleScanFunc(testSchedule("sch-1")),
		scheduleScanFunc(testSchedule("sch-2")),
	)
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	schedules, hasMore, err := svc.List(ctx, 1, "")
	require.NoError(t, err)
	assert.Len(t, schedules, 1)
	assert.True(t, hasMore)
}

func TestScheduleService_ListEnabled(t *testing.T) {
	db := &mockDB{}
	tc := &temporalmocks.Client{}
	svc := NewScheduleService(db, tc)
	ctx := context.Background()

	rows := newMockRows(scheduleScanFunc(testSchedule("sch-1")))
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	schedules, err := svc.ListEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, "sch-1", schedules[0].ID)
}

func TestScheduleService_RunNow_StartsWorkflow(t *testing.T) {
	db := &mockDB{}
	tc := &temporalmocks.Client{}
	svc := NewScheduleService(db, tc)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"sch-1"}).
		Return(&mockRow{scanFunc: scheduleScanFunc(testSchedule("sch-1"))})

	wfRun := &temporalmocks.WorkflowRun{}
	tc.On("ExecuteWorkflow", mock.Anything, mock.Anything, "RunScheduledBackupWorkflow", "sch-1").Return(wfRun, nil)

	require.NoError(t, svc.RunNow(ctx, "sch-1"))
	tc.AssertExpectations(t)
}

func TestScheduleService_RunNow_RefusesDisabled(t *testing.T) {
	db := &mockDB{}
	tc := &temporalmocks.Client{}
	svc := NewScheduleService(db, tc)
	ctx := context.Background()

	sched := testSchedule("sch-1")
	sched.Enabled = false
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"sch-1"}).
		Return(&mockRow{scanFunc: scheduleScanFunc(sched)})

	err := svc.RunNow(ctx, "sch-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")
	tc.AssertNotCalled(t, "ExecuteWorkflow")
}

func TestScheduleService_UpdateChainState(t *testing.T) {
	db := &mockDB{}
	tc := &temporalmocks.Client{}
	svc := NewScheduleService(db, tc)
	ctx := context.Background()

	fullID := "bk-1"
	checkpoint := "sch-1-cpabc"
	db.On("Exec", ctx, mock.AnythingOfType("string"), []any{&fullID, &checkpoint, "sch-1"}).
		Return(pgconn.CommandTag{}, nil)

	require.NoError(t, svc.UpdateChainState(ctx, "sch-1", &fullID, &checkpoint))
	db.AssertExpectations(t)
}
