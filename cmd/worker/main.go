package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/holtet/backstack/internal/activity"
	"github.com/holtet/backstack/internal/config"
	"github.com/holtet/backstack/internal/core"
	"github.com/holtet/backstack/internal/db"
	"github.com/holtet/backstack/internal/logging"
	"github.com/holtet/backstack/internal/metrics"
	"github.com/holtet/backstack/internal/snapshot"
	"github.com/holtet/backstack/internal/storage"
	"github.com/holtet/backstack/internal/workflow"
)

const taskQueue = "backstack-tasks"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("worker"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	metrics.RegisterPgxPoolMetrics(pool)

	tlsConfig, err := cfg.TemporalTLS()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure temporal TLS")
	}
	dialOpts := temporalclient.Options{HostPort: cfg.TemporalAddress}
	if tlsConfig != nil {
		dialOpts.ConnectionOptions = temporalclient.ConnectionOptions{TLS: tlsConfig}
		logger.Info().Msg("temporal mTLS enabled")
	}
	tc, err := temporalclient.Dial(dialOpts)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to temporal")
	}
	defer tc.Close()

	registry := storage.NewRegistry()
	services := core.NewServices(pool, tc, registry)

	w := worker.New(tc, taskQueue, worker.Options{})

	// Register activities
	restoreThroughput := int64(cfg.RestoreThroughputMBps) * 1024 * 1024
	dbActivities := activity.NewBackupDB(services, restoreThroughput)
	w.RegisterActivity(dbActivities)

	producers := []snapshot.Producer{
		snapshot.NewVirshProducer(logger, cfg.SnapshotVirshBin, cfg.SnapshotScratchDir),
		snapshot.NewPodmanProducer(logger, cfg.SnapshotPodmanBin, cfg.SnapshotScratchDir),
	}
	captureActivities := activity.NewCapture(logger, producers, registry,
		services.Backup, services.StorageBackend,
		cfg.StorageRetryAttempts, cfg.SnapshotScratchDir, cfg.RestoreStagingDir)
	w.RegisterActivity(captureActivities)

	// Register workflows
	w.RegisterWorkflow(workflow.RunScheduledBackupWorkflow)
	w.RegisterWorkflow(workflow.RunManualBackupWorkflow)
	w.RegisterWorkflow(workflow.DeleteBackupWorkflow)
	w.RegisterWorkflow(workflow.RestoreBackupWorkflow)
	w.RegisterWorkflow(workflow.RetentionSweepWorkflow)
	w.RegisterWorkflow(workflow.SweepSourceWorkflow)

	if cfg.MetricsAddr != "" {
		metricsSrv := metrics.NewServer(cfg.MetricsAddr)
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("starting metrics server")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	go func() {
		logger.Info().Str("taskQueue", taskQueue).Msg("starting temporal worker")
		if err := w.Run(worker.InterruptCh()); err != nil {
			logger.Fatal().Err(err).Msg("worker failed")
		}
	}()

	// Register cron schedules. Errors for already-existing schedules are
	// ignored so that re-deploys do not fail.
	registerCronSchedules(ctx, tc, services, cfg, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down worker")
	cancel()
}

type cronSchedule struct {
	id       string
	cron     string
	workflow interface{}
	args     []interface{}
}

func registerCronSchedules(ctx context.Context, tc temporalclient.Client, services *core.Services, cfg *config.Config, logger zerolog.Logger) {
	schedules := []cronSchedule{
		{
			id:       "retention-sweep-cron",
			cron:     cfg.RetentionSweepCron,
			workflow: workflow.RetentionSweepWorkflow,
		},
	}

	// Each enabled backup schedule gets its own cron trigger. Schedules
	// created through the API after the worker starts are picked up on the
	// next worker restart.
	backupSchedules, err := services.Schedule.ListEnabled(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to list backup schedules")
	}
	for _, s := range backupSchedules {
		schedules = append(schedules, cronSchedule{
			id:       "backup-schedule-" + s.ID,
			cron:     s.CronExpression,
			workflow: workflow.RunScheduledBackupWorkflow,
			args:     []interface{}{s.ID},
		})
	}

	scheduleClient := tc.ScheduleClient()

	for _, s := range schedules {
		_, err := scheduleClient.Create(ctx, temporalclient.ScheduleOptions{
			ID: s.id,
			Spec: temporalclient.ScheduleSpec{
				CronExpressions: []string{s.cron},
			},
			Action: &temporalclient.ScheduleWorkflowAction{
				ID:        s.id,
				Workflow:  s.workflow,
				Args:      s.args,
				TaskQueue: taskQueue,
			},
		})
		if err != nil {
			if strings.Contains(err.Error(), "already exists") || strings.Contains(err.Error(), "AlreadyExists") || strings.Contains(err.Error(), "already registered") {
				logger.Info().Str("id", s.id).Msg("cron schedule already exists, skipping")
			} else {
				logger.Fatal().Err(err).Str("id", s.id).Msg("failed to create cron schedule")
			}
		} else {
			logger.Info().Str("id", s.id).Str("cron", s.cron).Msg("created cron schedule")
		}
	}
}
