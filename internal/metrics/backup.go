package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BackupsTotal counts backup runs by source type, mode and outcome.
	BackupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backups_total",
			Help: "Total number of backup runs",
		},
		[]string{"source_type", "mode", "status"},
	)

	// BackupBytes records the uncompressed size of captured backups.
	BackupBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backup_size_bytes",
			Help:    "Uncompressed size of captured backups in bytes",
			Buckets: prometheus.ExponentialBuckets(1<<20, 4, 10),
		},
		[]string{"source_type", "mode"},
	)

	// BackupDuration records wall time of backup runs.
	BackupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backup_duration_seconds",
			Help:    "Wall time of backup runs in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		},
		[]string{"source_type", "mode"},
	)

	// RetentionDeletionsTotal counts backups deleted by the retention sweep.
	RetentionDeletionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retention_deletions_total",
			Help: "Total number of backups deleted by retention sweeps",
		},
	)

	// RetentionVetoesTotal counts retention deletions blocked by protection,
	// labelled by veto reason.
	RetentionVetoesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retention_vetoes_total",
			Help: "Total number of retention deletions blocked, by reason",
		},
		[]string{"reason"},
	)

	// RestoresTotal counts restore runs by outcome.
	RestoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restores_total",
			Help: "Total number of restore runs",
		},
		[]string{"status"},
	)

	// ChainIntegrityIssues counts issues found by chain integrity checks.
	ChainIntegrityIssues = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chain_integrity_issues_total",
			Help: "Total number of chain integrity issues found, by code",
		},
		[]string{"code", "severity"},
	)
)
