package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	DatabaseURL     string
	TemporalAddress string
	HTTPListenAddr  string
	MetricsAddr     string
	LogLevel        string
	ServiceName     string

	// Temporal mTLS. Empty means plaintext.
	TemporalTLSCert       string
	TemporalTLSKey        string
	TemporalTLSCACert     string
	TemporalTLSServerName string

	// RestoreThroughputMBps converts restoration plan sizes into advisory
	// time estimates. Zero disables the estimate.
	RestoreThroughputMBps int

	// StorageRetryAttempts bounds retries against a storage backend
	// before a backup is marked failed.
	StorageRetryAttempts int

	// RetentionSweepCron is the cron expression for the periodic
	// retention sweep.
	RetentionSweepCron string

	// SnapshotVirshBin and SnapshotPodmanBin override the capture
	// binaries, mostly for test rigs.
	SnapshotVirshBin  string
	SnapshotPodmanBin string

	// SnapshotScratchDir holds capture exports until they are uploaded.
	SnapshotScratchDir string

	// RestoreStagingDir receives downloaded artifacts during a restore.
	RestoreStagingDir string
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		TemporalAddress:       getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		HTTPListenAddr:        getEnv("HTTP_LISTEN_ADDR", ":8090"),
		MetricsAddr:           getEnv("METRICS_LISTEN_ADDR", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		ServiceName:           getEnv("SERVICE_NAME", ""),
		TemporalTLSCert:       getEnv("TEMPORAL_TLS_CERT", ""),
		TemporalTLSKey:        getEnv("TEMPORAL_TLS_KEY", ""),
		TemporalTLSCACert:     getEnv("TEMPORAL_TLS_CA_CERT", ""),
		TemporalTLSServerName: getEnv("TEMPORAL_TLS_SERVER_NAME", ""),
		RestoreThroughputMBps: getEnvInt("RESTORE_THROUGHPUT_MBPS", 100),
		StorageRetryAttempts:  getEnvInt("STORAGE_RETRY_ATTEMPTS", 5),
		RetentionSweepCron:    getEnv("RETENTION_SWEEP_CRON", "0 5 * * *"),
		SnapshotVirshBin:      getEnv("SNAPSHOT_VIRSH_BIN", "virsh"),
		SnapshotPodmanBin:     getEnv("SNAPSHOT_PODMAN_BIN", "podman"),
		SnapshotScratchDir:    getEnv("SNAPSHOT_SCRATCH_DIR", "/var/lib/backstack/scratch"),
		RestoreStagingDir:     getEnv("RESTORE_STAGING_DIR", "/var/lib/backstack/restore"),
	}

	return cfg, nil
}

// Validate checks that the fields required by the named service are set.
func (c *Config) Validate(service string) error {
	switch service {
	case "api", "worker":
		if c.DatabaseURL == "" {
			return fmt.Errorf("%s requires DATABASE_URL", service)
		}
		if c.TemporalAddress == "" {
			return fmt.Errorf("%s requires TEMPORAL_ADDRESS", service)
		}
	}
	if c.StorageRetryAttempts < 1 {
		return fmt.Errorf("STORAGE_RETRY_ATTEMPTS must be at least 1")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
