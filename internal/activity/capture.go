package activity

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	temporalactivity "go.temporal.io/sdk/activity"

	"github.com/holtet/backstack/internal/model"
	"github.com/holtet/backstack/internal/snapshot"
	"github.com/holtet/backstack/internal/storage"
)

type backupLookup interface {
	GetByID(ctx context.Context, id string) (*model.Backup, error)
}

type backendLookup interface {
	GetByID(ctx context.Context, id string) (*model.StorageBackend, error)
}

// Capture contains activities that drive snapshot producers and move
// artifacts to and from storage backends.
type Capture struct {
	logger        zerolog.Logger
	producers     []snapshot.Producer
	registry      *storage.Registry
	backups       backupLookup
	backends      backendLookup
	retryAttempts int
	scratchDir    string
	stagingDir    string
}

// NewCapture creates a new Capture activity struct.
func NewCapture(logger zerolog.Logger, producers []snapshot.Producer, registry *storage.Registry, backups backupLookup, backends backendLookup, retryAttempts int, scratchDir, stagingDir string) *Capture {
	return &Capture{
		logger:        logger.With().Str("component", "capture-activities").Logger(),
		producers:     producers,
		registry:      registry,
		backups:       backups,
		backends:      backends,
		retryAttempts: retryAttempts,
		scratchDir:    scratchDir,
		stagingDir:    stagingDir,
	}
}

func (a *Capture) gateway(ctx context.Context, backendID string) (storage.Gateway, error) {
	backend, err := a.backends.GetByID(ctx, backendID)
	if err != nil {
		return nil, err
	}
	gw, err := a.registry.Resolve(backend)
	if err != nil {
		return nil, err
	}
	return storage.WithRetry(gw, a.retryAttempts), nil
}

// ProbeIncremental asks the source's producer whether incremental capture
// from the given parent checkpoint is possible right now.
func (a *Capture) ProbeIncremental(ctx context.Context, params ProbeParams) (bool, error) {
	producer, ok := snapshot.ProducerFor(a.producers, params.SourceType)
	if !ok {
		return false, fmt.Errorf("no producer for source type %q", params.SourceType)
	}

	supported, err := producer.ProbeIncremental(ctx, params.SourceID, params.ParentCheckpointToken)
	if err != nil {
		// A failed probe downgrades to full capture rather than failing
		// the run.
		a.logger.Warn().Str("source_id", params.SourceID).Err(err).
			Msg("incremental probe failed, falling back to full")
		return false, nil
	}
	return supported, nil
}

// CaptureAndUpload captures a snapshot, compresses it, checksums the
// uncompressed stream, and uploads the artifact to the storage backend.
func (a *Capture) CaptureAndUpload(ctx context.Context, params CaptureUploadParams) (*CaptureUploadResult, error) {
	producer, ok := snapshot.ProducerFor(a.producers, params.SourceType)
	if !ok {
		return nil, fmt.Errorf("no producer for source type %q", params.SourceType)
	}

	res, err := producer.Capture(ctx, snapshot.CaptureRequest{
		SourceID:              params.SourceID,
		Mode:                  params.Mode,
		CheckpointName:        params.CheckpointName,
		ParentCheckpointToken: params.ParentCheckpointToken,
	})
	if err != nil {
		return nil, fmt.Errorf("capture %s/%s: %w", params.SourceType, params.SourceID, err)
	}
	defer res.Stream.Close()

	heartbeat(ctx, "captured")

	// Compress to scratch while hashing the uncompressed bytes, so the
	// upload has a known length and the checksum matches the capture.
	if err := os.MkdirAll(a.scratchDir, 0o750); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	tmp, err := os.CreateTemp(a.scratchDir, "upload-*.gz")
	if err != nil {
		return nil, fmt.Errorf("create compression scratch: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	hasher := sha256.New()
	gz := gzip.NewWriter(tmp)
	sizeBytes, err := io.Copy(gz, io.TeeReader(res.Stream, hasher))
	if err != nil {
		return nil, fmt.Errorf("compress capture: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("flush compression: %w", err)
	}

	compressedBytes, err := tmp.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("measure compressed artifact: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind compressed artifact: %w", err)
	}

	heartbeat(ctx, "compressed")

	gw, err := a.gateway(ctx, params.StorageBackendID)
	if err != nil {
		return nil, err
	}
	if _, err := gw.Put(ctx, params.StoragePath, tmp, compressedBytes); err != nil {
		return nil, fmt.Errorf("upload artifact: %w", err)
	}

	var token *string
	if res.CheckpointToken != "" {
		token = &res.CheckpointToken
	}
	return &CaptureUploadResult{
		SizeBytes:           sizeBytes,
		CompressedSizeBytes: compressedBytes,
		Checksum:            hex.EncodeToString(hasher.Sum(nil)),
		CheckpointToken:     token,
	}, nil
}

// DeleteArtifact removes a backup's artifact from its storage backend.
// Already-absent artifacts succeed so deletion retries stay idempotent.
func (a *Capture) DeleteArtifact(ctx context.Context, backupID string) error {
	b, err := a.backups.GetByID(ctx, backupID)
	if err != nil {
		return err
	}
	if b.StoragePath == "" {
		return nil
	}

	gw, err := a.gateway(ctx, b.StorageBackendID)
	if err != nil {
		return err
	}

	removed, err := gw.Delete(ctx, b.StoragePath)
	if err != nil {
		return fmt.Errorf("delete artifact %s: %w", b.StoragePath, err)
	}
	if !removed {
		a.logger.Info().Str("backup_id", backupID).Str("path", b.StoragePath).
			Msg("artifact already absent")
	}
	return nil
}

// FetchStep downloads one restoration plan step's artifact into the
// staging directory, decompresses it, and verifies the stored checksum.
func (a *Capture) FetchStep(ctx context.Context, params FetchStepParams) (*FetchStepResult, error) {
	b, err := a.backups.GetByID(ctx, params.BackupID)
	if err != nil {
		return nil, err
	}

	gw, err := a.gateway(ctx, b.StorageBackendID)
	if err != nil {
		return nil, err
	}

	rc, err := gw.Get(ctx, b.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("fetch artifact %s: %w", b.StoragePath, err)
	}
	defer rc.Close()

	gz, err := gzip.NewReader(rc)
	if err != nil {
		return nil, fmt.Errorf("open artifact stream: %w", err)
	}

	stepDir := filepath.Join(a.stagingDir, params.RestoreID)
	if err := os.MkdirAll(stepDir, 0o750); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	localPath := filepath.Join(stepDir, params.BackupID)
	out, err := os.Create(localPath)
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}
	defer out.Close()

	hasher := sha256.New()
	n, err := io.Copy(out, io.TeeReader(gz, hasher))
	if err != nil {
		return nil, fmt.Errorf("download artifact: %w", err)
	}

	// The stored checksum covers the uncompressed stream.
	if b.Checksum != "" {
		sum := hex.EncodeToString(hasher.Sum(nil))
		if sum != b.Checksum {
			return nil, fmt.Errorf("artifact %s checksum mismatch: got %s, want %s",
				params.BackupID, sum, b.Checksum)
		}
	}

	heartbeat(ctx, "fetched")
	return &FetchStepResult{
		LocalPath:        localPath,
		SizeBytes:        n,
		FetchedAt:        time.Now().UTC(),
		ChecksumVerified: b.Checksum != "",
	}, nil
}

// heartbeat records activity progress when running under a Temporal
// worker. Unit tests call activities with a plain context.
func heartbeat(ctx context.Context, details ...any) {
	if temporalactivity.IsActivity(ctx) {
		temporalactivity.RecordHeartbeat(ctx, details...)
	}
}
