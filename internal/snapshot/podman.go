package snapshot

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/holtet/backstack/internal/model"
	"github.com/holtet/backstack/internal/platform"
)

// PodmanProducer captures container filesystem exports via the podman CLI.
// Podman has no dirty-block tracking, so every capture is a full export and
// ProbeIncremental always reports unsupported.
type PodmanProducer struct {
	logger    zerolog.Logger
	bin       string
	scratch   string
	runPodman func(ctx context.Context, args ...string) ([]byte, error)
}

// NewPodmanProducer creates a producer using the given podman binary and a
// scratch directory for export files.
func NewPodmanProducer(logger zerolog.Logger, bin, scratchDir string) *PodmanProducer {
	p := &PodmanProducer{
		logger:  logger.With().Str("component", "podman-producer").Logger(),
		bin:     bin,
		scratch: scratchDir,
	}
	p.runPodman = p.exec
	return p
}

func (p *PodmanProducer) SourceType() string { return model.SourceTypeContainer }

func (p *PodmanProducer) exec(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, p.bin, args...)
	p.logger.Debug().Strs("args", args).Msg("executing podman")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("podman %s failed: %w: %s", args[0], err, string(output))
	}
	return output, nil
}

func (p *PodmanProducer) ProbeIncremental(ctx context.Context, sourceID, parentCheckpointToken string) (bool, error) {
	return false, nil
}

func (p *PodmanProducer) Capture(ctx context.Context, req CaptureRequest) (*CaptureResult, error) {
	if req.Mode == model.ModeIncremental {
		return nil, fmt.Errorf("container source %s does not support incremental capture", req.SourceID)
	}

	// Verify the container exists before exporting; podman export on a
	// missing container produces an empty archive on some versions.
	out, err := p.runPodman(ctx, "container", "exists", req.SourceID)
	if err != nil {
		return nil, fmt.Errorf("container %s not found: %w: %s", req.SourceID, err, strings.TrimSpace(string(out)))
	}

	exportPath := fmt.Sprintf("%s/%s-%s.tar", p.scratch, req.SourceID, platform.NewName("exp"))
	if _, err := p.runPodman(ctx, "export", "--output", exportPath, req.SourceID); err != nil {
		return nil, err
	}

	f, err := os.Open(exportPath)
	if err != nil {
		return nil, fmt.Errorf("open podman export: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat podman export: %w", err)
	}

	p.logger.Info().
		Str("source_id", req.SourceID).
		Int64("size_bytes", info.Size()).
		Msg("captured container export")

	return &CaptureResult{
		Stream:    &scratchStream{File: f, path: exportPath},
		SizeBytes: info.Size(),
	}, nil
}
