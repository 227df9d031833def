// Package snapshot captures consistent point-in-time images of backup
// sources. Producers shell out to the platform tooling (virsh for VMs,
// podman for containers) and stream the captured artifact back to the
// caller.
package snapshot

import (
	"context"
	"io"
)

// CaptureRequest describes a single capture run.
type CaptureRequest struct {
	SourceID string
	Mode     string

	// CheckpointName is the stable checkpoint identifier used for
	// incremental tracking, typically derived from the schedule ID.
	CheckpointName string

	// ParentCheckpointToken is the token recorded by the capture this
	// incremental extends. Empty for full captures.
	ParentCheckpointToken string
}

// CaptureResult is the outcome of a capture run. Stream must be fully
// consumed and closed by the caller.
type CaptureResult struct {
	Stream    io.ReadCloser
	SizeBytes int64

	// Checksum is the hex SHA-256 of the stream, computed during capture
	// when the tooling provides it, otherwise left empty for the uploader
	// to fill in.
	Checksum string

	// CheckpointToken identifies the checkpoint this capture created, to
	// be stored on the backup row for the next incremental.
	CheckpointToken string
}

// Producer captures snapshots for one source type.
type Producer interface {
	// SourceType reports the source type this producer handles.
	SourceType() string

	// ProbeIncremental reports whether the source currently supports
	// incremental capture from the given parent checkpoint token. A probe
	// failure is reported as supported=false with the error for logging.
	ProbeIncremental(ctx context.Context, sourceID, parentCheckpointToken string) (bool, error)

	// Capture produces a snapshot artifact per the request.
	Capture(ctx context.Context, req CaptureRequest) (*CaptureResult, error)
}

// ProducerFor selects the producer matching the source type.
func ProducerFor(producers []Producer, sourceType string) (Producer, bool) {
	for _, p := range producers {
		if p.SourceType() == sourceType {
			return p, true
		}
	}
	return nil, false
}
