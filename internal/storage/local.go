package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/holtet/backstack/internal/model"
)

// LocalGateway stores artifacts on a local filesystem path, typically an
// NFS or SMB mount on the host.
type LocalGateway struct {
	basePath string
}

// NewLocalGateway creates a gateway rooted at basePath.
func NewLocalGateway(basePath string) *LocalGateway {
	return &LocalGateway{basePath: basePath}
}

// resolve joins path onto the base and rejects traversal outside it.
func (g *LocalGateway) resolve(path string) (string, error) {
	full := filepath.Join(g.basePath, filepath.FromSlash(path))
	rel, err := filepath.Rel(g.basePath, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes storage root", path)
	}
	return full, nil
}

func (g *LocalGateway) Put(ctx context.Context, path string, r io.Reader, size int64) (int64, error) {
	full, err := g.resolve(path)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return 0, fmt.Errorf("create artifact dir: %w", err)
	}

	// Write to a temp file and rename so partially written artifacts never
	// appear under the final name.
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("write artifact: %w", err)
	}
	if size > 0 && n != size {
		return n, fmt.Errorf("short artifact write: got %d bytes, want %d", n, size)
	}

	if err := os.Rename(tmp.Name(), full); err != nil {
		return n, fmt.Errorf("finalize artifact: %w", err)
	}
	return n, nil
}

func (g *LocalGateway) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	full, err := g.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	return f, nil
}

func (g *LocalGateway) Delete(ctx context.Context, path string) (bool, error) {
	full, err := g.resolve(path)
	if err != nil {
		return false, err
	}
	err = os.Remove(full)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete artifact: %w", err)
	}
	return true, nil
}

func (g *LocalGateway) List(ctx context.Context, prefix string) ([]string, error) {
	root, err := g.resolve(prefix)
	if err != nil {
		return nil, err
	}

	var paths []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if errors.Is(err, fs.ErrNotExist) {
			return filepath.SkipAll
		}
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(g.basePath, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	return paths, nil
}

func (g *LocalGateway) Usage(ctx context.Context, prefix string) (model.StorageUsage, error) {
	root, err := g.resolve(prefix)
	if err != nil {
		return model.StorageUsage{}, err
	}

	var usage model.StorageUsage
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if errors.Is(err, fs.ErrNotExist) {
			return filepath.SkipAll
		}
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		usage.ObjectCount++
		usage.UsedBytes += info.Size()
		return nil
	})
	if err != nil {
		return model.StorageUsage{}, fmt.Errorf("measure usage: %w", err)
	}
	return usage, nil
}
