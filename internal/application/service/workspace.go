package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Workspace is a private scratch directory for one job. Every media file the
// job creates lives inside it and Cleanup removes them all.
type Workspace struct {
	dir string

	mu      sync.Mutex
	cleaned bool
}

// NewWorkspace creates a directory under parent (os.TempDir when empty).
func NewWorkspace(parent string, jobID int64) (*Workspace, error) {
	if parent == "" {
		parent = os.TempDir()
	}
	dir, err := os.MkdirTemp(parent, fmt.Sprintf("enrich-job-%d-*", jobID))
	if err != nil {
		return nil, fmt.Errorf("create job workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// NewFile returns a fresh path such as video_1a2b3c4d.mp4. Nothing is created on disk.
func (w *Workspace) NewFile(prefix, ext string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s_%s%s", prefix, uuid.NewString()[:8], ext))
}

// Remove deletes one file. A missing file is not an error.
func (w *Workspace) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// Files lists the file names currently present in the workspace.
func (w *Workspace) Files() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// Cleanup removes the workspace and everything in it. It is idempotent.
func (w *Workspace) Cleanup() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cleaned {
		return nil
	}
	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("remove job workspace: %w", err)
	}
	w.cleaned = true
	return nil
}
