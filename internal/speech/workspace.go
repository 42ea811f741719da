package speech

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Workspace is the private temp directory holding in-flight audio files.
// Every request gets its own pair of paths derived from its ID.
type Workspace struct {
	dir string
}

// NewWorkspace creates a fresh "speechcord-*" directory under base. An empty
// base uses [os.TempDir].
func NewWorkspace(base string) (*Workspace, error) {
	if base != "" {
		if err := os.MkdirAll(base, 0o700); err != nil {
			return nil, fmt.Errorf("speech: create temp base: %w", err)
		}
	}
	dir, err := os.MkdirTemp(base, "speechcord-*")
	if err != nil {
		return nil, fmt.Errorf("speech: create workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string { return w.dir }

// Paths returns the MP3 and WAV paths for request id.
func (w *Workspace) Paths(id string) (mp3Path, wavPath string) {
	return filepath.Join(w.dir, id+".mp3"), filepath.Join(w.dir, id+".wav")
}

// Remove deletes paths. Files that do not exist are ignored.
func (w *Workspace) Remove(paths ...string) error {
	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close deletes the workspace directory and everything left in it.
func (w *Workspace) Close() error {
	return os.RemoveAll(w.dir)
}
