package planner

import (
	"errors"
	"io/fs"
	"log/slog"
	"slices"
	"sync"

	"github.com/spf13/afero"
)

// Registry tracks every path planned for a session so it can be searched as
// a fallback after a download and swept on cleanup. Entries are unique by
// exact path.
type Registry struct {
	mu    sync.RWMutex
	paths []string
}

func NewRegistry() *Registry {
	return &Registry{paths: make([]string, 0)}
}

// Track adds path unless already present and reports whether it was added.
func (r *Registry) Track(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if slices.Contains(r.paths, path) {
		return false
	}
	r.paths = append(r.paths, path)
	return true
}

func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.paths)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.paths)
}

// FirstExisting returns the first tracked path, in registration order, that
// exists as a regular file.
func (r *Registry) FirstExisting(fsys afero.Fs) (string, bool) {
	for _, p := range r.Paths() {
		info, err := fsys.Stat(p)
		if err == nil && info.Mode().IsRegular() {
			return p, true
		}
	}
	return "", false
}

// Sweep removes every tracked file and drains the registry. Removal errors
// are logged and otherwise ignored.
func (r *Registry) Sweep(fsys afero.Fs) []string {
	r.mu.Lock()
	paths := r.paths
	r.paths = make([]string, 0)
	r.mu.Unlock()

	removed := make([]string, 0, len(paths))
	for _, p := range paths {
		err := fsys.Remove(p)
		if err == nil {
			removed = append(removed, p)
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Debug("cleanup failed", slog.String("path", p), slog.Any("err", err))
		}
	}

	return removed
}
