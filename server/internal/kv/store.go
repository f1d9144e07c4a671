package kv

import (
	"encoding/gob"
	"errors"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"

	"github.com/spf13/afero"
	"github.com/vidfetch/vidfetch/server/internal/planner"
)

const sessionFile = "session.dat"

// In-Memory Thread-Safe storage of sessions and downloads with optional
// persistence
type Store struct {
	fs        afero.Fs
	dir       string
	sessions  map[string]*Session
	downloads map[string]*Download
	mu        sync.RWMutex
}

// NewStore returns a store persisting to dir/session.dat on fs.
func NewStore(fs afero.Fs, dir string) *Store {
	return &Store{
		fs:        fs,
		dir:       dir,
		sessions:  make(map[string]*Session),
		downloads: make(map[string]*Download),
	}
}

// NewSession creates and stores an empty session
func (m *Store) NewSession() *Session {
	s := NewSession()

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	return s
}

// Get a session pointer given its id
func (m *Store) Session(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Removes a session and sweeps the files planned for it
func (m *Store) DeleteSession(id string) []string {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return s.Registry().Sweep(m.fs)
}

// SessionIDs returns the ids of the stored sessions, sorted
func (m *Store) SessionIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// SessionDownloads returns the ids of the downloads bound to sessionID, sorted
func (m *Store) SessionDownloads(sessionID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, d := range m.downloads {
		if d.SessionID == sessionID {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Store a download and return its id
func (m *Store) Set(d *Download) string {
	m.mu.Lock()
	m.downloads[d.ID] = d
	m.mu.Unlock()

	return d.ID
}

// Get a download pointer given its id
func (m *Store) Get(id string) (*Download, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.downloads[id]
	if !ok {
		return nil, ErrDownloadNotFound
	}
	return d, nil
}

// Removes a download, given its id
func (m *Store) Delete(id string) {
	m.mu.Lock()
	delete(m.downloads, id)
	m.mu.Unlock()
}

func (m *Store) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.downloads))
	for id := range m.downloads {
		keys = append(keys, id)
	}
	slices.Sort(keys)

	return keys
}

// Returns a snapshot of every stored download, oldest first
func (m *Store) All() []DownloadSnapshot {
	m.mu.RLock()
	all := make([]DownloadSnapshot, 0, len(m.downloads))
	for _, d := range m.downloads {
		all = append(all, d.Snapshot())
	}
	m.mu.RUnlock()

	slices.SortFunc(all, func(a, b DownloadSnapshot) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return all
}

// Persist the sessions and their planned files in a single file named
// "session.dat"
func (m *Store) Persist() error {
	m.mu.RLock()
	snap := snapshot{Sessions: make([]persistedSession, 0, len(m.sessions))}
	for _, s := range m.sessions {
		snap.Sessions = append(snap.Sessions, persistedSession{
			ID:      s.ID,
			URL:     s.URL(),
			Tracked: s.Registry().Paths(),
		})
	}
	m.mu.RUnlock()

	fd, err := m.fs.Create(filepath.Join(m.dir, sessionFile))
	if err != nil {
		return errors.Join(errors.New("failed to persist session"), err)
	}
	defer fd.Close()

	if err := gob.NewEncoder(fd).Encode(snap); err != nil {
		return errors.Join(errors.New("failed to persist session"), err)
	}

	return nil
}

// Restore a persisted state. Restored sessions carry no formats: they only
// exist so that the files they planned can still be swept.
func (m *Store) Restore() int {
	fd, err := m.fs.Open(filepath.Join(m.dir, sessionFile))
	if err != nil {
		return 0
	}
	defer fd.Close()

	var snap snapshot
	if err := gob.NewDecoder(fd).Decode(&snap); err != nil {
		slog.Warn("discarding unreadable session file", slog.Any("err", err))
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ps := range snap.Sessions {
		s := NewSession()
		s.ID = ps.ID
		s.url = ps.URL
		s.registry = restoreRegistry(ps.Tracked)
		m.sessions[s.ID] = s
	}

	return len(snap.Sessions)
}

func restoreRegistry(paths []string) *planner.Registry {
	r := planner.NewRegistry()
	for _, p := range paths {
		r.Track(p)
	}
	return r
}
