package kv

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vidfetch/vidfetch/server/internal/downloaders"
	"github.com/vidfetch/vidfetch/server/internal/extractor"
	"github.com/vidfetch/vidfetch/server/internal/formats"
	"github.com/vidfetch/vidfetch/server/internal/planner"
	"github.com/vidfetch/vidfetch/server/internal/resolver"
)

var (
	ErrSessionNotFound  = errors.New("no session found for the given key")
	ErrDownloadNotFound = errors.New("no download found for the given key")
)

// Session is the state kept across repeated interaction with one video:
// its quality options, the files planned for it and the active download.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	url       string
	meta      *extractor.Metadata
	formats   []formats.QualityOption
	registry  *planner.Registry
	log       *downloaders.LogSink
	active    string
	kind      resolver.Kind
	formatID  string
	selection bool
}

func NewSession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		registry:  planner.NewRegistry(),
		log:       downloaders.NewLogSink(nil, downloaders.DefaultLogLines),
	}
}

// Refresh replaces the video of the session. The option list is rebuilt in
// full and the detailed log cleared.
func (s *Session) Refresh(url string, meta *extractor.Metadata) []formats.QualityOption {
	opts := formats.Normalize(meta.Formats)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.url = url
	s.meta = meta
	s.formats = opts
	s.selection = false
	s.log.Reset()

	return slices.Clone(opts)
}

func (s *Session) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

func (s *Session) Metadata() *extractor.Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

func (s *Session) Formats() []formats.QualityOption {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.formats)
}

func (s *Session) Registry() *planner.Registry { return s.registry }
func (s *Session) Log() *downloaders.LogSink   { return s.log }

// Begin marks downloadID as the active download of the session. Only one
// download may be active at a time.
func (s *Session) Begin(downloadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != "" {
		return downloaders.ErrAlreadyRunning
	}
	s.active = downloadID
	return nil
}

// End releases the session if downloadID is the active download.
func (s *Session) End(downloadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == downloadID {
		s.active = ""
	}
}

func (s *Session) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Select records the requested kind and format and reports whether they
// differ from the previous selection. The first selection is not a change.
func (s *Session) Select(kind resolver.Kind, formatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := s.selection && (s.kind != kind || s.formatID != formatID)
	s.kind, s.formatID, s.selection = kind, formatID, true

	return changed
}

// Download is a queued or running transfer bound to a session.
type Download struct {
	ID           string
	SessionID    string
	Request      downloaders.Request
	Title        string
	DisplayName  string
	Orchestrator *downloaders.Orchestrator
	CreatedAt    time.Time
}

type DownloadSnapshot struct {
	ID          string               `json:"id"`
	SessionID   string               `json:"session_id"`
	URL         string               `json:"url"`
	Title       string               `json:"title"`
	Kind        resolver.Kind        `json:"kind"`
	DisplayName string               `json:"display_name"`
	State       downloaders.State    `json:"state"`
	Percent     int                  `json:"percent"`
	Outcome     *downloaders.Outcome `json:"outcome,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

func (d *Download) Snapshot() DownloadSnapshot {
	snap := DownloadSnapshot{
		ID:          d.ID,
		SessionID:   d.SessionID,
		URL:         d.Request.URL,
		Title:       d.Title,
		Kind:        d.Request.Kind,
		DisplayName: d.DisplayName,
		State:       d.Orchestrator.State(),
		Percent:     d.Orchestrator.Percent(),
		CreatedAt:   d.CreatedAt,
	}
	if out, ok := d.Orchestrator.Outcome(); ok {
		snap.Outcome = &out
		if out.Success {
			snap.Percent = 100
		}
	}
	return snap
}

// persistedSession is the gob representation of a session. Only what is
// needed to clean up after a restart is kept.
type persistedSession struct {
	ID      string
	URL     string
	Tracked []string
}

// struct representing the current status of the store
// used for serializaton/persistence reasons
type snapshot struct {
	Sessions []persistedSession
}
