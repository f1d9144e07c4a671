package archiver

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vidfetch/vidfetch/server/archive"
)

type Message = archive.Entity

// Archiver records download outcomes in the archive off the caller's
// goroutine.
type Archiver struct {
	service *archive.Service
	enabled bool
	ch      chan *Message
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func New(s *archive.Service, enabled bool) *Archiver {
	a := &Archiver{
		service: s,
		enabled: enabled,
		ch:      make(chan *Message, 16),
	}

	a.wg.Add(1)
	go a.consume()

	return a
}

func (a *Archiver) consume() {
	defer a.wg.Done()

	for m := range a.ch {
		slog.Info(
			"archiving completed download",
			slog.String("title", m.Title),
			slog.String("source", m.Source),
			slog.Bool("success", m.Success),
		)
		if err := a.service.Archive(context.Background(), m); err != nil {
			slog.Error("failed to archive download", slog.String("source", m.Source), slog.Any("err", err))
		}
	}
}

// Publish queues m when auto archiving is enabled.
func (a *Archiver) Publish(m *Message) {
	if a == nil || !a.enabled {
		return
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		slog.Warn("archiver closed, dropping entry", slog.String("source", m.Source))
		return
	}
	a.ch <- m
}

// Close drains the pending messages. Later publications are dropped.
func (a *Archiver) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.ch)
	a.mu.Unlock()

	a.wg.Wait()
}
