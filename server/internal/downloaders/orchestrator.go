package downloaders

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vidfetch/vidfetch/server/internal/planner"
	"github.com/vidfetch/vidfetch/server/internal/progress"
)

type OrchestratorConfig struct {
	Transport Transport
	Locator   *Locator
	Registry  *planner.Registry
	Sink      progress.Sink
	Log       Logger
}

// Orchestrator drives one download from Idle to Finished or Failed. It never
// retries the transfer: a failed attempt is terminal and the caller builds a
// new orchestrator to try again.
type Orchestrator struct {
	transport Transport
	locator   *Locator
	registry  *planner.Registry
	sink      progress.Sink
	log       Logger

	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	tracker *ProgressTracker
	outcome *Outcome
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	o := &Orchestrator{
		transport: cfg.Transport,
		locator:   cfg.Locator,
		registry:  cfg.Registry,
		sink:      cfg.Sink,
		log:       cfg.Log,
		state:     StateIdle,
	}
	if o.sink == nil {
		o.sink = progress.Discard
	}
	if o.log == nil {
		o.log = NewLogSink(slog.Default(), 0)
	}
	if o.registry == nil {
		o.registry = planner.NewRegistry()
	}
	return o
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Outcome returns the terminal result once the orchestrator left Running.
func (o *Orchestrator) Outcome() (Outcome, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.outcome == nil {
		return Outcome{}, false
	}
	return *o.outcome, true
}

// Percent is the last percent emitted by the running transfer.
func (o *Orchestrator) Percent() int {
	o.mu.Lock()
	tracker := o.tracker
	o.mu.Unlock()

	if tracker == nil {
		return 0
	}
	return tracker.Percent()
}

// Run blocks until the transfer ends. Every failure, including a panic in
// the transfer layer, is reported as a failed Outcome.
func (o *Orchestrator) Run(ctx context.Context, req Request) (out Outcome) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tracker := NewProgressTracker(o.sink)

	o.mu.Lock()
	if !o.state.CanTransitionTo(StateRunning) {
		state := o.state
		o.mu.Unlock()
		if state == StateRunning {
			return Failed(ErrAlreadyRunning)
		}
		return Failed(fmt.Errorf("download already %s", state))
	}
	o.state = StateRunning
	o.cancel = cancel
	o.tracker = tracker
	o.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("download panicked", slog.String("url", req.URL), slog.Any("panic", r))
			out = o.fail(fmt.Errorf("unexpected error: %v", r))
		}
	}()

	consumer := NewJSONLogConsumer(tracker, o.log)

	started := time.Now()
	err := o.transport.Run(ctx, req.URL, req.Args(), consumer.ParseLogEntry)
	if err != nil {
		slog.Error("download failed",
			slog.String("url", req.URL),
			slog.Duration("elapsed", time.Since(started)),
			slog.Any("err", err),
		)
		return o.fail(err)
	}

	path, err := o.locator.Locate(LocateInput{
		Reported:  tracker.Filename(),
		Registry:  o.registry,
		AudioOnly: req.AudioOnly,
		VideoID:   req.VideoID,
	})
	if err != nil {
		slog.Warn("artifact not found",
			slog.String("url", req.URL),
			slog.String("reported", tracker.Filename()),
			slog.Any("tracked", o.registry.Paths()),
			slog.Bool("audio_only", req.AudioOnly),
		)
		return o.fail(err)
	}

	var size int64
	if info, err := o.locator.Fs.Stat(path); err == nil {
		size = info.Size()
	}

	// the located file may differ from the planned one, track it for cleanup
	o.registry.Track(path)

	return o.finish(Succeeded(path, size))
}

func (o *Orchestrator) fail(err error) Outcome {
	out := Failed(err)
	o.log.Error(out.Reason)

	o.mu.Lock()
	o.state = StateFailed
	o.outcome = &out
	o.cancel = nil
	o.mu.Unlock()

	o.sink.Emit(progress.Event{
		Kind:    progress.Failed,
		Percent: o.Percent(),
		Message: out.Reason,
		Time:    time.Now(),
	})
	return out
}

func (o *Orchestrator) finish(out Outcome) Outcome {
	o.mu.Lock()
	o.state = StateFinished
	o.outcome = &out
	o.cancel = nil
	o.mu.Unlock()

	o.sink.Emit(progress.Event{
		Kind:     progress.Finished,
		Percent:  100,
		Filename: out.Path,
		Time:     time.Now(),
	})
	return out
}

// Cancel is a best-effort stop of the running transfer: the process group
// receives SIGTERM. A partial file may remain on disk; it stays tracked in
// the registry so a sweep removes it.
func (o *Orchestrator) Cancel() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateRunning || o.cancel == nil {
		return ErrNotRunning
	}
	o.cancel()
	return nil
}
