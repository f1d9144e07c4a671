package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var ErrQueueStopped = errors.New("queue stopped")

// Job is a unit of work run by a download worker.
type Job interface {
	GetId() string
	Run(ctx context.Context)
}

// JobFunc adapts a function to the Job interface.
type JobFunc struct {
	ID string
	Fn func(ctx context.Context)
}

func (j JobFunc) GetId() string           { return j.ID }
func (j JobFunc) Run(ctx context.Context) { j.Fn(ctx) }

type MessageQueue struct {
	concurrency   int
	downloadQueue chan Job
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	stopOnce      sync.Once
}

// NewMessageQueue returns a queue running at most size jobs at once.
func NewMessageQueue(size int) (*MessageQueue, error) {
	if size <= 0 {
		return nil, errors.New("invalid queue size")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &MessageQueue{
		concurrency:   size,
		downloadQueue: make(chan Job, size*2),
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Publish download job. It blocks while the buffer is full.
func (m *MessageQueue) Publish(j Job) error {
	select {
	case <-m.ctx.Done():
		slog.Warn("queue stopped, dropping download", slog.String("id", j.GetId()))
		return ErrQueueStopped
	default:
	}

	select {
	case m.downloadQueue <- j:
		slog.Info("published download", slog.String("id", j.GetId()))
		return nil
	case <-m.ctx.Done():
		slog.Warn("queue stopped, dropping download", slog.String("id", j.GetId()))
		return ErrQueueStopped
	}
}

// N parallel workers for downloadQueue
func (m *MessageQueue) SetupConsumers() {
	for i := 0; i < m.concurrency; i++ {
		m.wg.Add(1)
		go m.downloadWorker(i)
	}
}

func (m *MessageQueue) downloadWorker(workerId int) {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case j := <-m.downloadQueue:
			if j == nil {
				continue
			}

			slog.Info("download worker started",
				slog.Int("worker", workerId),
				slog.String("id", j.GetId()),
			)

			j.Run(m.ctx)

			slog.Info("download worker done",
				slog.Int("worker", workerId),
				slog.String("id", j.GetId()),
			)
		}
	}
}

// Stop cancels the running jobs and waits for the workers to return.
func (m *MessageQueue) Stop() {
	m.stopOnce.Do(func() {
		m.cancel()
		m.wg.Wait()
	})
}
