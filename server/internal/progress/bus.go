package progress

import (
	"fmt"
	"sync"

	evbus "github.com/asaskevich/EventBus"
)

// subscriberBuffer bounds the events queued for one subscriber. When full,
// events are dropped for that subscriber only.
const subscriberBuffer = 64

// Bus fans events out per download. Publishing never blocks: each
// subscriber has its own buffered queue drained by its own goroutine, which
// also keeps per-subscriber ordering.
type Bus struct {
	bus evbus.Bus

	mu       sync.Mutex
	last     map[string]Event
	subs     map[string]map[uint64]chan Event
	handlers map[string]func(Event)
	nextID   uint64
}

func NewBus() *Bus {
	return &Bus{
		bus:      evbus.New(),
		last:     make(map[string]Event),
		subs:     make(map[string]map[uint64]chan Event),
		handlers: make(map[string]func(Event)),
	}
}

func topic(downloadID string) string { return "progress:" + downloadID }

// Sink returns a sink that stamps events with downloadID and publishes them.
func (b *Bus) Sink(downloadID string) Sink {
	return SinkFunc(func(e Event) {
		e.DownloadID = downloadID

		b.mu.Lock()
		b.last[downloadID] = e
		b.mu.Unlock()

		b.bus.Publish(topic(downloadID), e)
	})
}

// Subscribe registers fn for the events of downloadID. The returned function
// removes the subscription; fn is not called after it returns.
func (b *Bus) Subscribe(downloadID string, fn func(Event)) (func(), error) {
	b.mu.Lock()
	set, ok := b.subs[downloadID]
	if !ok {
		set = make(map[uint64]chan Event)
		b.subs[downloadID] = set
		b.handlers[downloadID] = func(e Event) { b.dispatch(downloadID, e) }
	}
	handler := b.handlers[downloadID]

	b.nextID++
	id := b.nextID
	ch := make(chan Event, subscriberBuffer)
	set[id] = ch
	b.mu.Unlock()

	// the event bus calls handlers with its own lock held, never take it
	// while holding b.mu
	if !ok {
		if err := b.bus.Subscribe(topic(downloadID), handler); err != nil {
			b.mu.Lock()
			delete(b.subs, downloadID)
			delete(b.handlers, downloadID)
			b.mu.Unlock()
			return nil, fmt.Errorf("subscribing to %s: %w", downloadID, err)
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range ch {
			fn(e)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if set, ok := b.subs[downloadID]; ok {
				if ch, ok := set[id]; ok {
					delete(set, id)
					close(ch)
				}
			}
			b.mu.Unlock()
			<-done
		})
	}, nil
}

func (b *Bus) dispatch(downloadID string, e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs[downloadID] {
		select {
		case ch <- e:
		default:
		}
	}
}

// Last returns the most recent event published for downloadID.
func (b *Bus) Last(downloadID string) (Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.last[downloadID]
	return e, ok
}

// Forget drops the cached state of downloadID, ends its subscriptions and
// releases its topic.
func (b *Bus) Forget(downloadID string) {
	b.mu.Lock()
	delete(b.last, downloadID)
	for _, ch := range b.subs[downloadID] {
		close(ch)
	}
	delete(b.subs, downloadID)
	handler, ok := b.handlers[downloadID]
	delete(b.handlers, downloadID)
	b.mu.Unlock()

	if ok {
		_ = b.bus.Unsubscribe(topic(downloadID), handler)
	}
}

func (b *Bus) Subscribers(downloadID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.subs[downloadID])
}
