package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DeliversInOrder(t *testing.T) {
	bus := NewBus()

	var (
		mu  sync.Mutex
		got []int
	)
	unsubscribe, err := bus.Subscribe("d1", func(e Event) {
		mu.Lock()
		got = append(got, e.Percent)
		mu.Unlock()
	})
	require.NoError(t, err)

	sink := bus.Sink("d1")
	for i := 1; i <= 10; i++ {
		sink.Emit(Event{Kind: Downloading, Percent: i * 10})
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 10
	}, time.Second, 5*time.Millisecond)

	unsubscribe()
	assert.Equal(t, []int{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}, got)

	last, ok := bus.Last("d1")
	require.True(t, ok)
	assert.Equal(t, "d1", last.DownloadID)
	assert.Equal(t, 100, last.Percent)
}

func TestBus_TopicsAreIsolated(t *testing.T) {
	bus := NewBus()

	received := make(chan Event, 4)
	unsubscribe, err := bus.Subscribe("a", func(e Event) { received <- e })
	require.NoError(t, err)
	defer unsubscribe()

	bus.Sink("b").Emit(Event{Kind: Downloading, Percent: 5})
	bus.Sink("a").Emit(Event{Kind: Finished, Percent: 100})

	select {
	case e := <-received:
		assert.Equal(t, "a", e.DownloadID)
		assert.Equal(t, Finished, e.Kind)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()

	calls := 0
	unsubscribe, err := bus.Subscribe("x", func(Event) { calls++ })
	require.NoError(t, err)
	assert.Equal(t, 1, bus.Subscribers("x"))

	unsubscribe()
	unsubscribe()
	assert.Zero(t, bus.Subscribers("x"))

	bus.Sink("x").Emit(Event{Kind: Downloading})
	assert.Zero(t, calls)
}

func TestBus_SlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	bus := NewBus()

	release := make(chan struct{})
	unsubscribe, err := bus.Subscribe("slow", func(Event) { <-release })
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		sink := bus.Sink("slow")
		for i := 0; i < subscriberBuffer*4; i++ {
			sink.Emit(Event{Kind: Downloading, Percent: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked by subscriber")
	}

	close(release)
	unsubscribe()
}

func TestMulti(t *testing.T) {
	var a, b int
	sink := Multi(SinkFunc(func(Event) { a++ }), nil, SinkFunc(func(Event) { b++ }))
	sink.Emit(Event{})

	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}

func TestBus_Forget(t *testing.T) {
	bus := NewBus()

	unsubscribe, err := bus.Subscribe("d1", func(Event) {})
	require.NoError(t, err)

	bus.Sink("d1").Emit(Event{Kind: Downloading, Percent: 5})
	require.Equal(t, 1, bus.Subscribers("d1"))

	bus.Forget("d1")

	_, ok := bus.Last("d1")
	assert.False(t, ok)
	assert.Zero(t, bus.Subscribers("d1"))
	assert.False(t, bus.bus.HasCallback(topic("d1")))

	// already ended by Forget, must not block or panic
	unsubscribe()

	// the id can be subscribed again
	got := make(chan Event, 1)
	unsubscribe, err = bus.Subscribe("d1", func(e Event) { got <- e })
	require.NoError(t, err)
	defer unsubscribe()

	bus.Sink("d1").Emit(Event{Kind: Finished, Percent: 100})
	select {
	case e := <-got:
		assert.Equal(t, Finished, e.Kind)
	case <-time.After(time.Second):
		t.Fatal("no event after resubscribing")
	}
}
