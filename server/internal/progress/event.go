// Package progress defines the download progress events and the bus that
// fans them out to subscribers (websocket clients, CLI renderer, loggers).
package progress

import "time"

type Kind string

const (
	Downloading    Kind = "downloading"
	PostProcessing Kind = "postprocessing"
	Finished       Kind = "finished"
	Failed         Kind = "failed"
)

type Event struct {
	DownloadID      string    `json:"download_id,omitempty"`
	Kind            Kind      `json:"kind"`
	Percent         int       `json:"percent"`
	DownloadedBytes int64     `json:"downloaded_bytes,omitempty"`
	TotalBytes      int64     `json:"total_bytes,omitempty"`
	Speed           *float64  `json:"speed,omitempty"`
	ETA             *int      `json:"eta,omitempty"`
	Filename        string    `json:"filename,omitempty"`
	Message         string    `json:"message,omitempty"`
	Time            time.Time `json:"time"`
}

// Sink receives events from the transfer goroutine. Implementations must be
// safe for concurrent use and must not block.
type Sink interface {
	Emit(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Multi emits to every sink in order.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(e Event) {
		for _, s := range sinks {
			if s != nil {
				s.Emit(e)
			}
		}
	})
}
