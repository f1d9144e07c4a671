package downloaders

import (
	"math"
	"sync"
	"time"

	"github.com/vidfetch/vidfetch/server/internal/progress"
)

const (
	statusDownloading = "downloading"
	statusFinished    = "finished"
)

// ProgressTemplate is one line of the download progress template.
type ProgressTemplate struct {
	Status             string   `json:"status"`
	DownloadedBytes    *float64 `json:"downloaded_bytes"`
	TotalBytes         *float64 `json:"total_bytes"`
	TotalBytesEstimate *float64 `json:"total_bytes_estimate"`
	Speed              *float64 `json:"speed"`
	ETA                *float64 `json:"eta"`
	Filename           string   `json:"filename"`
}

func (p ProgressTemplate) total() float64 {
	if p.TotalBytes != nil && *p.TotalBytes > 0 {
		return *p.TotalBytes
	}
	if p.TotalBytesEstimate != nil && *p.TotalBytesEstimate > 0 {
		return *p.TotalBytesEstimate
	}
	return 0
}

type PostprocessTemplate struct {
	FilePath string `json:"filepath"`
}

// ProgressTracker turns raw progress lines into events. The percent is held
// when the total is unknown and only changes are forwarded.
type ProgressTracker struct {
	sink progress.Sink
	now  func() time.Time

	mu        sync.Mutex
	last      int
	emitted   bool
	filename  string
	finalPath string
}

func NewProgressTracker(sink progress.Sink) *ProgressTracker {
	if sink == nil {
		sink = progress.Discard
	}
	return &ProgressTracker{sink: sink, now: time.Now}
}

func (t *ProgressTracker) Update(p ProgressTemplate) {
	t.mu.Lock()

	if p.Filename != "" {
		t.filename = p.Filename
	}

	switch p.Status {
	case statusDownloading:
		percent := t.last
		if total := p.total(); total > 0 && p.DownloadedBytes != nil {
			percent = int(math.Floor(100 * *p.DownloadedBytes / total))
			percent = min(max(percent, 0), 100)
		}

		if t.emitted && percent == t.last {
			t.mu.Unlock()
			return
		}
		t.last = percent
		t.emitted = true

		e := progress.Event{
			Kind:     progress.Downloading,
			Percent:  percent,
			Speed:    p.Speed,
			ETA:      intPtr(p.ETA),
			Filename: p.Filename,
			Time:     t.now(),
		}
		if p.DownloadedBytes != nil {
			e.DownloadedBytes = int64(*p.DownloadedBytes)
		}
		e.TotalBytes = int64(p.total())
		t.mu.Unlock()

		t.sink.Emit(e)

	case statusFinished:
		t.last = 100
		t.emitted = true
		t.mu.Unlock()

		t.sink.Emit(progress.Event{
			Kind:     progress.PostProcessing,
			Percent:  100,
			Filename: p.Filename,
			Time:     t.now(),
		})

	default:
		t.mu.Unlock()
	}
}

// Postprocessed records the final path reported after post-processing.
func (t *ProgressTracker) Postprocessed(p PostprocessTemplate) {
	if p.FilePath == "" {
		return
	}

	t.mu.Lock()
	t.finalPath = p.FilePath
	t.mu.Unlock()

	t.sink.Emit(progress.Event{
		Kind:     progress.PostProcessing,
		Percent:  100,
		Filename: p.FilePath,
		Time:     t.now(),
	})
}

func (t *ProgressTracker) Percent() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Filename is the path reported by the transfer layer: the post-processed
// one when present, else the last downloaded file.
func (t *ProgressTracker) Filename() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.finalPath != "" {
		return t.finalPath
	}
	return t.filename
}

func intPtr(f *float64) *int {
	if f == nil {
		return nil
	}
	v := int(*f)
	return &v
}
