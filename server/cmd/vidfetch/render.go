package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/vidfetch/vidfetch/server/internal/progress"
)

// renderer draws progress events on a terminal line.
type renderer struct {
	mu    sync.Mutex
	w     io.Writer
	dirty bool
}

func newRenderer(w io.Writer) *renderer {
	return &renderer{w: w}
}

func (r *renderer) Emit(e progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e.Kind {
	case progress.Downloading:
		fmt.Fprintf(r.w, "\r%-60s", progressLine(e))
		r.dirty = true
	case progress.PostProcessing:
		r.newline()
		fmt.Fprintln(r.w, "Post-processing...")
	case progress.Finished:
		r.newline()
	case progress.Failed:
		r.newline()
		fmt.Fprintf(r.w, "Failed: %s\n", e.Message)
	}
}

func (r *renderer) newline() {
	if r.dirty {
		fmt.Fprintln(r.w)
		r.dirty = false
	}
}

func progressLine(e progress.Event) string {
	parts := []string{fmt.Sprintf("[%3d%%]", e.Percent)}

	switch {
	case e.TotalBytes > 0:
		parts = append(parts, fmt.Sprintf("%s of %s",
			humanize.Bytes(uint64(e.DownloadedBytes)), humanize.Bytes(uint64(e.TotalBytes))))
	case e.DownloadedBytes > 0:
		parts = append(parts, humanize.Bytes(uint64(e.DownloadedBytes)))
	}
	if e.Speed != nil && *e.Speed > 0 {
		parts = append(parts, "at "+humanize.Bytes(uint64(*e.Speed))+"/s")
	}
	if e.ETA != nil {
		parts = append(parts, fmt.Sprintf("ETA %d:%02d", *e.ETA/60, *e.ETA%60))
	}

	return strings.Join(parts, " ")
}
