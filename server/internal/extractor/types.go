package extractor

import (
	"fmt"
	"strings"
)

// Format is a single stream variant as reported by yt-dlp -J.
type Format struct {
	FormatID       string   `json:"format_id"`
	Ext            string   `json:"ext"`
	VCodec         string   `json:"vcodec"`
	ACodec         string   `json:"acodec"`
	Height         *int     `json:"height"`
	Width          *int     `json:"width"`
	FPS            *float64 `json:"fps"`
	Filesize       *int64   `json:"filesize"`
	FilesizeApprox *int64   `json:"filesize_approx"`
	Quality        *float64 `json:"quality"`
	URL            string   `json:"url"`
}

// yt-dlp omits vcodec/acodec on some extractors; only an explicit "none"
// marks a missing track.
func (f Format) HasVideo() bool { return f.VCodec != "none" }
func (f Format) HasAudio() bool { return f.ACodec != "none" }

// Size returns the exact size when known, the estimate otherwise, else 0.
func (f Format) Size() int64 {
	if f.Filesize != nil && *f.Filesize > 0 {
		return *f.Filesize
	}
	if f.FilesizeApprox != nil && *f.FilesizeApprox > 0 {
		return *f.FilesizeApprox
	}
	return 0
}

func (f Format) HeightOrZero() int {
	if f.Height == nil {
		return 0
	}
	return *f.Height
}

func (f Format) FPSOrZero() float64 {
	if f.FPS == nil {
		return 0
	}
	return *f.FPS
}

// IsPortrait reports whether both dimensions are known and height > width.
func (f Format) IsPortrait() bool {
	return f.Height != nil && f.Width != nil &&
		*f.Height > 0 && *f.Width > 0 && *f.Height > *f.Width
}

// Metadata is the subset of the yt-dlp info dict the downloader relies on.
type Metadata struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Uploader       string   `json:"uploader"`
	Duration       float64  `json:"duration"`
	DurationString string   `json:"duration_string"`
	Thumbnail      string   `json:"thumbnail"`
	WebpageURL     string   `json:"webpage_url"`
	ViewCount      int64    `json:"view_count"`
	Formats        []Format `json:"formats"`
}

// ShortFormMaxDuration is the upper bound (inclusive) for the short-form
// heuristic.
const ShortFormMaxDuration = 60

// IsShortForm guesses vertical short-form content from duration and stream
// orientation. It is a heuristic, not a classifier.
func (m *Metadata) IsShortForm() bool {
	if m == nil || m.Duration <= 0 || m.Duration > ShortFormMaxDuration {
		return false
	}
	for _, f := range m.Formats {
		if f.IsPortrait() {
			return true
		}
	}
	return false
}

// CleanTitle drops the site suffix/prefix Facebook puts around titles
// ("views | Title | Page").
func (m *Metadata) CleanTitle() string {
	if !strings.Contains(m.Title, " | ") {
		return m.Title
	}
	parts := strings.Split(m.Title, " | ")
	if len(parts) >= 2 {
		return strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(parts[0])
}

// Length formats the duration as m:ss, falling back to yt-dlp's own string.
func (m *Metadata) Length() string {
	if m.Duration > 0 {
		secs := int(m.Duration)
		return fmt.Sprintf("%d:%02d", secs/60, secs%60)
	}
	if m.DurationString != "" {
		return m.DurationString
	}
	return "N/A"
}
