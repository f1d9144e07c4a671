// Package planner derives deterministic output paths for downloads and
// keeps the per-session registry of the files it planned.
package planner

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/vidfetch/vidfetch/server/internal/extractor"
	"github.com/vidfetch/vidfetch/server/internal/formats"
	"github.com/vidfetch/vidfetch/server/internal/resolver"
)

const (
	unknownID     = "unknown"
	audioSuffix   = "_audio"
	videoExt      = ".mp4"
	audioExtFinal = ".mp3"
)

type PlanInput struct {
	URL      string
	Meta     *extractor.Metadata
	Kind     resolver.Kind
	Selected *formats.QualityOption
}

type Planner struct {
	fs       afero.Fs
	dir      string
	registry *Registry
}

// New returns a planner rooted at dir. The directory is created on the first
// Plan, not here.
func New(fsys afero.Fs, dir string, registry *Registry) *Planner {
	if registry == nil {
		registry = NewRegistry()
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return &Planner{fs: fsys, dir: dir, registry: registry}
}

func (p *Planner) Dir() string         { return p.dir }
func (p *Planner) Registry() *Registry { return p.registry }
func (p *Planner) Fs() afero.Fs        { return p.fs }

// Plan returns {dir}/{prefix}_{id}[_{h}p|_audio][.mp4] and tracks it.
// Audio paths carry no extension: yt-dlp appends the one of the extracted
// codec.
func (p *Planner) Plan(in PlanInput) (string, error) {
	if err := p.fs.MkdirAll(p.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	path := filepath.Join(p.dir, FileName(in))
	p.registry.Track(path)

	return path, nil
}

// FileName is the pure part of Plan.
func FileName(in PlanInput) string {
	var (
		id     = VideoID(in.URL, in.Meta)
		suffix string
		ext    string
	)

	if in.Kind == resolver.KindAudio {
		suffix = audioSuffix
	} else {
		ext = videoExt
		if in.Selected != nil && in.Selected.Height > 0 {
			suffix = fmt.Sprintf("_%dp", in.Selected.Height)
		}
	}

	return fmt.Sprintf("%s_%s%s%s", Prefix(in.URL, in.Meta), id, suffix, ext)
}

func Prefix(url string, meta *extractor.Metadata) string {
	switch DetectPlatform(url) {
	case PlatformFacebook:
		if DetectContentType(url, meta) == ContentReel {
			return "fb_reel"
		}
		return "fb_video"
	case PlatformYouTube:
		if DetectContentType(url, meta) == ContentShort {
			return "ytb_short"
		}
		return "ytb_video"
	}
	return "video"
}

// VideoID prefers the extractor id, then the id embedded in a YouTube URL.
func VideoID(url string, meta *extractor.Metadata) string {
	if meta != nil && meta.ID != "" {
		return meta.ID
	}
	if id, ok := ExtractYouTubeID(url); ok {
		return id
	}
	return unknownID
}

// DisplayName is the name shown to the user before the download runs. Audio
// downloads end up as mp3.
func DisplayName(path string, kind resolver.Kind) string {
	name := filepath.Base(path)
	if kind == resolver.KindAudio && !strings.HasSuffix(name, audioExtFinal) {
		name += audioExtFinal
	}
	return name
}

// EnsureTemplateDir creates the static directory prefix of a yt-dlp output
// template such as "/data/%(title)s.%(ext)s".
func EnsureTemplateDir(fsys afero.Fs, tmpl string) error {
	var dir string
	if i := strings.Index(tmpl, "%("); i >= 0 {
		dir = tmpl[:i]
		if !strings.HasSuffix(dir, string(filepath.Separator)) {
			dir = filepath.Dir(dir)
		}
	} else {
		dir = filepath.Dir(tmpl)
	}

	dir = strings.TrimSpace(dir)
	if dir == "" || dir == "." {
		return nil
	}
	return fsys.MkdirAll(dir, 0o755)
}
