package downloaders

import (
	"cmp"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/hbollon/go-edlib"
	"github.com/spf13/afero"
	"github.com/vidfetch/vidfetch/server/internal/planner"
)

const (
	DefaultRecencyWindow = 300 * time.Second
	MaxRecencyWindow     = 600 * time.Second
)

var (
	audioExtensions = []string{"mp3", "m4a", "opus", "aac", "ogg"}
	videoFallback   = []string{"mp4", "m4a", "webm"}
	audioFallback   = []string{"mp3", "m4a"}
)

// LocateInput is what the transfer layer and the planner know about the
// artifact after a successful transfer.
type LocateInput struct {
	Reported  string
	Registry  *planner.Registry
	AudioOnly bool
	VideoID   string
}

// Locator finds the artifact of a finished transfer when the reported path
// cannot be trusted.
type Locator struct {
	Fs     afero.Fs
	Dir    string
	Window time.Duration

	now func() time.Time
}

func NewLocator(fsys afero.Fs, dir string, window time.Duration) *Locator {
	if window <= 0 {
		window = DefaultRecencyWindow
	}
	return &Locator{Fs: fsys, Dir: dir, Window: window, now: time.Now}
}

// Locate walks the lookup chain and stops at the first match:
// reported filename, tracked paths, recent audio file (audio only), recent
// file of the fallback extension set.
func (l *Locator) Locate(in LocateInput) (string, error) {
	if in.Reported != "" && l.isFile(in.Reported) {
		return in.Reported, nil
	}

	if in.Registry != nil {
		if p, ok := in.Registry.FirstExisting(l.Fs); ok {
			return p, nil
		}
	}

	if in.AudioOnly {
		if p, ok := l.newest(audioExtensions, in.VideoID); ok {
			return p, nil
		}
	}

	exts := videoFallback
	if in.AudioOnly {
		exts = audioFallback
	}
	for _, ext := range exts {
		if p, ok := l.newest([]string{ext}, in.VideoID); ok {
			return p, nil
		}
	}

	return "", ErrArtifactNotFound
}

func (l *Locator) isFile(path string) bool {
	info, err := l.Fs.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

type candidate struct {
	path    string
	modTime time.Time
	hasID   bool
	score   float32
}

// newest returns the best recent file with one of exts. Files naming the
// video id win, then the most recent one. Equal mtimes are broken by name
// similarity to the id.
func (l *Locator) newest(exts []string, videoID string) (string, bool) {
	cutoff := l.now().Add(-l.Window)

	var candidates []candidate
	for _, ext := range exts {
		matches, err := afero.Glob(l.Fs, filepath.Join(l.Dir, "*."+ext))
		if err != nil {
			continue
		}

		for _, m := range matches {
			info, err := l.Fs.Stat(m)
			if err != nil || !info.Mode().IsRegular() || info.ModTime().Before(cutoff) {
				continue
			}
			candidates = append(candidates, newCandidate(m, info, videoID))
		}
	}

	if len(candidates) == 0 {
		return "", false
	}

	slices.SortStableFunc(candidates, func(a, b candidate) int {
		if a.hasID != b.hasID {
			if a.hasID {
				return -1
			}
			return 1
		}
		if c := b.modTime.Compare(a.modTime); c != 0 {
			return c
		}
		return cmp.Compare(b.score, a.score)
	})

	return candidates[0].path, true
}

func newCandidate(path string, info os.FileInfo, videoID string) candidate {
	c := candidate{path: path, modTime: info.ModTime()}
	if videoID == "" {
		return c
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	c.hasID = strings.Contains(name, videoID)
	c.score = edlib.JaroWinklerSimilarity(name, videoID)

	return c
}
