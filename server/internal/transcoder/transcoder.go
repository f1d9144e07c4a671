// Package transcoder locates the external ffmpeg binary used by yt-dlp for
// merging and audio extraction.
package transcoder

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

var ErrNotFound = errors.New("transcoder not found on PATH")

type Transcoder struct {
	Name string
	Path string
}

func (t *Transcoder) Available() bool { return t != nil && t.Path != "" }

// Location is the value passed to yt-dlp --ffmpeg-location.
func (t *Transcoder) Location() string {
	if !t.Available() {
		return ""
	}
	return t.Path
}

// lookPath is replaced in tests.
var lookPath = exec.LookPath

// Probe looks up name on the host search path. A missing binary is not an
// error for callers: they degrade to selectors that need no merging.
func Probe(name string) *Transcoder {
	if name == "" {
		name = "ffmpeg"
	}

	t := &Transcoder{Name: name}
	path, err := lookPath(name)
	if err != nil {
		slog.Warn("transcoder not available", slog.String("name", name), slog.Any("err", err))
		return t
	}

	t.Path = path
	return t
}

// Version runs "<transcoder> -version" and returns its first line.
func (t *Transcoder) Version(ctx context.Context) (string, error) {
	if !t.Available() {
		return "", ErrNotFound
	}

	cmd := exec.CommandContext(ctx, t.Path, "-version")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", err
	}
	if err := cmd.Start(); err != nil {
		return "", err
	}

	var line string
	scanner := bufio.NewScanner(stdout)
	if scanner.Scan() {
		line = strings.TrimSpace(scanner.Text())
	}

	// drain so Wait doesn't block on a full pipe
	_, _ = io.Copy(io.Discard, stdout)

	if err := cmd.Wait(); err != nil {
		return "", err
	}
	return line, nil
}

// Cached probes once per name for the lifetime of the process.
type Cached struct {
	mu    sync.Mutex
	cache map[string]*Transcoder
}

func (c *Cached) Get(name string) *Transcoder {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cache == nil {
		c.cache = make(map[string]*Transcoder)
	}
	if t, ok := c.cache[name]; ok {
		return t
	}

	t := Probe(name)
	c.cache[name] = t
	return t
}
