package downloaders

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrArtifactNotFound is returned when the transfer succeeded but no
	// output file could be located.
	ErrArtifactNotFound = errors.New("download completed but file not found")

	// ErrAlreadyRunning is returned when a second download is started while
	// one is active.
	ErrAlreadyRunning = errors.New("a download is already running")

	// ErrNotRunning is returned by Cancel when nothing is in flight.
	ErrNotRunning = errors.New("no download is running")
)

// TransportError is a failed transfer. Stderr keeps the tail of the error
// output as reported by yt-dlp.
type TransportError struct {
	ExitCode int
	Stderr   []string
	Err      error
}

func (e *TransportError) Error() string {
	if reason := e.Reason(); reason != "" {
		return fmt.Sprintf("download failed: %s", reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("download failed: %v", e.Err)
	}
	return fmt.Sprintf("download failed with exit code %d", e.ExitCode)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Reason is the last "ERROR:" line, else the last stderr line.
func (e *TransportError) Reason() string {
	for i := len(e.Stderr) - 1; i >= 0; i-- {
		if strings.HasPrefix(e.Stderr[i], "ERROR:") {
			return strings.TrimSpace(strings.TrimPrefix(e.Stderr[i], "ERROR:"))
		}
	}
	if n := len(e.Stderr); n > 0 {
		return strings.TrimSpace(e.Stderr[n-1])
	}
	return ""
}
