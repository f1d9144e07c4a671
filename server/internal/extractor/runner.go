package extractor

//go:generate mockgen -destination=mocks/mock_runner.go -package=mocks github.com/vidfetch/vidfetch/server/internal/extractor Runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"syscall"
)

// Runner executes the extraction binary and returns its stdout.
// A non nil error carries the process stderr as message.
type Runner interface {
	Run(ctx context.Context, args ...string) ([]byte, error)
}

// ExecRunner runs yt-dlp as a child process in its own process group.
type ExecRunner struct {
	Path string
}

func NewExecRunner(path string) *ExecRunner {
	if path == "" {
		path = "yt-dlp"
	}
	return &ExecRunner{Path: path}
}

func (r *ExecRunner) Run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.Path, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if len(bytes.TrimSpace(stderr.Bytes())) == 0 {
			return nil, err
		}
		return nil, errors.New(stderr.String())
	}

	return stdout.Bytes(), nil
}
