package downloaders

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// Every field falls back to a JSON null so a missing value never breaks the
// line.
const downloadTemplate = `download:
{
	"status":%(progress.status)j,
	"downloaded_bytes":%(progress.downloaded_bytes|null)s,
	"total_bytes":%(progress.total_bytes|null)s,
	"total_bytes_estimate":%(progress.total_bytes_estimate|null)s,
	"speed":%(progress.speed|null)s,
	"eta":%(progress.eta|null)s,
	"filename":%(progress.filename)j
}`

// filename not returning the correct extension after postprocess
const postprocessTemplate = `postprocess:
{
	"filepath":%(info.filepath)j
}
`

const stderrTailSize = 20

var templateReplacer = strings.NewReplacer("\n", "", "\t", "", " ", "")

// YtDlpTransport runs yt-dlp as a child process in its own process group.
type YtDlpTransport struct {
	Path string

	mu   sync.Mutex
	proc *os.Process
}

func NewYtDlpTransport(path string) *YtDlpTransport {
	if path == "" {
		path = "yt-dlp"
	}
	return &YtDlpTransport{Path: path}
}

func baseParams(url string) []string {
	return []string{
		strings.Split(url, "&list")[0], //no playlist
		"--newline",
		"--no-colors",
		"--no-playlist",
		"--progress-template",
		templateReplacer.Replace(downloadTemplate),
		"--progress-template",
		templateReplacer.Replace(postprocessTemplate),
	}
}

func (t *YtDlpTransport) Run(ctx context.Context, url string, args []string, lines func([]byte)) error {
	params := append(baseParams(url), argsSanitizer(args)...)

	slog.Info("requesting download", slog.String("url", url), slog.Any("params", params))

	cmd := exec.CommandContext(ctx, t.Path, params...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error { return killGroup(cmd.Process) }

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &TransportError{ExitCode: -1, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &TransportError{ExitCode: -1, Err: err}
	}

	if err := cmd.Start(); err != nil {
		slog.Error("failed to start yt-dlp process", slog.Any("err", err))
		return &TransportError{ExitCode: -1, Err: err}
	}

	t.mu.Lock()
	t.proc = cmd.Process
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.proc = nil
		t.mu.Unlock()
	}()

	var (
		errTail = newTail(stderrTailSize)
		g       errgroup.Group
	)

	g.Go(func() error { return produceLogs(stdout, lines) })
	g.Go(func() error {
		return produceLogs(stderr, func(line []byte) {
			errTail.add(string(line))
			lines(line)
		})
	})

	// pipes must be drained before Wait closes them
	readErr := g.Wait()
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return &TransportError{ExitCode: exitCode(waitErr), Stderr: errTail.snapshot(), Err: ctx.Err()}
	}
	if waitErr != nil {
		return &TransportError{ExitCode: exitCode(waitErr), Stderr: errTail.snapshot(), Err: waitErr}
	}
	if readErr != nil {
		slog.Warn("reading yt-dlp output", slog.String("url", url), slog.Any("err", readErr))
	}

	return nil
}

// Cancel sends SIGTERM to the process group of the running download.
// yt-dlp spawns ffmpeg and other children, signalling only the parent would
// leave them behind.
func (t *YtDlpTransport) Cancel() error {
	t.mu.Lock()
	proc := t.proc
	t.mu.Unlock()

	return killGroup(proc)
}

func killGroup(proc *os.Process) error {
	if proc == nil {
		return ErrNotRunning
	}

	pgid, err := unix.Getpgid(proc.Pid)
	if err != nil {
		return err
	}
	return unix.Kill(-pgid, unix.SIGTERM)
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}
