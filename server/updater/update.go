package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vidfetch/vidfetch/server/internal/extractor"
)

var ErrUpdateFailed = errors.New("downloader self update failed")

// UpdateExecutable runs the builtin self update of yt-dlp and returns its
// last output line.
func UpdateExecutable(ctx context.Context, runner extractor.Runner) (string, error) {
	out, err := runner.Run(ctx, "-U")
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %s", ErrUpdateFailed, strings.TrimSpace(err.Error()))
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])

	slog.Info("downloader updated", slog.String("output", last))

	return last, nil
}
