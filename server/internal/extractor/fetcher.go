// Package extractor wraps yt-dlp metadata extraction: it runs the binary in
// JSON mode, decodes the info dict and applies a bounded retry policy to
// transient parse failures.
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

type Fetcher struct {
	runner Runner
	group  singleflight.Group
	logger *slog.Logger

	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewFetcher(runner Runner, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		runner: runner,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Fetch retrieves metadata using the first configured persona.
func (f *Fetcher) Fetch(ctx context.Context, url string, opts Options) (*Metadata, error) {
	var p *Persona
	if len(opts.Personas) > 0 {
		p = &opts.Personas[0]
	}
	return f.fetch(ctx, url, opts, p)
}

// FetchWithFallback tries each persona in configuration order, moving on
// only when the previous one was blocked. Any other failure is returned as is.
func (f *Fetcher) FetchWithFallback(ctx context.Context, url string, opts Options) (*Metadata, error) {
	if len(opts.Personas) <= 1 {
		return f.Fetch(ctx, url, opts)
	}

	var lastErr error
	for i := range opts.Personas {
		p := &opts.Personas[i]

		meta, err := f.fetch(ctx, url, opts, p)
		if err == nil {
			return meta, nil
		}
		if !IsAccessBlocked(err) {
			return nil, err
		}

		f.logger.Warn("persona blocked, trying next",
			slog.String("url", url),
			slog.String("persona", p.Name),
		)
		lastErr = err
	}

	return nil, lastErr
}

func (f *Fetcher) fetch(ctx context.Context, url string, opts Options, p *Persona) (*Metadata, error) {
	key := url
	if p != nil {
		key = p.Name + "|" + url
	}

	v, err, _ := f.group.Do(key, func() (any, error) {
		return f.fetchWithRetry(ctx, url, opts, p)
	})
	if err != nil {
		return nil, err
	}

	return v.(*Metadata), nil
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, url string, opts Options, p *Persona) (*Metadata, error) {
	var (
		policy  = opts.Retry.withDefaults()
		args    = opts.args(url, p)
		persona string
		lastErr error
		attempt int
	)
	if p != nil {
		persona = p.Name
	}

	for attempt = 1; attempt <= policy.MaxAttempts; attempt++ {
		f.logger.Info("retrieving metadata",
			slog.String("url", url),
			slog.String("persona", persona),
			slog.Int("attempt", attempt),
		)

		out, err := f.runner.Run(ctx, args...)
		if err == nil {
			meta, err := decode(out, url)
			if err != nil {
				return nil, &ExtractionFailure{URL: url, Attempts: attempt, Err: err}
			}
			return meta, nil
		}

		if ctx.Err() != nil {
			return nil, &ExtractionFailure{URL: url, Attempts: attempt, Err: ctx.Err()}
		}

		lastErr = classify(persona, err.Error())
		if !policy.Retryable(lastErr) || attempt == policy.MaxAttempts {
			break
		}

		f.logger.Warn("metadata attempt failed, retrying",
			slog.String("url", url),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", policy.MaxAttempts),
			slog.Any("err", lastErr),
		)

		if err := f.sleep(ctx, policy.Backoff(attempt)); err != nil {
			return nil, &ExtractionFailure{URL: url, Attempts: attempt, Err: err}
		}
	}

	return nil, &ExtractionFailure{
		URL:      url,
		Attempts: min(attempt, policy.MaxAttempts),
		Err:      lastErr,
	}
}

func decode(out []byte, url string) (*Metadata, error) {
	var meta Metadata
	if err := json.Unmarshal(out, &meta); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	if meta.WebpageURL == "" {
		meta.WebpageURL = url
	}
	return &meta, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
