package main

import (
	"errors"

	"github.com/vidfetch/vidfetch/server/internal/downloaders"
	"github.com/vidfetch/vidfetch/server/internal/extractor"
)

const (
	exitOK = iota
	// the download ran but produced no usable file
	exitFailed
	// yt-dlp reported an error
	exitTransport
	exitUnexpected
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var (
		ee *exitError
		te *downloaders.TransportError
		ef *extractor.ExtractionFailure
		ab *extractor.AccessBlockedError
	)

	switch {
	case errors.As(err, &ee):
		return ee.code
	case errors.As(err, &te), errors.As(err, &ef), errors.As(err, &ab):
		return exitTransport
	}
	return exitUnexpected
}

// outcomeError maps a failed download onto its exit code.
func outcomeError(out downloaders.Outcome) error {
	err := out.Err
	if err == nil {
		err = errors.New(out.Reason)
	}

	var te *downloaders.TransportError
	if errors.As(err, &te) {
		return &exitError{code: exitTransport, err: err}
	}
	return &exitError{code: exitFailed, err: err}
}
