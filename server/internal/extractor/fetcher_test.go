package extractor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidfetch/vidfetch/server/internal/extractor/mocks"
	"go.uber.org/mock/gomock"
)

const sampleJSON = `{
	"id": "abc123def45",
	"title": "1.2K views | Clip title | Some Page",
	"uploader": "someone",
	"duration": 42,
	"thumbnail": "https://example.com/t.jpg",
	"formats": [
		{"format_id": "18", "ext": "mp4", "vcodec": "avc1", "acodec": "mp4a", "height": 360, "width": 640, "filesize": 1048576},
		{"format_id": "140", "ext": "m4a", "vcodec": "none", "acodec": "mp4a"}
	]
}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestFetcher(r Runner) (*Fetcher, *[]time.Duration) {
	f := NewFetcher(r, testLogger())
	slept := []time.Duration{}
	f.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return f, &slept
}

func TestFetch_DecodesMetadata(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	runner.EXPECT().
		Run(gomock.Any(), gomock.Any()).
		Return([]byte(sampleJSON), nil)

	f, _ := newTestFetcher(runner)
	meta, err := f.Fetch(context.Background(), "https://youtu.be/abc123def45", Options{})

	require.NoError(t, err)
	assert.Equal(t, "abc123def45", meta.ID)
	assert.Equal(t, "Clip title", meta.CleanTitle())
	assert.Equal(t, "0:42", meta.Length())
	assert.Equal(t, "https://youtu.be/abc123def45", meta.WebpageURL, "webpage url defaults to input")
	require.Len(t, meta.Formats, 2)
	assert.False(t, meta.Formats[1].HasVideo())
	assert.EqualValues(t, 1048576, meta.Formats[0].Size())
}

func TestFetch_RetriesTransientThenSucceeds(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	gomock.InOrder(
		runner.EXPECT().Run(gomock.Any(), gomock.Any()).
			Return(nil, errors.New("ERROR: [youtube] x: Cannot parse data; please report this issue")),
		runner.EXPECT().Run(gomock.Any(), gomock.Any()).
			Return([]byte(sampleJSON), nil),
	)

	f, slept := newTestFetcher(runner)
	meta, err := f.Fetch(context.Background(), "https://youtu.be/abc123def45", Options{})

	require.NoError(t, err)
	assert.Equal(t, "abc123def45", meta.ID)
	assert.Equal(t, []time.Duration{DefaultBackoffStep}, *slept)
}

func TestFetch_ExhaustsRetries(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	runner.EXPECT().Run(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("Cannot parse data")).
		Times(4)

	f, slept := newTestFetcher(runner)
	_, err := f.Fetch(context.Background(), "https://youtu.be/x", Options{
		Retry: RetryPolicy{MaxAttempts: 4},
	})

	var failure *ExtractionFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 4, failure.Attempts)
	assert.Contains(t, failure.Error(), "Cannot parse data")
	assert.True(t, errors.Is(err, ErrTransientExtraction))
	// linear backoff, capped
	assert.Equal(t, []time.Duration{1200 * time.Millisecond, 2400 * time.Millisecond, 3 * time.Second}, *slept)
}

func TestFetch_NonTransientFailsImmediately(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	runner.EXPECT().Run(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("ERROR: Unsupported URL: https://example.com")).
		Times(1)

	f, slept := newTestFetcher(runner)
	_, err := f.Fetch(context.Background(), "https://example.com", Options{})

	var failure *ExtractionFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 1, failure.Attempts)
	assert.Contains(t, err.Error(), "Unsupported URL")
	assert.Empty(t, *slept)
}

func TestFetch_AccessBlockedIsDistinct(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	runner.EXPECT().Run(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("ERROR: unable to download video data: HTTP Error 403: Forbidden")).
		Times(1)

	f, _ := newTestFetcher(runner)
	_, err := f.Fetch(context.Background(), "https://youtu.be/x", Options{
		Personas: []Persona{{Name: "mobile", PlayerClients: []string{"android"}}},
	})

	require.Error(t, err)
	assert.True(t, IsAccessBlocked(err))
	assert.False(t, errors.Is(err, ErrTransientExtraction))
	assert.Contains(t, err.Error(), "mobile")
}

func TestFetchWithFallback_SwitchesPersonaOnBlock(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)

	var seen [][]string
	runner.EXPECT().Run(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, args ...string) ([]byte, error) {
			seen = append(seen, args)
			if len(seen) == 1 {
				return nil, errors.New("Sign in to confirm you're not a bot")
			}
			return []byte(sampleJSON), nil
		}).
		Times(2)

	f, _ := newTestFetcher(runner)
	meta, err := f.FetchWithFallback(context.Background(), "https://youtu.be/x", Options{
		Personas: []Persona{
			{Name: "mobile", PlayerClients: []string{"android"}},
			{Name: "desktop", PlayerClients: []string{"web"}},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "abc123def45", meta.ID)
	require.Len(t, seen, 2)
	assert.Contains(t, seen[0], "youtube:player_client=android")
	assert.Contains(t, seen[1], "youtube:player_client=web")
}

func TestFetchWithFallback_StopsOnOtherErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	runner.EXPECT().Run(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("Video unavailable")).
		Times(1)

	f, _ := newTestFetcher(runner)
	_, err := f.FetchWithFallback(context.Background(), "https://youtu.be/x", Options{
		Personas: []Persona{{Name: "a"}, {Name: "b"}},
	})

	require.Error(t, err)
	assert.False(t, IsAccessBlocked(err))
}

func TestOptionsArgs(t *testing.T) {
	opts := Options{
		CookiesPath:      "/tmp/cookies.txt",
		Proxy:            "http://127.0.0.1:8888",
		GeoBypassCountry: "VN",
		ForceIPv4:        true,
		Headers:          map[string]string{"Referer": "https://www.youtube.com/"},
	}
	p := &Persona{
		Name:          "embedded",
		PlayerClients: []string{"android", "web"},
		Headers:       map[string]string{"User-Agent": "ua"},
	}

	args := opts.args("https://youtu.be/x", p)

	assert.Equal(t, "https://youtu.be/x", args[0])
	assert.Contains(t, args, "-J")
	assert.Contains(t, args, "--force-ipv4")
	assert.Contains(t, args, "youtube:player_client=android,web")
	assert.Contains(t, args, "Referer:https://www.youtube.com/")
	assert.Contains(t, args, "User-Agent:ua")
	assert.Contains(t, args, "/tmp/cookies.txt")
	assert.NotContains(t, args, "--no-check-certificates")
}

func TestIsShortForm(t *testing.T) {
	h, w := 1920, 1080
	portrait := Format{Height: &h, Width: &w}
	landscape := Format{Height: &w, Width: &h}

	tests := []struct {
		name string
		meta Metadata
		want bool
	}{
		{"short portrait", Metadata{Duration: 30, Formats: []Format{landscape, portrait}}, true},
		{"boundary duration", Metadata{Duration: 60, Formats: []Format{portrait}}, true},
		{"too long", Metadata{Duration: 61, Formats: []Format{portrait}}, false},
		{"landscape only", Metadata{Duration: 30, Formats: []Format{landscape}}, false},
		{"unknown duration", Metadata{Formats: []Format{portrait}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.meta.IsShortForm())
		})
	}
}
