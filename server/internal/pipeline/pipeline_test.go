package pipeline

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidfetch/vidfetch/server/config"
	"github.com/vidfetch/vidfetch/server/internal/extractor"
	"github.com/vidfetch/vidfetch/server/internal/extractor/mocks"
	"github.com/vidfetch/vidfetch/server/internal/planner"
	"github.com/vidfetch/vidfetch/server/internal/resolver"
	"github.com/vidfetch/vidfetch/server/internal/transcoder"
	"go.uber.org/mock/gomock"
)

const videoJSON = `{
	"id": "abc123def45",
	"title": "Clip",
	"duration": 300,
	"formats": [
		{"format_id": "18", "ext": "mp4", "vcodec": "avc1", "acodec": "mp4a", "height": 360, "filesize": 1000},
		{"format_id": "137", "ext": "mp4", "vcodec": "avc1", "acodec": "none", "height": 1080, "filesize": 9000},
		{"format_id": "140", "ext": "m4a", "vcodec": "none", "acodec": "mp4a"}
	]
}`

func newPipeline(t *testing.T, json string, tc *transcoder.Transcoder) *Pipeline {
	t.Helper()

	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	runner.EXPECT().Run(gomock.Any(), gomock.Any()).Return([]byte(json), nil).AnyTimes()

	conf := config.Default()
	conf.Paths.DownloadPath = "/dl"

	return New(Args{
		Config:     conf,
		Fs:         afero.NewMemMapFs(),
		Fetcher:    extractor.NewFetcher(runner, slog.New(slog.NewTextHandler(io.Discard, nil))),
		Transcoder: tc,
	})
}

var ffmpeg = &transcoder.Transcoder{Name: "ffmpeg", Path: "/usr/bin/ffmpeg"}

func TestInspect(t *testing.T) {
	p := newPipeline(t, videoJSON, ffmpeg)

	in, err := p.Inspect(context.Background(), "https://www.youtube.com/watch?v=abc123def45")
	require.NoError(t, err)

	assert.Equal(t, planner.PlatformYouTube, in.Platform)
	assert.Equal(t, planner.ContentVideo, in.ContentType)
	assert.False(t, in.ShortForm)
	assert.True(t, in.TranscoderAvailable)
	require.Len(t, in.Options, 2)
	assert.Equal(t, "18", in.Options[0].FormatID, "audio-inclusive options first")
	assert.Equal(t, "137", in.Options[1].FormatID)
}

func TestPrepare_VideoOnlyWithTranscoder(t *testing.T) {
	p := newPipeline(t, videoJSON, ffmpeg)
	url := "https://www.youtube.com/watch?v=abc123def45"

	in, err := p.Inspect(context.Background(), url)
	require.NoError(t, err)

	reg := planner.NewRegistry()
	prep, err := p.Prepare(PrepareInput{
		URL:      url,
		Meta:     in.Meta,
		Options:  in.Options,
		Kind:     resolver.KindVideo,
		FormatID: "137",
		Registry: reg,
	})
	require.NoError(t, err)

	assert.Equal(t, "137+bestaudio/best", prep.Request.Format)
	assert.Equal(t, "mp4", prep.Request.Transcode.MergeOutputFormat)
	assert.Equal(t, "/usr/bin/ffmpeg", prep.Request.Transcode.FFmpegLocation)
	assert.Equal(t, "/dl/ytb_video_abc123def45_1080p.mp4", prep.Path)
	assert.Equal(t, "ytb_video_abc123def45_1080p.mp4", prep.DisplayName)
	assert.Equal(t, "abc123def45", prep.Request.VideoID)
	assert.False(t, prep.Request.AudioOnly)
	assert.Equal(t, []string{prep.Path}, reg.Paths())

	exists, err := afero.DirExists(p.Fs(), "/dl")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPrepare_ProgressivePassesTranscoderLocation(t *testing.T) {
	p := newPipeline(t, videoJSON, ffmpeg)
	url := "https://www.youtube.com/watch?v=abc123def45"

	in, err := p.Inspect(context.Background(), url)
	require.NoError(t, err)

	prep, err := p.Prepare(PrepareInput{
		URL:      url,
		Meta:     in.Meta,
		Options:  in.Options,
		Kind:     resolver.KindVideo,
		FormatID: "18",
		Registry: planner.NewRegistry(),
	})
	require.NoError(t, err)

	args := prep.Request.Args()
	i := slices.Index(args, "--ffmpeg-location")
	require.GreaterOrEqual(t, i, 0, "transcoder location passed")
	assert.Equal(t, "/usr/bin/ffmpeg", args[i+1])
}

func TestPrepare_AudioWithoutTranscoder(t *testing.T) {
	p := newPipeline(t, videoJSON, &transcoder.Transcoder{Name: "ffmpeg"})
	url := "https://youtu.be/abc123def45"

	in, err := p.Inspect(context.Background(), url)
	require.NoError(t, err)

	prep, err := p.Prepare(PrepareInput{
		URL:      url,
		Meta:     in.Meta,
		Options:  in.Options,
		Kind:     resolver.KindAudio,
		Registry: planner.NewRegistry(),
	})
	require.NoError(t, err)

	assert.Equal(t, resolver.BestAudioSelector, prep.Request.Format)
	assert.True(t, prep.Request.Transcode.IsZero())
	assert.Len(t, prep.Warnings, 1)
	assert.Equal(t, "/dl/ytb_video_abc123def45_audio", prep.Path)
	assert.Equal(t, "ytb_video_abc123def45_audio.mp3", prep.DisplayName)
	assert.True(t, prep.Request.AudioOnly)
}

func TestPrepare_Errors(t *testing.T) {
	p := newPipeline(t, videoJSON, ffmpeg)

	_, err := p.Prepare(PrepareInput{URL: "https://youtu.be/x"})
	assert.ErrorIs(t, err, ErrNoMetadata)

	_, err = p.Prepare(PrepareInput{
		URL:      "https://youtu.be/x",
		Meta:     &extractor.Metadata{ID: "x"},
		FormatID: "999",
	})
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestPrepare_Overrides(t *testing.T) {
	p := newPipeline(t, videoJSON, ffmpeg)
	reg := planner.NewRegistry()

	prep, err := p.Prepare(PrepareInput{
		URL:      "https://youtu.be/abc123def45",
		Meta:     &extractor.Metadata{ID: "abc123def45"},
		Kind:     resolver.KindVideo,
		Registry: reg,
		Format:   "worst",
		Template: "/custom/out/%(title)s.%(ext)s",
	})
	require.NoError(t, err)

	assert.Equal(t, "worst", prep.Request.Format)
	assert.Equal(t, "/custom/out/%(title)s.%(ext)s", prep.Request.OutputTemplate)
	assert.Zero(t, reg.Len(), "templates are not tracked")

	exists, err := afero.DirExists(p.Fs(), "/custom/out")
	require.NoError(t, err)
	assert.True(t, exists)
}
