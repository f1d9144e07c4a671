package downloaders

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidfetch/vidfetch/server/internal/planner"
)

func TestLocate_ChainOrder(t *testing.T) {
	fsys := afero.NewMemMapFs()
	l := newLocator(fsys)

	registry := planner.NewRegistry()
	registry.Track("/scratch/planned_missing.mp4")
	registry.Track("/scratch/planned.mp4")

	writeFile(t, fsys, "/scratch/planned.mp4", time.Minute)
	writeFile(t, fsys, "/scratch/recent.mp4", time.Second)

	// reported filename missing, tracked path exists: tracked wins over the
	// more recent scan result
	got, err := l.Locate(LocateInput{Reported: "/scratch/gone.mp4", Registry: registry})
	require.NoError(t, err)
	assert.Equal(t, "/scratch/planned.mp4", got)

	// reported filename exists: first step wins
	writeFile(t, fsys, "/scratch/reported.webm", time.Hour)
	got, err = l.Locate(LocateInput{Reported: "/scratch/reported.webm", Registry: registry})
	require.NoError(t, err)
	assert.Equal(t, "/scratch/reported.webm", got)

	// nothing tracked: directory scan
	got, err = l.Locate(LocateInput{Registry: planner.NewRegistry()})
	require.NoError(t, err)
	assert.Equal(t, "/scratch/recent.mp4", got)
}

func TestLocate_AudioPrefersVideoID(t *testing.T) {
	fsys := afero.NewMemMapFs()
	l := newLocator(fsys)

	writeFile(t, fsys, "/scratch/someone_else.mp3", time.Second)
	writeFile(t, fsys, "/scratch/ytb_video_"+videoID+"_audio.mp3", 2*time.Minute)
	writeFile(t, fsys, "/scratch/"+videoID+".mp4", time.Second)

	got, err := l.Locate(LocateInput{AudioOnly: true, VideoID: videoID})
	require.NoError(t, err)
	assert.Equal(t, "/scratch/ytb_video_"+videoID+"_audio.mp3", got)
}

func TestLocate_AudioNewestWithoutID(t *testing.T) {
	fsys := afero.NewMemMapFs()
	l := newLocator(fsys)

	writeFile(t, fsys, "/scratch/old.mp3", 4*time.Minute)
	writeFile(t, fsys, "/scratch/new.opus", time.Minute)

	got, err := l.Locate(LocateInput{AudioOnly: true, VideoID: videoID})
	require.NoError(t, err)
	assert.Equal(t, "/scratch/new.opus", got)
}

func TestLocate_ExtensionOrder(t *testing.T) {
	fsys := afero.NewMemMapFs()
	l := newLocator(fsys)

	writeFile(t, fsys, "/scratch/a.webm", time.Second)
	writeFile(t, fsys, "/scratch/b.m4a", 2*time.Second)

	got, err := l.Locate(LocateInput{})
	require.NoError(t, err)
	assert.Equal(t, "/scratch/b.m4a", got, "m4a comes before webm in the video set")
}

func TestLocate_RecencyWindow(t *testing.T) {
	fsys := afero.NewMemMapFs()
	l := newLocator(fsys)

	writeFile(t, fsys, "/scratch/old.mp4", 301*time.Second)

	_, err := l.Locate(LocateInput{})
	assert.ErrorIs(t, err, ErrArtifactNotFound)

	l.Window = MaxRecencyWindow
	got, err := l.Locate(LocateInput{})
	require.NoError(t, err)
	assert.Equal(t, "/scratch/old.mp4", got)
}

func TestLocate_TieBreakBySimilarity(t *testing.T) {
	fsys := afero.NewMemMapFs()
	l := newLocator(fsys)

	writeFile(t, fsys, "/scratch/zzzzzz.mp4", 5*time.Second)
	writeFile(t, fsys, "/scratch/abc123.mp4", 5*time.Second)

	got, err := l.Locate(LocateInput{VideoID: videoID})
	require.NoError(t, err)
	assert.Equal(t, "/scratch/abc123.mp4", got)
}
