package downloaders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidfetch/vidfetch/server/internal/downloaders/mocks"
	"github.com/vidfetch/vidfetch/server/internal/planner"
	"github.com/vidfetch/vidfetch/server/internal/progress"
	"go.uber.org/mock/gomock"
)

const (
	scratch = "/scratch"
	videoID = "abc123def45"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recorder) Emit(e progress.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) kinds() []progress.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()

	kinds := make([]progress.Kind, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind
	}
	return kinds
}

func writeFile(t *testing.T, fsys afero.Fs, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fsys, path, []byte("media"), 0o644))
	mtime := now.Add(-age)
	require.NoError(t, fsys.Chtimes(path, mtime, mtime))
}

func newLocator(fsys afero.Fs) *Locator {
	l := NewLocator(fsys, scratch, DefaultRecencyWindow)
	l.now = func() time.Time { return now }
	return l
}

// lines replays yt-dlp output through the consumer callback.
func emitting(lines ...string) func(context.Context, string, []string, func([]byte)) error {
	return func(_ context.Context, _ string, _ []string, fn func([]byte)) error {
		for _, l := range lines {
			fn([]byte(l))
		}
		return nil
	}
}

func TestOrchestrator_ScenarioC(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)
	fsys := afero.NewMemMapFs()

	writeFile(t, fsys, "/scratch/ytb_video_"+videoID+".mp4", 30*time.Second)
	writeFile(t, fsys, "/scratch/other.mp4", 10*time.Second)

	transport.EXPECT().
		Run(gomock.Any(), "https://youtu.be/"+videoID, gomock.Any(), gomock.Any()).
		DoAndReturn(emitting(`{"status":"finished","filename":"/scratch/missing.mp4"}`))

	rec := &recorder{}
	o := NewOrchestrator(OrchestratorConfig{
		Transport: transport,
		Locator:   newLocator(fsys),
		Sink:      rec,
	})

	out := o.Run(context.Background(), Request{
		URL:     "https://youtu.be/" + videoID,
		VideoID: videoID,
		Kind:    "video",
		Format:  "22",
	})

	require.True(t, out.Success, out.Reason)
	assert.Equal(t, "/scratch/ytb_video_"+videoID+".mp4", out.Path)
	assert.EqualValues(t, 5, out.Size)
	assert.Equal(t, StateFinished, o.State())
	assert.Equal(t, []progress.Kind{progress.PostProcessing, progress.Finished}, rec.kinds())
}

func TestOrchestrator_ScenarioD(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)
	fsys := afero.NewMemMapFs()

	writeFile(t, fsys, "/scratch/stale.mp4", 20*time.Minute)
	writeFile(t, fsys, "/scratch/notes.txt", time.Second)

	transport.EXPECT().
		Run(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(emitting(`{"status":"finished","filename":"/scratch/missing.mp4"}`))

	rec := &recorder{}
	o := NewOrchestrator(OrchestratorConfig{
		Transport: transport,
		Locator:   newLocator(fsys),
		Sink:      rec,
	})

	out := o.Run(context.Background(), Request{URL: "https://youtu.be/" + videoID, VideoID: videoID})

	assert.False(t, out.Success)
	assert.ErrorIs(t, out.Err, ErrArtifactNotFound)
	assert.Equal(t, ErrArtifactNotFound.Error(), out.Reason)
	assert.Equal(t, StateFailed, o.State())
	assert.Equal(t, progress.Failed, rec.kinds()[len(rec.kinds())-1])
}

func TestOrchestrator_TransportFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)

	transport.EXPECT().
		Run(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&TransportError{
			ExitCode: 1,
			Stderr:   []string{"WARNING: slow", "ERROR: [youtube] x: Video unavailable"},
		}).
		Times(1)

	o := NewOrchestrator(OrchestratorConfig{
		Transport: transport,
		Locator:   newLocator(afero.NewMemMapFs()),
	})
	out := o.Run(context.Background(), Request{URL: "https://youtu.be/x"})

	assert.False(t, out.Success)
	assert.Equal(t, "[youtube] x: Video unavailable", out.Reason)
	assert.NotErrorIs(t, out.Err, ErrArtifactNotFound)

	var te *TransportError
	require.ErrorAs(t, out.Err, &te)
	assert.Equal(t, 1, te.ExitCode)

	// terminal: no retry of the whole download
	again := o.Run(context.Background(), Request{URL: "https://youtu.be/x"})
	assert.False(t, again.Success)
	assert.Equal(t, StateFailed, o.State())
}

func TestOrchestrator_ReportedFilenameWins(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)
	fsys := afero.NewMemMapFs()

	writeFile(t, fsys, "/scratch/reported.mp3", time.Hour)
	writeFile(t, fsys, "/scratch/newer_"+videoID+".mp3", time.Second)

	transport.EXPECT().
		Run(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(emitting(
			`{"status":"downloading","downloaded_bytes":50,"total_bytes":100,"speed":10.5,"eta":5,"filename":"/scratch/reported.webm"}`,
			`{"filepath":"/scratch/reported.mp3"}`,
		))

	registry := planner.NewRegistry()
	o := NewOrchestrator(OrchestratorConfig{
		Transport: transport,
		Locator:   newLocator(fsys),
		Registry:  registry,
	})
	out := o.Run(context.Background(), Request{URL: "u", VideoID: videoID, AudioOnly: true})

	require.True(t, out.Success)
	assert.Equal(t, "/scratch/reported.mp3", out.Path)
	assert.Contains(t, registry.Paths(), "/scratch/reported.mp3")
}

func TestOrchestrator_PassesRequestArgs(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/scratch/out.mp4", time.Second)

	req := Request{
		URL:            "https://www.facebook.com/reel/1",
		Format:         "best[height<=720]/best",
		OutputTemplate: "/scratch/out.mp4",
		Network:        NetworkOptions{Retries: 10, ConcurrentFragments: 1},
	}

	transport.EXPECT().
		Run(gomock.Any(), req.URL, req.Args(), gomock.Any()).
		Return(nil)

	o := NewOrchestrator(OrchestratorConfig{Transport: transport, Locator: newLocator(fsys)})
	out := o.Run(context.Background(), req)

	assert.True(t, out.Success)
}

func TestOrchestrator_RecoversPanic(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)
	transport.EXPECT().
		Run(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, []string, func([]byte)) error {
			panic("boom")
		})

	o := NewOrchestrator(OrchestratorConfig{Transport: transport, Locator: newLocator(afero.NewMemMapFs())})
	out := o.Run(context.Background(), Request{URL: "u"})

	assert.False(t, out.Success)
	assert.Contains(t, out.Reason, "boom")
	assert.Equal(t, StateFailed, o.State())
}

func TestOrchestrator_Cancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)

	started := make(chan struct{})
	transport.EXPECT().
		Run(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, _ []string, _ func([]byte)) error {
			close(started)
			<-ctx.Done()
			return &TransportError{ExitCode: -1, Err: ctx.Err()}
		})

	o := NewOrchestrator(OrchestratorConfig{Transport: transport, Locator: newLocator(afero.NewMemMapFs())})
	assert.ErrorIs(t, o.Cancel(), ErrNotRunning)

	done := make(chan Outcome, 1)
	go func() { done <- o.Run(context.Background(), Request{URL: "u"}) }()

	<-started
	assert.Equal(t, StateRunning, o.State())

	second := o.Run(context.Background(), Request{URL: "u"})
	assert.ErrorIs(t, second.Err, ErrAlreadyRunning)

	require.NoError(t, o.Cancel())

	select {
	case out := <-done:
		assert.False(t, out.Success)
		assert.True(t, errors.Is(out.Err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("cancel did not stop the download")
	}
}
