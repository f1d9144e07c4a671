package rest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/vidfetch/vidfetch/server/archive"
	"github.com/vidfetch/vidfetch/server/archiver"
	"github.com/vidfetch/vidfetch/server/internal/extractor"
	"github.com/vidfetch/vidfetch/server/internal/formats"
	"github.com/vidfetch/vidfetch/server/internal/kv"
	"github.com/vidfetch/vidfetch/server/internal/pipeline"
	"github.com/vidfetch/vidfetch/server/internal/progress"
	"github.com/vidfetch/vidfetch/server/internal/queue"
	"github.com/vidfetch/vidfetch/server/internal/resolver"
	"github.com/vidfetch/vidfetch/server/updater"
)

// AppVersion is overridden at build time.
var AppVersion = "dev"

const (
	versionTimeout = 10 * time.Second
	updateTimeout  = 2 * time.Minute
)

var (
	ErrMissingURL     = errors.New("url is required")
	ErrNotFinished    = errors.New("download has not produced a file")
	ErrSessionBusy    = errors.New("session has an active download")
	ErrVersionTimeout = errors.New("requesting yt-dlp version took too long")
)

type Service struct {
	mdb      *kv.Store
	mq       *queue.MessageQueue
	bus      *progress.Bus
	pipeline *pipeline.Pipeline
	archiver *archiver.Archiver
	runner   extractor.Runner
}

func NewService(args *ContainerArgs) *Service {
	runner := args.Runner
	if runner == nil {
		runner = extractor.NewExecRunner(args.Pipeline.Config().Paths.DownloaderPath)
	}
	return &Service{
		mdb:      args.MDB,
		mq:       args.MQ,
		bus:      args.Bus,
		pipeline: args.Pipeline,
		archiver: args.Archiver,
		runner:   runner,
	}
}

// Formats inspects req.URL and rebuilds the option list of the session,
// creating one when req.SessionID is empty.
func (s *Service) Formats(ctx context.Context, req formatsRequest) (*formatsResponse, error) {
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return nil, ErrMissingURL
	}

	var (
		session *kv.Session
		err     error
	)
	if req.SessionID != "" {
		session, err = s.mdb.Session(req.SessionID)
		if err != nil {
			return nil, err
		}
		if session.Active() != "" {
			return nil, ErrSessionBusy
		}
	} else {
		session = s.mdb.NewSession()
	}

	in, err := s.pipeline.Inspect(ctx, url)
	if err != nil {
		session.Log().Error(err.Error())
		return nil, err
	}

	// files planned for another video must not be resumed by this one
	if prev := session.URL(); prev != "" && prev != url {
		removed := session.Registry().Sweep(s.pipeline.Fs())
		slog.Info("video changed, swept temporary files",
			slog.String("session", session.ID),
			slog.Int("removed", len(removed)),
		)
	}

	in.Options = session.Refresh(url, in.Meta)
	session.Log().Info(fmt.Sprintf("found %d quality options for %s", len(in.Options), url))

	return &formatsResponse{
		SessionID: session.ID,
		Video: videoInfo{
			ID:        in.Meta.ID,
			Title:     in.Meta.CleanTitle(),
			Uploader:  in.Meta.Uploader,
			Duration:  in.Meta.Length(),
			Thumbnail: in.Meta.Thumbnail,
		},
		Inspection: in,
	}, nil
}

// Download resolves, plans and enqueues a download for the session. A change
// of kind or format sweeps the files planned for the previous selection.
func (s *Service) Download(ctx context.Context, req downloadRequest) (*downloadResponse, error) {
	session, err := s.mdb.Session(req.SessionID)
	if err != nil {
		return nil, err
	}

	kind, err := resolver.ParseKind(req.Kind)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	if err := session.Begin(id); err != nil {
		return nil, ErrSessionBusy
	}

	res, err := s.enqueue(session, id, kind, req.FormatID)
	if err != nil {
		session.End(id)
		return nil, err
	}
	return res, nil
}

func (s *Service) enqueue(session *kv.Session, id string, kind resolver.Kind, formatID string) (*downloadResponse, error) {
	if session.Metadata() == nil {
		return nil, pipeline.ErrNoMetadata
	}
	if formatID != "" {
		if _, ok := formats.Find(session.Formats(), formatID); !ok {
			return nil, fmt.Errorf("%w: %s", pipeline.ErrUnknownFormat, formatID)
		}
	}

	if session.Select(kind, formatID) {
		removed := session.Registry().Sweep(s.pipeline.Fs())
		slog.Info("selection changed, swept temporary files",
			slog.String("session", session.ID),
			slog.Int("removed", len(removed)),
		)
	}

	meta := session.Metadata()
	prep, err := s.pipeline.Prepare(pipeline.PrepareInput{
		URL:      session.URL(),
		Meta:     meta,
		Options:  session.Formats(),
		Kind:     kind,
		FormatID: formatID,
		Registry: session.Registry(),
	})
	if err != nil {
		return nil, err
	}
	for _, w := range prep.Warnings {
		session.Log().Warning(w)
	}

	d := &kv.Download{
		ID:           id,
		SessionID:    session.ID,
		Request:      prep.Request,
		Title:        meta.CleanTitle(),
		DisplayName:  prep.DisplayName,
		Orchestrator: s.pipeline.NewOrchestrator(session.Registry(), s.bus.Sink(id), session.Log()),
		CreatedAt:    time.Now(),
	}
	s.mdb.Set(d)

	job := queue.JobFunc{ID: id, Fn: func(ctx context.Context) { s.run(ctx, session, d) }}
	if err := s.mq.Publish(job); err != nil {
		s.mdb.Delete(id)
		s.bus.Forget(id)
		return nil, err
	}

	session.Log().Info(fmt.Sprintf("queued %s as %s", prep.DisplayName, prep.Request.Format))

	return &downloadResponse{
		DownloadID:  id,
		DisplayName: prep.DisplayName,
		Warnings:    prep.Warnings,
	}, nil
}

func (s *Service) run(ctx context.Context, session *kv.Session, d *kv.Download) {
	defer session.End(d.ID)

	out := d.Orchestrator.Run(ctx, d.Request)

	if out.Success {
		session.Log().Info(fmt.Sprintf("saved %s (%s)", out.Path, humanize.Bytes(uint64(out.Size))))
	}

	formatID := ""
	if d.Request.Selected != nil {
		formatID = d.Request.Selected.FormatID
	}
	s.archiver.Publish(&archive.Entity{
		Title:    d.Title,
		Source:   d.Request.URL,
		Kind:     string(d.Request.Kind),
		FormatID: formatID,
		Path:     out.Path,
		Size:     out.Size,
		Success:  out.Success,
		Reason:   out.Reason,
	})
}

func (s *Service) Status(id string) (*statusResponse, error) {
	d, err := s.mdb.Get(id)
	if err != nil {
		return nil, err
	}

	res := &statusResponse{DownloadSnapshot: d.Snapshot()}
	if e, ok := s.bus.Last(id); ok {
		res.Last = &e
	}
	if o := res.Outcome; o != nil && o.Success {
		res.SizeHuman = humanize.Bytes(uint64(o.Size))
	}
	return res, nil
}

// Running lists every known download, oldest first.
func (s *Service) Running(ctx context.Context) ([]kv.DownloadSnapshot, error) {
	select {
	case <-ctx.Done():
		return nil, context.Canceled
	default:
		return s.mdb.All(), nil
	}
}

func (s *Service) Cancel(id string) error {
	d, err := s.mdb.Get(id)
	if err != nil {
		return err
	}
	return d.Orchestrator.Cancel()
}

// File returns the artifact path and the name to serve it under.
func (s *Service) File(id string) (string, string, error) {
	d, err := s.mdb.Get(id)
	if err != nil {
		return "", "", err
	}

	out, ok := d.Orchestrator.Outcome()
	if !ok || !out.Success {
		return "", "", ErrNotFinished
	}
	return out.Path, d.DisplayName, nil
}

func (s *Service) Cleanup(sessionID string) ([]string, error) {
	session, err := s.mdb.Session(sessionID)
	if err != nil {
		return nil, err
	}
	if session.Active() != "" {
		return nil, ErrSessionBusy
	}

	removed := session.Registry().Sweep(s.pipeline.Fs())
	session.Log().Info(fmt.Sprintf("removed %d temporary files", len(removed)))

	return removed, nil
}

func (s *Service) Logs(sessionID string) ([]string, error) {
	session, err := s.mdb.Session(sessionID)
	if err != nil {
		return nil, err
	}
	return session.Log().Lines(), nil
}

func (s *Service) DeleteSession(sessionID string) ([]string, error) {
	session, err := s.mdb.Session(sessionID)
	if err != nil {
		return nil, err
	}
	if session.Active() != "" {
		return nil, ErrSessionBusy
	}

	for _, id := range s.mdb.SessionDownloads(sessionID) {
		s.bus.Forget(id)
		s.mdb.Delete(id)
	}
	return s.mdb.DeleteSession(sessionID), nil
}

// Subscribe streams the progress events of a download to fn.
func (s *Service) Subscribe(id string, fn func(progress.Event)) (*kv.Download, func(), error) {
	d, err := s.mdb.Get(id)
	if err != nil {
		return nil, nil, err
	}

	unsub, err := s.bus.Subscribe(id, fn)
	if err != nil {
		return nil, nil, err
	}
	return d, unsub, nil
}

func (s *Service) GetVersion(ctx context.Context) (*versionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	out, err := s.runner.Run(ctx, "--version")
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrVersionTimeout
		}
		return nil, err
	}

	res := &versionResponse{
		App:        AppVersion,
		Downloader: firstLine(out),
	}
	if v, err := s.pipeline.Transcoder().Version(ctx); err == nil {
		res.Transcoder = v
	}
	return res, nil
}

// Update runs the self update of yt-dlp. Running downloads keep the binary
// they started with.
func (s *Service) Update(ctx context.Context) (*updateResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()

	out, err := updater.UpdateExecutable(ctx, s.runner)
	if err != nil {
		return nil, err
	}
	return &updateResponse{Output: out}, nil
}

func firstLine(b []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(b))
	if sc.Scan() {
		return strings.TrimSpace(sc.Text())
	}
	return ""
}
