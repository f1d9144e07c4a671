// Package pipeline chains the extraction adapter, the normalizer, the
// resolver and the path planner into the two steps every front end needs:
// inspecting a URL and preparing a download request for it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"
	"github.com/vidfetch/vidfetch/server/config"
	"github.com/vidfetch/vidfetch/server/internal/downloaders"
	"github.com/vidfetch/vidfetch/server/internal/extractor"
	"github.com/vidfetch/vidfetch/server/internal/formats"
	"github.com/vidfetch/vidfetch/server/internal/planner"
	"github.com/vidfetch/vidfetch/server/internal/progress"
	"github.com/vidfetch/vidfetch/server/internal/resolver"
	"github.com/vidfetch/vidfetch/server/internal/transcoder"
)

var (
	ErrNoMetadata    = errors.New("no video inspected yet")
	ErrUnknownFormat = errors.New("format not among the available options")
)

type Pipeline struct {
	conf         *config.Config
	fs           afero.Fs
	fetcher      *extractor.Fetcher
	transcoders  *transcoder.Cached
	transcoder   *transcoder.Transcoder
	newTransport func() downloaders.Transport
}

type Args struct {
	Config  *config.Config
	Fs      afero.Fs
	Fetcher *extractor.Fetcher
	// Transcoder skips the PATH lookup when set.
	Transcoder *transcoder.Transcoder
	// NewTransport returns a fresh transport per download.
	NewTransport func() downloaders.Transport
}

func New(args Args) *Pipeline {
	p := &Pipeline{
		conf:         args.Config,
		fs:           args.Fs,
		fetcher:      args.Fetcher,
		transcoders:  &transcoder.Cached{},
		transcoder:   args.Transcoder,
		newTransport: args.NewTransport,
	}
	if p.conf == nil {
		p.conf = config.Instance()
	}
	if p.fs == nil {
		p.fs = afero.NewOsFs()
	}
	if p.fetcher == nil {
		p.fetcher = extractor.NewFetcher(extractor.NewExecRunner(p.conf.Paths.DownloaderPath), nil)
	}
	if p.newTransport == nil {
		path := p.conf.Paths.DownloaderPath
		p.newTransport = func() downloaders.Transport { return downloaders.NewYtDlpTransport(path) }
	}
	return p
}

func (p *Pipeline) Config() *config.Config { return p.conf }
func (p *Pipeline) Fs() afero.Fs           { return p.fs }

func (p *Pipeline) Transcoder() *transcoder.Transcoder {
	if p.transcoder != nil {
		return p.transcoder
	}
	return p.transcoders.Get(p.conf.Paths.TranscoderName)
}

// Inspection is the result of looking a URL up.
type Inspection struct {
	URL                 string                  `json:"url"`
	Meta                *extractor.Metadata     `json:"-"`
	Options             []formats.QualityOption `json:"formats"`
	Platform            planner.Platform        `json:"platform"`
	ContentType         planner.ContentType     `json:"content_type"`
	ShortForm           bool                    `json:"short_form"`
	TranscoderAvailable bool                    `json:"transcoder_available"`
}

// Inspect fetches the metadata of url, switching persona when blocked, and
// normalizes its quality options.
func (p *Pipeline) Inspect(ctx context.Context, url string) (*Inspection, error) {
	meta, err := p.fetcher.FetchWithFallback(ctx, url, p.conf.ExtractorOptions())
	if err != nil {
		return nil, err
	}

	return &Inspection{
		URL:                 url,
		Meta:                meta,
		Options:             formats.Normalize(meta.Formats),
		Platform:            planner.DetectPlatform(url),
		ContentType:         planner.DetectContentType(url, meta),
		ShortForm:           meta.IsShortForm(),
		TranscoderAvailable: p.Transcoder().Available(),
	}, nil
}

type PrepareInput struct {
	URL      string
	Meta     *extractor.Metadata
	Options  []formats.QualityOption
	Kind     resolver.Kind
	FormatID string
	Registry *planner.Registry

	// Optional overrides of the resolved selector and the planned path.
	Format   string
	Template string
}

type Prepared struct {
	Request     downloaders.Request
	Path        string
	DisplayName string
	Warnings    []string
}

// Prepare resolves the format selector and plans the output path of a
// download. The planned path is tracked in in.Registry.
func (p *Pipeline) Prepare(in PrepareInput) (*Prepared, error) {
	if in.Meta == nil {
		return nil, ErrNoMetadata
	}

	var selected *formats.QualityOption
	if in.FormatID != "" {
		opt, ok := formats.Find(in.Options, in.FormatID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, in.FormatID)
		}
		selected = &opt
	}

	tc := p.Transcoder()
	res := resolver.Resolve(resolver.Input{
		Kind:                in.Kind,
		Selected:            selected,
		Options:             in.Options,
		TranscoderAvailable: tc.Available(),
	})
	if tc.Available() {
		res.Transcode.FFmpegLocation = tc.Location()
	}
	if in.Format != "" {
		res.Format = in.Format
	}

	path := in.Template
	if path == "" {
		var err error
		path, err = planner.New(p.fs, p.conf.Paths.DownloadPath, in.Registry).Plan(planner.PlanInput{
			URL:      in.URL,
			Meta:     in.Meta,
			Kind:     in.Kind,
			Selected: selected,
		})
		if err != nil {
			return nil, err
		}
	} else if err := planner.EnsureTemplateDir(p.fs, path); err != nil {
		return nil, err
	}

	for _, w := range res.Warnings {
		slog.Warn("degraded format selection", slog.String("url", in.URL), slog.String("warning", w))
	}

	return &Prepared{
		Request: downloaders.Request{
			URL:            in.URL,
			VideoID:        planner.VideoID(in.URL, in.Meta),
			Kind:           in.Kind,
			Selected:       selected,
			Format:         res.Format,
			OutputTemplate: path,
			Transcode:      res.Transcode,
			Network:        p.conf.NetworkOptions(),
			AudioOnly:      in.Kind == resolver.KindAudio,
		},
		Path:        path,
		DisplayName: planner.DisplayName(path, in.Kind),
		Warnings:    res.Warnings,
	}, nil
}

// NewOrchestrator builds an orchestrator searching the download directory
// for the artifact.
func (p *Pipeline) NewOrchestrator(registry *planner.Registry, sink progress.Sink, log downloaders.Logger) *downloaders.Orchestrator {
	return downloaders.NewOrchestrator(downloaders.OrchestratorConfig{
		Transport: p.newTransport(),
		Locator:   downloaders.NewLocator(p.fs, p.conf.Paths.DownloadPath, p.conf.Download.RecencyWindow),
		Registry:  registry,
		Sink:      sink,
		Log:       log,
	})
}
