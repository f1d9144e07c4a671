package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/vidfetch/vidfetch/server/archive"
	"github.com/vidfetch/vidfetch/server/internal/downloaders"
	"github.com/vidfetch/vidfetch/server/internal/pipeline"
	"github.com/vidfetch/vidfetch/server/internal/planner"
	"github.com/vidfetch/vidfetch/server/internal/progress"
	"github.com/vidfetch/vidfetch/server/internal/resolver"
)

func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download URL",
		Short: "Download a video or its audio track",
		Args:  cobra.ExactArgs(1),
		RunE:  runDownload,
	}

	f := cmd.Flags()
	f.StringP("kind", "k", string(resolver.KindVideo), "Download kind (video or audio)")
	f.StringP("quality", "q", "", "Format id picked from the formats listing")
	f.StringP("format", "f", "", "Raw yt-dlp format selector, overrides the resolved one")
	f.StringP("template", "o", "", "Output path template, overrides the planned path")
	f.StringP("rate-limit", "r", "", "Maximum download rate, e.g. 2M")
	f.Int("concurrent-fragments", 0, "Fragments downloaded in parallel")
	f.Int("retries", 0, "Transfer retries")
	f.String("proxy", "", "Proxy URL")
	f.String("cookies", "", "Netscape cookies file")
	f.Bool("no-check-certificate", false, "Skip TLS certificate validation")
	f.Bool("no-archive", false, "Do not record the download in the history")

	return cmd
}

func runDownload(cmd *cobra.Command, args []string) error {
	var (
		ctx    = cmd.Context()
		url    = args[0]
		stdout = cmd.OutOrStdout()
		stderr = cmd.ErrOrStderr()
	)

	kind, err := resolver.ParseKind(lo.Must(cmd.Flags().GetString("kind")))
	if err != nil {
		return err
	}

	p := newPipeline(conf)

	ins, err := p.Inspect(ctx, url)
	if err != nil {
		return err
	}

	registry := planner.NewRegistry()
	prep, err := p.Prepare(pipeline.PrepareInput{
		URL:      url,
		Meta:     ins.Meta,
		Options:  ins.Options,
		Kind:     kind,
		FormatID: lo.Must(cmd.Flags().GetString("quality")),
		Registry: registry,
		Format:   lo.Must(cmd.Flags().GetString("format")),
		Template: lo.Must(cmd.Flags().GetString("template")),
	})
	if err != nil {
		return err
	}

	for _, w := range prep.Warnings {
		fmt.Fprintf(stderr, "Warning: %s\n", w)
	}
	fmt.Fprintf(stdout, "Downloading %q as %s\n", ins.Meta.CleanTitle(), prep.DisplayName)

	r := newRenderer(stderr)
	o := p.NewOrchestrator(registry, progress.Sink(r), downloaders.NewLogSink(slog.Default(), 0))
	out := o.Run(ctx, prep.Request)

	if conf.AutoArchive && !lo.Must(cmd.Flags().GetBool("no-archive")) {
		record(ctx, &archive.Entity{
			Title:    ins.Meta.CleanTitle(),
			Source:   url,
			Kind:     string(kind),
			FormatID: prep.Request.Format,
			Path:     out.Path,
			Size:     out.Size,
			Success:  out.Success,
			Reason:   out.Reason,
		})
	}

	if !out.Success {
		return outcomeError(out)
	}

	fmt.Fprintf(stdout, "Saved %s (%s)\n", out.Path, humanize.Bytes(uint64(out.Size)))
	return nil
}

// record stores e in the history. Failures are logged, the download result
// stands either way.
func record(ctx context.Context, e *archive.Entity) {
	svc, closer, err := openArchive()
	if err != nil {
		slog.Warn("history unavailable", slog.Any("err", err))
		return
	}
	defer closer()

	if err := svc.Archive(ctx, e); err != nil {
		slog.Warn("failed to record download", slog.String("source", e.Source), slog.Any("err", err))
	}
}
