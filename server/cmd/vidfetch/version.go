package main

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/vidfetch/vidfetch/server/updater"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const probeTimeout = 10 * time.Second

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the versions of vidfetch, yt-dlp and ffmpeg",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "vidfetch %s (%s/%s)\n", version, runtime.GOOS, runtime.GOARCH)

			ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
			defer cancel()

			out, err := newRunner(conf.Paths.DownloaderPath).Run(ctx, "--version")
			if err != nil {
				fmt.Fprintf(w, "yt-dlp   unavailable: %s\n", strings.TrimSpace(err.Error()))
			} else {
				fmt.Fprintf(w, "yt-dlp   %s\n", strings.TrimSpace(string(out)))
			}

			tc := newPipeline(conf).Transcoder()
			if !tc.Available() {
				fmt.Fprintf(w, "%-8s not found\n", conf.Paths.TranscoderName)
				return nil
			}
			v, err := tc.Version(ctx)
			if err != nil {
				v = "unknown"
			}
			fmt.Fprintf(w, "%-8s %s (%s)\n", tc.Name, v, tc.Location())
			return nil
		},
	}

	return cmd
}

func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Update yt-dlp with its builtin updater",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := updater.UpdateExecutable(cmd.Context(), newRunner(conf.Paths.DownloaderPath))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}
