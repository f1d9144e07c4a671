package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/vidfetch/vidfetch/server/config"
	"github.com/vidfetch/vidfetch/server/internal/extractor"
	"github.com/vidfetch/vidfetch/server/internal/pipeline"
)

const defaultConfigPath = "./config.yml"

var (
	// conf is loaded before every command runs.
	conf = config.Default()

	fsys afero.Fs = afero.NewOsFs()

	newRunner = func(path string) extractor.Runner { return extractor.NewExecRunner(path) }

	newPipeline = func(c *config.Config) *pipeline.Pipeline {
		return pipeline.New(pipeline.Args{
			Config:  c,
			Fs:      fsys,
			Fetcher: extractor.NewFetcher(newRunner(c.Paths.DownloaderPath), nil),
		})
	}
)

// flagKeys binds command line flags onto config keys. A flag only wins over
// the file and the environment when it is set explicitly.
var flagKeys = map[string]string{
	"log-level":            "logging.level",
	"output-dir":           "paths.download_path",
	"rate-limit":           "download.rate_limit",
	"concurrent-fragments": "download.concurrent_fragments",
	"retries":              "download.retries",
	"proxy":                "network.proxy",
	"cookies":              "network.cookies_path",
	"no-check-certificate": "network.no_check_certificate",
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vidfetch",
		Short:         "Inspect and download YouTube and Facebook videos",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
	}

	root.PersistentFlags().StringP("conf", "c", defaultConfigPath, "Config file path")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringP("output-dir", "d", "", "Directory downloads are written to")

	root.AddCommand(
		newFormatsCmd(),
		newDownloadCmd(),
		newCleanupCmd(),
		newHistoryCmd(),
		newConfigCmd(),
		newVersionCmd(),
		newUpdateCmd(),
	)

	return root
}

// setup loads the configuration with the flags of cmd layered on top and
// installs the default logger.
func setup(cmd *cobra.Command) error {
	v := config.NewViper(lo.Must(cmd.Flags().GetString("conf")))

	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			lo.Must0(v.BindPFlag(key, f))
		}
	}

	c := config.Default()
	if err := config.Decode(v, c); err != nil {
		return err
	}
	conf = c

	level, err := config.ParseLevel(c.Logging.Level)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

	return nil
}

// Execute runs the command line args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	fmt.Fprintf(stderr, "Error: %s\n", strings.TrimSpace(err.Error()))
	return exitCode(err)
}
