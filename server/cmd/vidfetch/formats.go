package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/vidfetch/vidfetch/server/internal/pipeline"
)

func newFormatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formats URL",
		Short: "List the quality options of a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ins, err := newPipeline(conf).Inspect(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if lo.Must(cmd.Flags().GetBool("json")) {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Title    string `json:"title"`
					Duration string `json:"duration"`
					*pipeline.Inspection
				}{ins.Meta.CleanTitle(), ins.Meta.Length(), ins})
			}

			printInspection(cmd.OutOrStdout(), ins)
			return nil
		},
	}

	cmd.Flags().Bool("json", false, "Print the options as JSON")

	return cmd
}

func printInspection(w io.Writer, ins *pipeline.Inspection) {
	fmt.Fprintf(w, "Title:    %s\n", ins.Meta.CleanTitle())
	if ins.Meta.Uploader != "" {
		fmt.Fprintf(w, "Uploader: %s\n", ins.Meta.Uploader)
	}
	fmt.Fprintf(w, "Duration: %s\n", ins.Meta.Length())
	fmt.Fprintf(w, "Platform: %s\n", ins.Platform)
	if ins.ShortForm {
		fmt.Fprintln(w, "Short-form vertical video")
	}
	if !ins.TranscoderAvailable {
		fmt.Fprintln(w, "ffmpeg not found: video-only formats will be saved without audio")
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FORMAT\tQUALITY\tSIZE\tAUDIO")
	for _, o := range ins.Options {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.FormatID, o.Label, sizeOf(o.Filesize), lo.Ternary(o.HasAudio, "yes", "no"))
	}
	tw.Flush()
}

func sizeOf(n int64) string {
	if n <= 0 {
		return "~"
	}
	return humanize.Bytes(uint64(n))
}
