package main

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/vidfetch/vidfetch/server/archive"

	_ "modernc.org/sqlite"
)

// openArchive opens the history database shared with the server.
func openArchive() (*archive.Service, func(), error) {
	if err := os.MkdirAll(conf.Paths.DatabasePath, 0o755); err != nil {
		return nil, nil, err
	}

	db, err := sql.Open("sqlite", conf.DatabaseFile())
	if err != nil {
		return nil, nil, err
	}

	_, svc, err := archive.Container(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return svc, func() { db.Close() }, nil
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived downloads, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closer, err := openArchive()
			if err != nil {
				return err
			}
			defer closer()

			page, err := svc.List(
				cmd.Context(),
				lo.Must(cmd.Flags().GetInt64("cursor")),
				lo.Must(cmd.Flags().GetInt("limit")),
			)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tWHEN\tKIND\tRESULT\tSIZE\tTITLE")
			for _, e := range page.Data {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.Id,
					humanize.Time(e.CreatedAt),
					e.Kind,
					lo.Ternary(e.Success, "ok", "failed: "+e.Reason),
					sizeOf(e.Size),
					e.Title,
				)
			}
			tw.Flush()

			if page.Cursor > 0 {
				fmt.Fprintf(w, "\nmore: --cursor %s\n", strconv.FormatInt(page.Cursor, 10))
			}
			return nil
		},
	}

	cmd.Flags().Int64("cursor", 0, "Continue from a previous page")
	cmd.Flags().IntP("limit", "n", archive.DefaultPageSize, "Entries per page")

	cmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Remove an entry from the history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closer, err := openArchive()
			if err != nil {
				return err
			}
			defer closer()

			if err := svc.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	})

	return cmd
}
