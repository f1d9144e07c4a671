package main

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/vidfetch/vidfetch/server/internal/kv"
)

// newCleanupCmd sweeps the files tracked by the sessions the server
// persisted on shutdown.
func newCleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove the temporary files of persisted sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mdb := kv.NewStore(fsys, conf.Paths.DatabasePath)
			mdb.Restore()

			ids := mdb.SessionIDs()
			if id := lo.Must(cmd.Flags().GetString("session")); id != "" {
				if _, err := mdb.Session(id); err != nil {
					return err
				}
				ids = []string{id}
			}

			w := cmd.OutOrStdout()
			var removed int
			for _, id := range ids {
				for _, path := range mdb.DeleteSession(id) {
					fmt.Fprintf(w, "removed %s\n", path)
					removed++
				}
			}

			if err := mdb.Persist(); err != nil {
				return err
			}

			fmt.Fprintf(w, "%d file(s) removed from %d session(s)\n", removed, len(ids))
			return nil
		},
	}

	cmd.Flags().StringP("session", "s", "", "Only clean this session")

	return cmd
}
