package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/basaltfs/gfs/pkg/gfs"
	"github.com/basaltfs/gfs/pkg/objstore"
)

func newCommitCommand() *cobra.Command {
	var amend bool
	cmd := &cobra.Command{
		Use:   "commit <db-path> <ref> <message> <file>...",
		Short: "Stage local files and commit them onto ref",
		Args:  cobra.MinimumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := objstore.OpenBoltStore(args[0])
			if err != nil {
				return err
			}
			fsys, err := gfs.New(cmd.Context(), store, args[0], args[1])
			if err != nil {
				_ = store.Close()
				return err
			}
			defer fsys.Close()

			message := args[2]
			for _, path := range args[3:] {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("reading %s: %w", path, err)
				}
				if err := fsys.WriteFile(cmd.Context(), path, data); err != nil {
					return fmt.Errorf("staging %s: %w", path, err)
				}
			}

			identity := commitIdentity()
			commitID, committed, err := fsys.WriteAndUpdateCommit(cmd.Context(), identity, identity, message, amend)
			if err != nil {
				return err
			}
			if !committed {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to commit")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), commitID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&amend, "amend", false, "replace ref's current commit instead of extending it")
	return cmd
}

func commitIdentity() objstore.Identity {
	name := os.Getenv("GFS_AUTHOR_NAME")
	if name == "" {
		name = "gfsutil"
	}
	email := os.Getenv("GFS_AUTHOR_EMAIL")
	if email == "" {
		email = "gfsutil@localhost"
	}
	return objstore.Identity{Name: name, Email: email, When: time.Now()}
}
