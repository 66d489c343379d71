package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/basaltfs/gfs/pkg/core"
	"github.com/basaltfs/gfs/pkg/gfs"
	"github.com/basaltfs/gfs/pkg/objstore"
)

func newLsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ls <db-path> <ref> <path>",
		Short: "List a directory's entries at ref",
		Args:  cobra.ExactArgs(3),
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

			path := args[2]
			if path == "/" {
				path = ""
			}
			stream, err := fsys.NewDirectoryStream(cmd.Context(), path, nil)
			if err != nil {
				return err
			}
			defer stream.Close()

			for {
				entry, ok := stream.Next()
				if !ok {
					break
				}
				kind := "file"
				if entry.Mode == core.Tree {
					kind = "dir"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-4s %s\n", kind, entry.Name)
			}
			return nil
		},
	}
}
