package main

import (
	"github.com/spf13/cobra"

	"github.com/basaltfs/gfs/pkg/gfs"
	"github.com/basaltfs/gfs/pkg/objstore"
)

func newCatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <db-path> <ref> <path>",
		Short: "Print a file's content at ref",
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

			data, err := fsys.ReadFile(cmd.Context(), args[2])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
