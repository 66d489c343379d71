package main

import (
	"github.com/spf13/cobra"

	"github.com/basaltfs/gfs/pkg/objstore"
)

func newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init <db-path>",
		Short: "Create a new object store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := objstore.OpenBoltStore(args[0])
			if err != nil {
				return err
			}
			return store.Close()
		},
	}
}
