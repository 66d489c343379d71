package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/basaltfs/gfs/pkg/core"
	"github.com/basaltfs/gfs/pkg/gfs"
	"github.com/basaltfs/gfs/pkg/merge"
	"github.com/basaltfs/gfs/pkg/objstore"
)

func newMergeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <db-path> <base-ref> <our-ref> <their-ref> <message>",
		Short: "Three-way merge their-ref into our-ref",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := objstore.OpenBoltStore(args[0])
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			baseTree, _, err := resolveRefTree(ctx, store, args[1])
			if err != nil {
				return err
			}
			ourTree, ourCommit, err := resolveRefTree(ctx, store, args[2])
			if err != nil {
				return err
			}
			theirTree, theirCommit, err := resolveRefTree(ctx, store, args[3])
			if err != nil {
				return err
			}

			target := gfs.NewDetached(store, args[0], ourTree)

			resultTree, conflicts, err := merge.NewMerger(target, merge.Options{}).Merge(ctx, baseTree, ourTree, theirTree)
			if err != nil {
				return err
			}
			if len(conflicts) > 0 {
				for _, c := range conflicts {
					fmt.Fprintf(cmd.ErrOrStderr(), "conflict: %s\n", c.Path)
				}
				return fmt.Errorf("merge left %d conflict(s) unresolved, refusing to commit", len(conflicts))
			}

			identity := commitIdentity()
			var parents []core.ObjectID
			if !ourCommit.IsZero() {
				parents = append(parents, ourCommit)
			}
			if !theirCommit.IsZero() {
				parents = append(parents, theirCommit)
			}
			commitID, err := store.InsertCommit(ctx, objstore.Commit{
				Tree:      *resultTree,
				Parents:   parents,
				Author:    identity,
				Committer: identity,
				Message:   args[4],
			})
			if err != nil {
				return err
			}
			if err := store.CommitBranchHead(ctx, args[2], ourCommit, commitID, args[4]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), commitID)
			return nil
		},
	}
}

// resolveRefTree resolves ref to its current commit (zero if the ref
// does not exist yet) and that commit's tree (zero tree if so).
func resolveRefTree(ctx context.Context, store objstore.Store, ref string) (tree core.ObjectID, commitID core.ObjectID, err error) {
	commitID, ok, err := store.ResolveRef(ctx, ref)
	if err != nil || !ok {
		return core.Zero, core.Zero, err
	}
	commit, found, err := store.ReadCommit(ctx, commitID)
	if err != nil {
		return core.Zero, core.Zero, err
	}
	if !found {
		return core.Zero, core.Zero, core.NewOpError("resolveRefTree", ref, core.ErrIllegalState, nil)
	}
	return commit.Tree, commitID, nil
}
