package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/basaltfs/gfs/pkg/gfs"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var verbose bool

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "gfsutil",
	Short: "Inspect and manipulate a gfs object store from the command line",
	Long: `gfsutil is a tool for working with a gfs repository: initializing a
store, committing files staged from the local disk, reading them back,
and three-way merging one branch into another.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.WarnLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		gfs.SetLogger(gfs.NewLogger(os.Stderr, level))
	},
}

// Execute runs the root command (its subcommands and flags are
// registered in init) and exits with status 1 on error. Called once by
// main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newCatCommand())
	rootCmd.AddCommand(newLsCommand())
	rootCmd.AddCommand(newCommitCommand())
	rootCmd.AddCommand(newMergeCommand())
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gfsutil version %s (commit: %s, built: %s)\n", version, commit, date)
	},
}
