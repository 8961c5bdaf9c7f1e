package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "bkdict",
	Short: "Build and query fuzzy word dictionaries",
	Long: `bkdict indexes word lists in a BK-tree so that every word within a given
edit distance of a query can be found without comparing against the whole list.

The tree is stored in a single SQLite archive that can be queried from the
command line or served over HTTP.

Example usage:
  bkdict load /usr/share/dict/words words.db   # Build an archive
  bkdict search words.db speling 2             # Words within 2 edits
  bkdict info words.db                         # Archive statistics
  bkdict serve words.db                        # JSON API on :8080`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}
