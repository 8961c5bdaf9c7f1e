package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var searchDistance bool

var searchCmd = &cobra.Command{
	Use:   "search <archive> <word> <threshold>",
	Short: "Find words within a distance of a query",
	Long: `Load an archive and print every stored word within <threshold> edits of
<word>, one per line. A negative threshold matches nothing; pass it after
"--" so it is not read as a flag.

Example:
  bkdict search words.db speling 2
  bkdict search words.db speling 2 --distance
  bkdict search -- words.db speling -1`,
	Args: cobra.ExactArgs(3),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().BoolVarP(&searchDistance, "distance", "d", false, "Print the distance after each match")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	archive, query := args[0], args[1]

	threshold, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid threshold %q: %w", args[2], err)
	}

	store, err := openArchive(archive)
	if err != nil {
		return err
	}
	defer store.Close()

	tree, err := store.LoadTree(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load archive: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, m := range tree.Search(query, threshold) {
		if searchDistance {
			fmt.Fprintf(out, "%s\t%d\n", m.Value, m.Distance)
		} else {
			fmt.Fprintln(out, m.Value)
		}
	}

	return nil
}
