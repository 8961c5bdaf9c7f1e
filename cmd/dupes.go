package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bkdict/internal/cluster"
)

var (
	dupesThreshold int
	dupesJSON      bool
	dupesLimit     int
	dupesOffset    int
)

var dupesCmd = &cobra.Command{
	Use:   "dupes <archive>",
	Short: "List groups of near-duplicate entries",
	Long: `Find entries that sit within a small distance of each other, which in a
word list usually means typos or spelling variants.

Entries are grouped transitively: if a~b and b~c are within the threshold,
a, b and c form one group even when a and c are further apart.

Example:
  bkdict dupes words.db              # Show first 10 groups (default)
  bkdict dupes words.db -n 0         # Show all groups
  bkdict dupes words.db -t 2         # Allow two edits
  bkdict dupes words.db --offset 10  # Groups 11-20`,
	Args: cobra.ExactArgs(1),
	RunE: runDupes,
}

func init() {
	dupesCmd.Flags().IntVarP(&dupesThreshold, "threshold", "t", 1, "Largest distance between neighbouring entries")
	dupesCmd.Flags().BoolVar(&dupesJSON, "json", false, "Output in JSON format")
	dupesCmd.Flags().IntVarP(&dupesLimit, "limit", "n", 10, "Limit number of groups to display (0 = all)")
	dupesCmd.Flags().IntVar(&dupesOffset, "offset", 0, "Skip first N groups (for pagination)")
	rootCmd.AddCommand(dupesCmd)
}

func runDupes(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	store, err := openArchive(args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	tree, err := store.LoadTree(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load archive: %w", err)
	}

	groups := cluster.NewClusterer(dupesThreshold).FindGroups(tree)

	// Apply pagination
	totalGroups := len(groups)
	startIdx := min(max(dupesOffset, 0), totalGroups)
	groups = groups[startIdx:]
	if dupesLimit > 0 && dupesLimit < len(groups) {
		groups = groups[:dupesLimit]
	}

	if dupesJSON {
		if groups == nil {
			groups = []*cluster.Group{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(groups)
	}

	if totalGroups == 0 {
		fmt.Fprintln(out, "No near-duplicate entries found.")
		return nil
	}

	fmt.Fprintf(out, "Found %d groups of near-duplicates\n\n", totalGroups)

	if len(groups) == 0 {
		fmt.Fprintf(out, "No groups in range (offset %d exceeds total %d)\n", dupesOffset, totalGroups)
		return nil
	}

	for _, group := range groups {
		fmt.Fprintf(out, "Group #%d (%d entries)\n", group.ID, len(group.Members))
		fmt.Fprintln(out, strings.Repeat("-", 40))
		for _, m := range group.Members {
			fmt.Fprintf(out, "  %s\n", m)
		}
		fmt.Fprintln(out)
	}

	// Show pagination info
	endIdx := startIdx + len(groups)
	fmt.Fprintf(out, "Showing groups %d-%d of %d\n", startIdx+1, endIdx, totalGroups)
	if endIdx < totalGroups {
		limitArg := ""
		if dupesLimit > 0 {
			limitArg = fmt.Sprintf(" -n %d", dupesLimit)
		}
		fmt.Fprintf(out, "Next page: bkdict dupes %s%s --offset %d\n", args[0], limitArg, endIdx)
	}

	return nil
}
