package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"bkdict/internal/models"
	"bkdict/internal/storage"
)

var (
	infoLimit  int
	infoVerify bool
)

var infoCmd = &cobra.Command{
	Use:   "info <archive>",
	Short: "Show archive statistics and build history",
	Long: `Display what an archive holds: the metric it was built with, how many
entries were loaded, how many distinct words were stored, and the depth of the
tree, followed by the most recent builds.

Example:
  bkdict info words.db              # Show the last 10 builds (default)
  bkdict info words.db -n 0         # Show all builds
  bkdict info words.db --verify     # Recheck every stored distance`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	infoCmd.Flags().IntVarP(&infoLimit, "limit", "n", 10, "Limit number of builds to display (0 = all)")
	infoCmd.Flags().BoolVar(&infoVerify, "verify", false, "Rebuild the tree and check every distance key")
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	archive := args[0]
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	store, err := openArchive(archive)
	if err != nil {
		return err
	}
	defer store.Close()

	info, err := store.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}

	var fileSize int64
	if stat, err := os.Stat(archive); err == nil {
		fileSize = stat.Size()
	}

	fmt.Fprintf(out, "Archive:   %s (%s)\n", info.Path, formatSize(fileSize))
	fmt.Fprintf(out, "Metric:    %s\n", info.Metric)
	fmt.Fprintf(out, "Entries:   %d\n", info.InsertCount)
	fmt.Fprintf(out, "Distinct:  %d\n", info.NodeCount)
	fmt.Fprintf(out, "Depth:     %d\n", info.Depth)
	if !info.SavedAt.IsZero() {
		fmt.Fprintf(out, "Saved:     %s\n", info.SavedAt.Local().Format("2006-01-02 15:04:05"))
	}

	if infoVerify {
		tree, err := store.LoadTree(ctx)
		if err != nil {
			return fmt.Errorf("failed to load archive: %w", err)
		}
		if err := tree.Verify(); err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}
		fmt.Fprintln(out, "Verified:  all distance keys match")
	}

	history, err := store.BuildHistory(ctx, infoLimit)
	if err != nil {
		return fmt.Errorf("failed to get build history: %w", err)
	}

	fmt.Fprintln(out)
	if len(history) == 0 {
		fmt.Fprintln(out, "No builds recorded.")
		return nil
	}
	printHistoryTable(out, history)

	return nil
}

func printHistoryTable(out io.Writer, history []*models.BuildRecord) {
	fmt.Fprintf(out, "%-19s  %-8s  %-8s  %-8s  %s\n", "Built", "Lines", "Inserted", "Distinct", "Source")
	fmt.Fprintln(out, strings.Repeat("-", 70))

	for _, rec := range history {
		fmt.Fprintf(out, "%-19s  %-8d  %-8d  %-8d  %s\n",
			rec.BuiltAt.Local().Format("2006-01-02 15:04:05"),
			rec.LinesRead, rec.Inserted, rec.NodeCount, shortenPath(rec.Source, 30))
	}
}

func shortenPath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}

	// Try to show filename and as much of the path as possible
	dir, file := filepath.Split(path)
	if len(file) >= maxLen-3 {
		return "..." + file[len(file)-(maxLen-3):]
	}

	remaining := maxLen - len(file) - 4 // 4 for ".../"
	if remaining > 0 && len(dir) > remaining {
		dir = dir[len(dir)-remaining:]
	}
	return "..." + dir + file
}

func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// openArchive opens an existing archive without creating one at a mistyped path
func openArchive(path string) (*storage.Storage, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("archive not found: %w", err)
	}

	store, err := storage.NewStorage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return store, nil
}
