package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bkdict/internal/bktree"
	"bkdict/internal/loader"
	"bkdict/internal/metric"
	"bkdict/internal/storage"
)

var (
	loadMetric    string
	loadNormalise bool
	loadLowercase bool
	loadAppend    bool
	loadProgress  bool
)

var loadCmd = &cobra.Command{
	Use:   "load <words> <archive>",
	Short: "Build an archive from a word list",
	Long: `Read a word list with one entry per line and store it as a BK-tree archive.

Empty lines are skipped. Entries at distance 0 from a word already loaded are
not stored twice, but still count towards the number of entries reported.

Example:
  bkdict load /usr/share/dict/words words.db
  bkdict load names.txt names.db --metric levenshtein --lowercase
  bkdict load extra.txt words.db --append`,
	Args: cobra.ExactArgs(2),
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().StringVar(&loadMetric, "metric", metric.NameDamerau,
		fmt.Sprintf("Distance metric (%s)", strings.Join(metric.Names(), ", ")))
	loadCmd.Flags().BoolVar(&loadNormalise, "normalise", false, "Strip accents before inserting")
	loadCmd.Flags().BoolVar(&loadLowercase, "lowercase", false, "Lower-case words before inserting")
	loadCmd.Flags().BoolVar(&loadAppend, "append", false, "Add to the tree already in the archive")
	loadCmd.Flags().BoolVar(&loadProgress, "progress", false, "Show progress while loading")
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	source, archive := args[0], args[1]
	ctx := cmd.Context()

	absSource, err := filepath.Abs(source)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(absSource)
	if err != nil {
		return fmt.Errorf("word list not found: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("not a file: %s", absSource)
	}

	store, err := storage.NewStorage(archive)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer store.Close()

	metricName := loadMetric
	var tree *bktree.Tree[string]
	if loadAppend {
		tree, metricName, err = existingTree(cmd, store)
		if err != nil {
			return err
		}
	}
	if tree == nil {
		distanceFn, err := metric.ByName(metricName)
		if err != nil {
			return err
		}
		tree = bktree.New(distanceFn)
	}

	opts := []loader.Option{
		loader.WithNormalise(loadNormalise),
		loader.WithLowercase(loadLowercase),
	}
	out := cmd.OutOrStdout()

	lastLine := ""
	if loadProgress {
		opts = append(opts, loader.WithProgress(func(inserted int, current string) {
			if inserted%1000 != 0 {
				return
			}
			// Clear previous line
			if lastLine != "" {
				fmt.Fprint(out, "\r"+strings.Repeat(" ", len(lastLine))+"\r")
			}
			lastLine = fmt.Sprintf("Loaded: %d  %s", inserted, current)
			fmt.Fprint(out, lastLine)
		}))
	}

	start := time.Now()
	stats, err := loader.NewLoader(opts...).LoadFile(ctx, absSource, tree)
	if lastLine != "" {
		fmt.Fprint(out, "\r"+strings.Repeat(" ", len(lastLine))+"\r")
	}
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}
	slog.Debug("word list read", "source", absSource, "lines", stats.LinesRead,
		"inserted", stats.Inserted, "nodes", tree.Len(), "took", time.Since(start))

	if err := store.SaveTree(ctx, metricName, tree); err != nil {
		return fmt.Errorf("failed to save tree: %w", err)
	}
	if err := store.RecordBuild(ctx, absSource, stats.LinesRead, stats.Inserted, tree.Len()); err != nil {
		slog.Warn("failed to record build", "err", err)
	}

	fmt.Fprintf(out, "Loaded %d entries\n", tree.Size())
	return nil
}

// existingTree loads the archived tree for --append. It returns a nil tree
// when the archive is still empty.
func existingTree(cmd *cobra.Command, store *storage.Storage) (*bktree.Tree[string], string, error) {
	tree, err := store.LoadTree(cmd.Context())
	if errors.Is(err, storage.ErrEmptyArchive) {
		return nil, loadMetric, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to load archive: %w", err)
	}

	archived, err := store.Metric(cmd.Context())
	if err != nil {
		return nil, "", err
	}
	if cmd.Flags().Changed("metric") && archived != loadMetric {
		return nil, "", fmt.Errorf("archive was built with metric %q, not %q", archived, loadMetric)
	}
	return tree, archived, nil
}
