package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"bkdict/internal/bktree"
	"bkdict/internal/metric"
)

var words = []string{"book", "books", "boo", "boot", "cake", "bake", "brook", "book", "look"}

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	store, err := NewStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStorage failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func buildTree(fn func(a, b string) int, values ...string) *bktree.Tree[string] {
	tree := bktree.New(fn)
	tree.InsertAll(values...)
	return tree
}

func TestNewStorage(t *testing.T) {
	store := newTestStorage(t)

	if store.db == nil {
		t.Error("db should not be nil")
	}
	if v := store.getSchemaVersion(); v != schemaVersion {
		t.Errorf("schema version = %d, want %d", v, schemaVersion)
	}
}

func TestNewStorage_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	store, err := NewStorage(dbPath)
	if err != nil {
		t.Fatalf("NewStorage failed to create directories: %v", err)
	}
	defer store.Close()
}

func TestNewStorage_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	store, err := NewStorage(dbPath)
	if err != nil {
		t.Fatalf("NewStorage failed: %v", err)
	}
	if err := store.SaveTree(ctx, metric.NameDamerau, buildTree(metric.DamerauLevenshtein, words...)); err != nil {
		t.Fatalf("SaveTree failed: %v", err)
	}
	store.Close()

	// Migrations must be safe to run again
	store, err = NewStorage(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer store.Close()

	tree, err := store.LoadTree(ctx)
	if err != nil {
		t.Fatalf("LoadTree failed: %v", err)
	}
	if tree.Size() != len(words) {
		t.Errorf("size = %d, want %d", tree.Size(), len(words))
	}
}

func TestSaveTree_AndLoadTree(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	original := buildTree(metric.DamerauLevenshtein, words...)
	if err := store.SaveTree(ctx, metric.NameDamerau, original); err != nil {
		t.Fatalf("SaveTree failed: %v", err)
	}

	loaded, err := store.LoadTree(ctx)
	if err != nil {
		t.Fatalf("LoadTree failed: %v", err)
	}

	if err := loaded.Verify(); err != nil {
		t.Errorf("loaded tree fails verification: %v", err)
	}
	if loaded.Size() != original.Size() {
		t.Errorf("size = %d, want %d", loaded.Size(), original.Size())
	}
	if loaded.Len() != original.Len() {
		t.Errorf("len = %d, want %d", loaded.Len(), original.Len())
	}

	root, _ := loaded.Root()
	if root != "book" {
		t.Errorf("root = %q, want book", root)
	}

	for _, q := range []string{"book", "bok", "cake", "brok", "xyz"} {
		for threshold := 0; threshold <= 3; threshold++ {
			want := original.Find(q, threshold)
			got := loaded.Find(q, threshold)
			if !equalStrings(got, want) {
				t.Errorf("Find(%q, %d) = %v, want %v", q, threshold, got, want)
			}
		}
	}
}

func TestSaveTree_Replaces(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	if err := store.SaveTree(ctx, metric.NameDamerau, buildTree(metric.DamerauLevenshtein, words...)); err != nil {
		t.Fatalf("first SaveTree failed: %v", err)
	}
	if err := store.SaveTree(ctx, metric.NameLevenshtein, buildTree(metric.Levenshtein, "ab", "ba")); err != nil {
		t.Fatalf("second SaveTree failed: %v", err)
	}

	name, err := store.Metric(ctx)
	if err != nil {
		t.Fatalf("Metric failed: %v", err)
	}
	if name != metric.NameLevenshtein {
		t.Errorf("metric = %q, want %q", name, metric.NameLevenshtein)
	}

	loaded, err := store.LoadTree(ctx)
	if err != nil {
		t.Fatalf("LoadTree failed: %v", err)
	}
	if loaded.Len() != 2 {
		t.Errorf("len after replace = %d, want 2", loaded.Len())
	}
	// plain Levenshtein: a transposition costs two edits
	if got := loaded.Find("ab", 1); !equalStrings(got, []string{"ab"}) {
		t.Errorf("Find(ab, 1) = %v, want [ab]", got)
	}
}

func TestSaveTree_UnknownMetric(t *testing.T) {
	store := newTestStorage(t)

	err := store.SaveTree(context.Background(), "soundex", buildTree(metric.DamerauLevenshtein, "a"))
	if !errors.Is(err, metric.ErrUnknownMetric) {
		t.Errorf("expected ErrUnknownMetric, got %v", err)
	}
}

func TestLoadTree_EmptyArchive(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.LoadTree(context.Background())
	if !errors.Is(err, ErrEmptyArchive) {
		t.Errorf("expected ErrEmptyArchive, got %v", err)
	}
}

func TestSaveTree_EmptyTree(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	if err := store.SaveTree(ctx, metric.NameDamerau, bktree.New(metric.DamerauLevenshtein)); err != nil {
		t.Fatalf("SaveTree failed: %v", err)
	}

	loaded, err := store.LoadTree(ctx)
	if err != nil {
		t.Fatalf("LoadTree failed: %v", err)
	}
	if loaded.Size() != 0 || len(loaded.Find("a", 3)) != 0 {
		t.Error("expected an empty tree")
	}

	info, err := store.Info(ctx)
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.Depth != -1 || info.NodeCount != 0 {
		t.Errorf("info = %+v, want depth -1 and no nodes", info)
	}
}

func TestInfo(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	tree := buildTree(metric.DamerauLevenshtein, words...)
	if err := store.SaveTree(ctx, metric.NameDamerau, tree); err != nil {
		t.Fatalf("SaveTree failed: %v", err)
	}

	info, err := store.Info(ctx)
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}

	if info.Metric != metric.NameDamerau {
		t.Errorf("metric = %q, want %q", info.Metric, metric.NameDamerau)
	}
	if info.InsertCount != len(words) {
		t.Errorf("insert count = %d, want %d", info.InsertCount, len(words))
	}
	if info.NodeCount != tree.Len() {
		t.Errorf("node count = %d, want %d", info.NodeCount, tree.Len())
	}
	if info.Depth != tree.Depth() {
		t.Errorf("depth = %d, want %d", info.Depth, tree.Depth())
	}
	if info.SavedAt.IsZero() {
		t.Error("saved_at should be set")
	}
}

func TestInfo_SQLiteTimestamp(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	if err := store.SaveTree(ctx, metric.NameDamerau, buildTree(metric.DamerauLevenshtein, words...)); err != nil {
		t.Fatalf("SaveTree failed: %v", err)
	}
	if _, err := store.db.Exec(`UPDATE meta SET value = ? WHERE key = ?`, "2024-03-01 12:30:00", metaSavedAt); err != nil {
		t.Fatalf("update saved_at failed: %v", err)
	}

	info, err := store.Info(ctx)
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}

	want := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	if !info.SavedAt.Equal(want) {
		t.Errorf("saved_at = %v, want %v", info.SavedAt, want)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2024-03-01T12:30:00Z", time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)},
		{"2024-03-01 12:30:00", time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)},
		{"yesterday", time.Time{}},
		{"", time.Time{}},
	}

	for _, tt := range tests {
		if got := parseTimestamp(tt.raw); !got.Equal(tt.want) {
			t.Errorf("parseTimestamp(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestBuildHistory(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	if err := store.RecordBuild(ctx, "/usr/share/dict/words", 10, 9, 8); err != nil {
		t.Fatalf("RecordBuild failed: %v", err)
	}
	if err := store.RecordBuild(ctx, "extra.txt", 3, 3, 11); err != nil {
		t.Fatalf("RecordBuild failed: %v", err)
	}

	history, err := store.BuildHistory(ctx, 0)
	if err != nil {
		t.Fatalf("BuildHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 records, got %d", len(history))
	}
	if history[0].Source != "extra.txt" {
		t.Errorf("newest source = %q, want extra.txt", history[0].Source)
	}
	if history[1].LinesRead != 10 || history[1].Inserted != 9 || history[1].NodeCount != 8 {
		t.Errorf("unexpected record %+v", history[1])
	}
	if history[0].BuiltAt.IsZero() {
		t.Error("built_at should be parsed")
	}

	limited, err := store.BuildHistory(ctx, 1)
	if err != nil {
		t.Fatalf("BuildHistory failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected 1 record with limit, got %d", len(limited))
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
