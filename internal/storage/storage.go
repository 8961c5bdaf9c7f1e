package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"bkdict/internal/bktree"
	"bkdict/internal/metric"
	"bkdict/internal/models"
)

// ErrEmptyArchive is returned when loading an archive no tree was saved to
var ErrEmptyArchive = errors.New("archive holds no tree")

const (
	metaMetric      = "metric"
	metaInsertCount = "insert_count"
	metaSavedAt     = "saved_at"
)

// Storage persists a string BK-tree in a SQLite archive
type Storage struct {
	db     *sql.DB
	dbPath string
}

// NewStorage opens (creating if needed) the archive at dbPath
func NewStorage(dbPath string) (*Storage, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Storage{db: db, dbPath: dbPath}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Current schema version
const schemaVersion = 2

// migrations defines all schema migrations
// Each migration should be idempotent (safe to run multiple times)
var migrations = []struct {
	version     int
	description string
	up          string
}{
	{
		version:     1,
		description: "Initial schema",
		up:          "", // Handled by base schema creation
	},
	{
		version:     2,
		description: "Add build history",
		up: `
			CREATE TABLE IF NOT EXISTS build_history (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				source TEXT NOT NULL,
				built_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				lines_read INTEGER NOT NULL,
				inserted INTEGER NOT NULL,
				node_count INTEGER NOT NULL
			);
		`,
	},
}

// init creates the database schema
func (s *Storage) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	// parent is -1 for the root; distance is the key under parent
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS nodes (
		id INTEGER PRIMARY KEY,
		parent INTEGER NOT NULL,
		distance INTEGER NOT NULL,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent);
	`

	if _, err = s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	if err := s.migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// migrate runs pending schema migrations
func (s *Storage) migrate() error {
	currentVersion := s.getSchemaVersion()

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if m.up != "" {
			if _, err := s.db.Exec(m.up); err != nil {
				return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.description, err)
			}
		}
		if err := s.setSchemaVersion(m.version); err != nil {
			return err
		}
	}

	return nil
}

// getSchemaVersion returns the current schema version
func (s *Storage) getSchemaVersion() int {
	var version int
	err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0
	}
	return version
}

// setSchemaVersion records a migration as applied
func (s *Storage) setSchemaVersion(version int) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO schema_version (version) VALUES (?)`, version)
	return err
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// Path returns the archive location on disk
func (s *Storage) Path() string {
	return s.dbPath
}

// SaveTree replaces the archived tree with tree, recording the name of the
// metric it was built with so LoadTree can rebuild it.
func (s *Storage) SaveTree(ctx context.Context, metricName string, tree *bktree.Tree[string]) error {
	if _, err := metric.ByName(metricName); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM nodes"); err != nil {
		return fmt.Errorf("failed to clear nodes: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (id, parent, distance, value)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	err = tree.Walk(func(n bktree.NodeInfo[string]) error {
		if _, err := stmt.ExecContext(ctx, n.Index, n.Parent, n.Distance, n.Value); err != nil {
			return fmt.Errorf("failed to insert node %d: %w", n.Index, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	meta := map[string]string{
		metaMetric:      metricName,
		metaInsertCount: strconv.Itoa(tree.Size()),
		metaSavedAt:     time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("failed to write %s: %w", k, err)
		}
	}

	return tx.Commit()
}

// getMeta returns a meta value, or "" if it was never written
func (s *Storage) getMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

// Metric returns the name of the metric the archived tree was built with
func (s *Storage) Metric(ctx context.Context) (string, error) {
	name, err := s.getMeta(ctx, metaMetric)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", ErrEmptyArchive
	}
	return name, nil
}

func (s *Storage) insertCount(ctx context.Context) (int, error) {
	raw, err := s.getMeta(ctx, metaInsertCount)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 0, ErrEmptyArchive
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid insert count %q: %w", raw, err)
	}
	return n, nil
}

// LoadTree rebuilds the archived tree
func (s *Storage) LoadTree(ctx context.Context) (*bktree.Tree[string], error) {
	name, err := s.Metric(ctx)
	if err != nil {
		return nil, err
	}
	distanceFn, err := metric.ByName(name)
	if err != nil {
		return nil, err
	}

	inserts, err := s.insertCount(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, parent, distance, value
		FROM nodes
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	snap := bktree.Snapshot[string]{Inserts: inserts}
	for rows.Next() {
		var n bktree.NodeInfo[string]
		if err := rows.Scan(&n.Index, &n.Parent, &n.Distance, &n.Value); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		snap.Nodes = append(snap.Nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read nodes: %w", err)
	}

	tree, err := bktree.Restore(distanceFn, snap)
	if err != nil {
		return nil, fmt.Errorf("failed to restore tree from %s: %w", s.dbPath, err)
	}
	return tree, nil
}

// RecordBuild records a dictionary load in the build history
func (s *Storage) RecordBuild(ctx context.Context, source string, linesRead, inserted, nodeCount int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO build_history (source, lines_read, inserted, node_count)
		VALUES (?, ?, ?, ?)
	`, source, linesRead, inserted, nodeCount)
	return err
}

// BuildHistory returns up to limit builds, newest first (0 = all)
func (s *Storage) BuildHistory(ctx context.Context, limit int) ([]*models.BuildRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, built_at, lines_read, inserted, node_count
		FROM build_history
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query build history: %w", err)
	}
	defer rows.Close()

	var records []*models.BuildRecord
	for rows.Next() {
		rec := &models.BuildRecord{}
		var builtAt string
		if err := rows.Scan(&rec.ID, &rec.Source, &builtAt, &rec.LinesRead, &rec.Inserted, &rec.NodeCount); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rec.BuiltAt = parseTimestamp(builtAt)
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Info summarises the archive without rebuilding the tree
func (s *Storage) Info(ctx context.Context) (*models.ArchiveInfo, error) {
	name, err := s.Metric(ctx)
	if err != nil {
		return nil, err
	}
	inserts, err := s.insertCount(ctx)
	if err != nil {
		return nil, err
	}

	info := &models.ArchiveInfo{
		Path:        s.dbPath,
		Metric:      name,
		InsertCount: inserts,
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM nodes").Scan(&info.NodeCount); err != nil {
		return nil, fmt.Errorf("failed to count nodes: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		WITH RECURSIVE levels(id, depth) AS (
			SELECT id, 0 FROM nodes WHERE parent = -1
			UNION ALL
			SELECT n.id, l.depth + 1 FROM nodes n JOIN levels l ON n.parent = l.id
		)
		SELECT COALESCE(MAX(depth), -1) FROM levels
	`).Scan(&info.Depth)
	if err != nil {
		return nil, fmt.Errorf("failed to compute depth: %w", err)
	}

	savedAt, err := s.getMeta(ctx, metaSavedAt)
	if err != nil {
		return nil, err
	}
	info.SavedAt = parseTimestamp(savedAt)

	return info, nil
}

// parseTimestamp reads a CURRENT_TIMESTAMP value as the sqlite driver
// returns it
func parseTimestamp(raw string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
