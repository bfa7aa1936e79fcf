package tracker

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ocml-project/ocviz/internal/fsutil"
)

// Run is a file-backed tracker. Each run owns a directory named by a
// fresh UUID under a base directory; artifacts are copied into it and
// metrics land in a SQLite database alongside them.
type Run struct {
	ID  string
	Dir string

	db *sql.DB
	fs fsutil.FileSystem
}

// NewRun creates a run directory under baseDir and opens its metrics
// database.
func NewRun(baseDir string) (*Run, error) {
	return newRun(baseDir, fsutil.OS{})
}

func newRun(baseDir string, fs fsutil.FileSystem) (*Run, error) {
	id := uuid.NewString()
	dir := filepath.Join(baseDir, id)
	if err := fs.MkdirAll(filepath.Join(dir, "artifacts"), 0755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "metrics.db"))
	if err != nil {
		return nil, fmt.Errorf("open metrics db: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS metrics (
			name              TEXT,
			value             DOUBLE,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS artifacts (
			name              TEXT,
			size_bytes        BIGINT,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create run schema: %w", err)
	}

	return &Run{ID: id, Dir: dir, db: db, fs: fs}, nil
}

// SaveArtifact copies the file at path into the run's artifacts
// directory and records it.
func (r *Run) SaveArtifact(path string) error {
	name, size, err := copyArtifact(r.fs, path, filepath.Join(r.Dir, "artifacts"))
	if err != nil {
		return err
	}
	if _, err := r.db.Exec("INSERT INTO artifacts (name, size_bytes) VALUES (?, ?)", name, size); err != nil {
		return fmt.Errorf("record artifact %s: %w", name, err)
	}
	return nil
}

// copyArtifact copies the file at src into dstDir through the given
// filesystem and returns its base name and size.
func copyArtifact(fs fsutil.FileSystem, src, dstDir string) (string, int, error) {
	data, err := fs.ReadFile(src)
	if err != nil {
		return "", 0, fmt.Errorf("read artifact %s: %w", src, err)
	}
	name := filepath.Base(src)
	if err := fs.WriteFile(filepath.Join(dstDir, name), data, 0644); err != nil {
		return "", 0, fmt.Errorf("copy artifact %s: %w", name, err)
	}
	return name, len(data), nil
}

// Log inserts one row per metric.
func (r *Run) Log(metrics map[string]float64) error {
	for name, value := range metrics {
		if _, err := r.db.Exec("INSERT INTO metrics (name, value) VALUES (?, ?)", name, value); err != nil {
			return fmt.Errorf("record metric %s: %w", name, err)
		}
	}
	return nil
}

// Metrics returns every logged value for the named metric in insert
// order.
func (r *Run) Metrics(name string) ([]float64, error) {
	rows, err := r.db.Query("SELECT value FROM metrics WHERE name = ? ORDER BY rowid", name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Close releases the metrics database.
func (r *Run) Close() error {
	return r.db.Close()
}
