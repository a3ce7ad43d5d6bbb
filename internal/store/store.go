package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ibeckermayer/shotgrid/internal/types"
)

// SQLiteRepository keeps the history in a SQLite database. Runs are
// numbered in insertion order, which is the only order Load relies on.
type SQLiteRepository struct {
	db      *sql.DB
	history types.History
	pending []types.RunRecord // oldest first
	loaded  bool
}

// NewSQLite opens (or creates) the database at dbPath
func NewSQLite(dbPath string) (*SQLiteRepository, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection keeps writes serialized within the process
	db.SetMaxOpenConns(1)

	s := &SQLiteRepository{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db %s: %w", dbPath, err)
	}

	return s, nil
}

// Close closes the database connection
func (s *SQLiteRepository) Close() error {
	return s.db.Close()
}

// migrate creates the database schema
func (s *SQLiteRepository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		timestamp TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS outcomes (
		run_seq INTEGER NOT NULL REFERENCES runs(seq),
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		browser TEXT NOT NULL,
		device_name TEXT NOT NULL,
		device_width INTEGER NOT NULL,
		device_height INTEGER NOT NULL,
		status TEXT NOT NULL,
		artifact_path TEXT,
		error TEXT,
		duration_ms INTEGER,
		PRIMARY KEY (run_seq, position)
	);

	INSERT OR IGNORE INTO schema_meta (key, value) VALUES ('version', '1');
	`

	_, err := s.db.Exec(schema)
	return err
}

// Load returns every stored run, most recently inserted first
func (s *SQLiteRepository) Load(ctx context.Context) (types.History, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT seq, id, timestamp FROM runs ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("load runs: %w", err)
	}
	defer rows.Close()

	history := types.History{}
	index := make(map[int64]int)
	for rows.Next() {
		var seq int64
		var run types.RunRecord
		var ts string
		if err := rows.Scan(&seq, &run.ID, &ts); err != nil {
			return nil, fmt.Errorf("load runs: %w", err)
		}
		run.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("run %s: bad timestamp %q: %w", run.ID, ts, err)
		}
		run.Outcomes = []types.Outcome{}
		index[seq] = len(history)
		history = append(history, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load runs: %w", err)
	}

	if err := s.loadOutcomes(ctx, history, index); err != nil {
		return nil, err
	}

	s.history = history
	s.pending = nil
	s.loaded = true
	return append(types.History{}, history...), nil
}

func (s *SQLiteRepository) loadOutcomes(ctx context.Context, history types.History, index map[int64]int) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_seq, url, browser, device_name, device_width, device_height,
			status, artifact_path, error, duration_ms
		FROM outcomes
		ORDER BY run_seq, position
	`)
	if err != nil {
		return fmt.Errorf("load outcomes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		var o types.Outcome
		var artifact, errMsg sql.NullString
		var duration sql.NullInt64

		err := rows.Scan(
			&seq, &o.URL, &o.Browser, &o.Device.Name, &o.Device.Width, &o.Device.Height,
			&o.Status, &artifact, &errMsg, &duration,
		)
		if err != nil {
			return fmt.Errorf("load outcomes: %w", err)
		}
		o.ArtifactPath = artifact.String
		o.Error = errMsg.String
		o.DurationMS = duration.Int64

		i, ok := index[seq]
		if !ok {
			continue
		}
		history[i].Outcomes = append(history[i].Outcomes, o)
	}
	return rows.Err()
}

func (s *SQLiteRepository) Append(run types.RunRecord) error {
	if !s.loaded {
		return ErrNotLoaded
	}
	s.history = s.history.Prepend(run)
	s.pending = append(s.pending, run)
	return nil
}

// Save inserts the runs appended since Load in one transaction
func (s *SQLiteRepository) Save(ctx context.Context) error {
	if !s.loaded {
		return ErrNotLoaded
	}
	if len(s.pending) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, run := range s.pending {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO runs (id, timestamp) VALUES (?, ?)`,
			run.ID, run.Timestamp.Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("save run %s: %w", run.ID, err)
		}
		seq, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("save run %s: %w", run.ID, err)
		}

		for pos, o := range run.Outcomes {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO outcomes (run_seq, position, url, browser, device_name,
					device_width, device_height, status, artifact_path, error, duration_ms)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, seq, pos, o.URL, string(o.Browser), o.Device.Name, o.Device.Width, o.Device.Height,
				string(o.Status), nullString(o.ArtifactPath), nullString(o.Error), o.DurationMS)
			if err != nil {
				return fmt.Errorf("save outcome %d of run %s: %w", pos, run.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.pending = nil
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
