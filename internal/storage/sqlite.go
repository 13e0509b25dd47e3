//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"quadcpg/internal/model"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func DefaultStoreKind() string {
	return KindSQLite
}

func newSQLiteStore(path string) (Store, error) {
	return NewSQLiteStore(path), nil
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run model.RunRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at = excluded.created_at,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, run.ID, run.CreatedAt, run.SchemaVersion, run.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (model.RunRecord, bool, error) {
	return queryOne(ctx, s, "run", `SELECT payload FROM runs WHERE id = ?`, id, DecodeRun)
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]model.RunRecord, error) {
	return queryAll(ctx, s, "run", DecodeRun, `SELECT id, payload FROM runs ORDER BY created_at, id`)
}

func (s *SQLiteStore) SaveTrial(ctx context.Context, trial model.TrialRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeTrial(trial)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO trials (id, run_id, trial_index, error, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			run_id = excluded.run_id,
			trial_index = excluded.trial_index,
			error = excluded.error,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, trial.ID, trial.RunID, trial.Index, trial.Report.Error, trial.SchemaVersion, trial.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetTrial(ctx context.Context, id string) (model.TrialRecord, bool, error) {
	return queryOne(ctx, s, "trial", `SELECT payload FROM trials WHERE id = ?`, id, DecodeTrial)
}

func (s *SQLiteStore) ListTrials(ctx context.Context, runID string) ([]model.TrialRecord, error) {
	return queryAll(ctx, s, "trial", DecodeTrial, `SELECT id, payload FROM trials WHERE run_id = ? ORDER BY trial_index`, runID)
}

func (s *SQLiteStore) SaveSweep(ctx context.Context, runID string, points []model.SweepPointRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeSweep(points)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO sweeps (run_id, payload)
		VALUES (?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			payload = excluded.payload
	`, runID, payload)
	return err
}

func (s *SQLiteStore) GetSweep(ctx context.Context, runID string) ([]model.SweepPointRecord, bool, error) {
	return queryOne(ctx, s, "sweep", `SELECT payload FROM sweeps WHERE run_id = ?`, runID, DecodeSweep)
}

// queryOne decodes the payload selected by key; a missing row is not an
// error.
func queryOne[T any](ctx context.Context, s *SQLiteStore, kind, query, key string, decode func([]byte) (T, error)) (T, bool, error) {
	var zero T
	db, err := s.getDB()
	if err != nil {
		return zero, false, err
	}
	var payload []byte
	if err := db.QueryRowContext(ctx, query, key).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, false, nil
		}
		return zero, false, err
	}
	v, err := decode(payload)
	if err != nil {
		return zero, false, fmt.Errorf("decode %s %s: %w", kind, key, err)
	}
	return v, true, nil
}

// queryAll decodes every (id, payload) row of query in order.
func queryAll[T any](ctx context.Context, s *SQLiteStore, kind string, decode func([]byte) (T, error), query string, args ...any) ([]T, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		v, err := decode(payload)
		if err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", kind, id, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errNotInitialized
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS trials (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			trial_index INTEGER NOT NULL,
			error REAL NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS trials_run ON trials (run_id, trial_index);
		CREATE TABLE IF NOT EXISTS sweeps (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
	`)
	return err
}
