// Package store archives projection runs in SQLite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/alexshd/sir"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 2

// ErrRunNotFound is returned when a run ID is not in the archive.
var ErrRunNotFound = errors.New("run not found")

// Store is a SQLite-backed run archive.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the archive at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported %d", version, currentSchemaVersion)
	}
	if version < 2 {
		if err := migrateToV2(db); err != nil {
			return err
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV2 adds the bed settings column to runs.
func migrateToV2(db *sql.DB) error {
	if _, err := db.Exec(`ALTER TABLE runs ADD COLUMN capacity TEXT`); err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	return nil
}

// Run is an archived projection header.
type Run struct {
	ID        string
	Name      string
	Scheme    sir.Scheme
	Config    sir.Config
	Capacity  *sir.CapacityConfig // nil when the run had no bed line
	CreatedAt time.Time
	Samples   int
}

// Save writes cfg, the optional bed settings and every sample of samples
// in one transaction and returns the new run ID (UUIDv7, time ordered).
func (s *Store) Save(ctx context.Context, name string, cfg sir.Config, beds *sir.CapacityConfig, samples iter.Seq[sir.Sample]) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	var bedsJSON sql.NullString
	if beds != nil {
		data, err := json.Marshal(beds)
		if err != nil {
			return "", fmt.Errorf("marshal capacity: %w", err)
		}
		bedsJSON = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("save run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, name, scheme, config, capacity, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id.String(), name, string(cfg.Scheme), string(cfgJSON), bedsJSON, s.now().UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("save run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO samples (run_id, step, t, s, i, r, d) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("save samples: %w", err)
	}
	defer stmt.Close()

	for x := range samples {
		if _, err := stmt.ExecContext(ctx, id.String(), x.Step, x.T, x.S, x.I, x.R, x.Deceased); err != nil {
			return "", fmt.Errorf("save sample %d: %w", x.Step, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("save run: %w", err)
	}
	return id.String(), nil
}

// List returns run headers, newest first.
func (s *Store) List(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.scheme, r.config, r.capacity, r.created_at,
		       (SELECT COUNT(*) FROM samples WHERE run_id = r.id)
		FROM runs r
		ORDER BY r.created_at DESC, r.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Get returns one run header.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT r.id, r.name, r.scheme, r.config, r.capacity, r.created_at,
		       (SELECT COUNT(*) FROM samples WHERE run_id = r.id)
		FROM runs r
		WHERE r.id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// Series loads every sample of a run in step order.
func (s *Store) Series(ctx context.Context, id string) (sir.Series, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT step, t, s, i, r, d FROM samples WHERE run_id = ? ORDER BY step`, id)
	if err != nil {
		return nil, fmt.Errorf("load series: %w", err)
	}
	defer rows.Close()

	var out sir.Series
	for rows.Next() {
		var x sir.Sample
		if err := rows.Scan(&x.Step, &x.T, &x.S, &x.I, &x.R, &x.Deceased); err != nil {
			return nil, fmt.Errorf("load series: %w", err)
		}
		out = append(out, x)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load series: %w", err)
	}
	return out, nil
}

// Delete removes a run and its samples.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run      Run
		scheme   string
		cfgJSON  string
		bedsJSON sql.NullString
		created  int64
	)
	if err := sc.Scan(&run.ID, &run.Name, &scheme, &cfgJSON, &bedsJSON, &created, &run.Samples); err != nil {
		return Run{}, err
	}
	if err := json.Unmarshal([]byte(cfgJSON), &run.Config); err != nil {
		return Run{}, fmt.Errorf("decode config of run %s: %w", run.ID, err)
	}
	if bedsJSON.Valid {
		run.Capacity = new(sir.CapacityConfig)
		if err := json.Unmarshal([]byte(bedsJSON.String), run.Capacity); err != nil {
			return Run{}, fmt.Errorf("decode capacity of run %s: %w", run.ID, err)
		}
	}
	run.Scheme = sir.Scheme(scheme)
	run.CreatedAt = time.UnixMilli(created)
	return run, nil
}
