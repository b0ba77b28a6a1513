package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexshd/sir"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSaveAndLoad(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	cfg := sir.DefaultConfig()
	cfg.Fatality = 0.1
	sim, err := sir.Simulate(cfg)
	require.NoError(t, err)

	beds := sir.DefaultCapacityConfig(150)
	id, err := st.Save(ctx, "default", cfg, &beds, sim.Samples())
	require.NoError(t, err)

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	run, err := st.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "default", run.Name)
	assert.Equal(t, sir.Euler, run.Scheme)
	assert.Equal(t, cfg, run.Config)
	assert.Equal(t, 51, run.Samples)
	require.NotNil(t, run.Capacity)
	assert.Equal(t, beds, *run.Capacity)

	series, err := st.Series(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, sim.Collect(), series)
}

func TestList_NewestFirst(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	st.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	cfg := sir.DefaultConfig()
	cfg.End = 3
	sim, err := sir.Simulate(cfg)
	require.NoError(t, err)

	first, err := st.Save(ctx, "first", cfg, nil, sim.Samples())
	require.NoError(t, err)
	second, err := st.Save(ctx, "second", cfg, nil, sim.Samples())
	require.NoError(t, err)

	runs, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0].ID)
	assert.Equal(t, first, runs[1].ID)
	assert.Equal(t, 4, runs[0].Samples)
	assert.Nil(t, runs[0].Capacity)
	assert.True(t, runs[0].CreatedAt.After(runs[1].CreatedAt))
}

func TestOpen_NewerSchemaRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	st, err := Open(path)
	require.NoError(t, err)
	_, err = st.db.Exec(`PRAGMA user_version = 99`)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestList_Empty(t *testing.T) {
	st := openTestStore(t)
	runs, err := st.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestGet_NotFound(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	_, err := st.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = st.Series(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestDelete(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	cfg := sir.DefaultConfig()
	sim, err := sir.Simulate(cfg)
	require.NoError(t, err)
	id, err := st.Save(ctx, "doomed", cfg, nil, sim.Samples())
	require.NoError(t, err)

	require.NoError(t, st.Delete(ctx, id))
	_, err = st.Get(ctx, id)
	assert.ErrorIs(t, err, ErrRunNotFound)

	var n int
	require.NoError(t, st.db.QueryRow(`SELECT COUNT(*) FROM samples WHERE run_id = ?`, id).Scan(&n))
	assert.Zero(t, n, "samples cascade with the run")

	assert.ErrorIs(t, st.Delete(ctx, id), ErrRunNotFound)
}

func TestSave_CancelledContext(t *testing.T) {
	st := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := sir.DefaultConfig()
	sim, err := sir.Simulate(cfg)
	require.NoError(t, err)

	_, err = st.Save(ctx, "cancelled", cfg, nil, sim.Samples())
	require.Error(t, err)

	runs, err := st.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	st, err := Open(path)
	require.NoError(t, err)
	cfg := sir.DefaultConfig()
	sim, err := sir.Simulate(cfg)
	require.NoError(t, err)
	id, err := st.Save(ctx, "kept", cfg, nil, sim.Samples())
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st, err = Open(path)
	require.NoError(t, err)
	defer st.Close()

	run, err := st.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "kept", run.Name)

	var version int
	require.NoError(t, st.db.QueryRow(`PRAGMA user_version`).Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestOpen_MigratesVersion1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE runs (
			id TEXT PRIMARY KEY, name TEXT NOT NULL, scheme TEXT NOT NULL,
			config TEXT NOT NULL, created_at INTEGER NOT NULL
		);
		PRAGMA user_version = 1;`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	st, err := Open(path)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	cfg := sir.DefaultConfig()
	sim, err := sir.Simulate(cfg)
	require.NoError(t, err)
	beds := sir.DefaultCapacityConfig(80)
	id, err := st.Save(ctx, "migrated", cfg, &beds, sim.Samples())
	require.NoError(t, err)

	run, err := st.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, run.Capacity)
	assert.Equal(t, 80.0, run.Capacity.Beds)

	var version int
	require.NoError(t, st.db.QueryRow(`PRAGMA user_version`).Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}
