package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vburojevic/readtime/internal/config"
	"github.com/vburojevic/readtime/internal/domain"
)

func backends(t *testing.T) map[string]KV {
	t.Helper()
	dir := t.TempDir()

	file, err := NewFileKV(filepath.Join(dir, "state.json"))
	require.NoError(t, err)
	sqlite, err := NewSQLiteKV(context.Background(), filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]KV{
		"memory": NewMemoryKV(),
		"file":   file,
		"sqlite": sqlite,
	}
}

func TestKVGetPut(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := kv.Get(ctx, "missing")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, kv.Put(ctx, "k", []byte(`{"a":1}`)))
			got, err := kv.Get(ctx, "k")
			require.NoError(t, err)
			assert.JSONEq(t, `{"a":1}`, string(got))

			require.NoError(t, kv.Put(ctx, "k", []byte(`{"a":2}`)))
			got, err = kv.Get(ctx, "k")
			require.NoError(t, err)
			assert.JSONEq(t, `{"a":2}`, string(got))
		})
	}
}

func TestRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := NewRepository(kv)

			_, found, err := repo.LoadSession(ctx)
			require.NoError(t, err)
			assert.False(t, found)

			started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
			require.NoError(t, repo.SaveSession(ctx, domain.SessionState{
				CumulativeActiveSeconds:  42,
				NotificationAcknowledged: true,
				StartedAt:                started,
			}))
			st, found, err := repo.LoadSession(ctx)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, 42, st.CumulativeActiveSeconds)
			assert.True(t, st.NotificationAcknowledged)
			assert.True(t, started.Equal(st.StartedAt))
			assert.Equal(t, domain.SchemaVersion, st.SchemaVersion)

			require.NoError(t, repo.SaveSettings(ctx, domain.Settings{ThresholdSeconds: 120, Enabled: false}))
			s, found, err := repo.LoadSettings(ctx)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, domain.Settings{ThresholdSeconds: 120, Enabled: false}, s)

			var d domain.Dismissals
			d.Add("https://a.example.com/p/1")
			require.NoError(t, repo.SaveDismissals(ctx, d))
			loaded, found, err := repo.LoadDismissals(ctx)
			require.NoError(t, err)
			require.True(t, found)
			assert.True(t, loaded.Contains("https://a.example.com/p/1"))
		})
	}
}

func TestRepositoryRejectsInvalidSettings(t *testing.T) {
	repo := NewRepository(NewMemoryKV())
	err := repo.SaveSettings(context.Background(), domain.Settings{ThresholdSeconds: 5})
	require.ErrorIs(t, err, domain.ErrThresholdOutOfRange)
}

func TestRepositoryNormalizesStoredSettings(t *testing.T) {
	kv := NewMemoryKV()
	require.NoError(t, kv.Put(context.Background(), KeySettings, []byte(`{"threshold_seconds":99999,"enabled":true}`)))

	s, found, err := NewRepository(kv).LoadSettings(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.MaxThresholdSeconds, s.ThresholdSeconds)
}

func TestFileKVSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	kv, err := NewFileKV(path)
	require.NoError(t, err)
	require.NoError(t, NewRepository(kv).SaveSession(ctx, domain.SessionState{CumulativeActiveSeconds: 7}))

	reopened, err := NewFileKV(path)
	require.NoError(t, err)
	st, found, err := NewRepository(reopened).LoadSession(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 7, st.CumulativeActiveSeconds)
}

func TestFileKVCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	kv, err := NewFileKV(path)
	require.NoError(t, err)
	_, err = kv.Get(context.Background(), KeySession)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestFileKVRejectsInvalidJSON(t *testing.T) {
	kv, err := NewFileKV(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	require.Error(t, kv.Put(context.Background(), "k", []byte("nope")))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	kv, err := Open(ctx, config.StoreConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryKV{}, kv)

	kv, err = Open(ctx, config.StoreConfig{Backend: "file", Path: filepath.Join(dir, "s.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileKV{}, kv)

	kv, err = Open(ctx, config.StoreConfig{Backend: "sqlite", Path: filepath.Join(dir, "s.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteKV{}, kv)
	require.NoError(t, kv.Close())

	_, err = Open(ctx, config.StoreConfig{Backend: "etcd"})
	require.Error(t, err)
}

func TestStateDir(t *testing.T) {
	t.Run("override env wins", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv(StateDirEnv, dir)
		t.Setenv("XDG_STATE_HOME", "/somewhere/else")

		got, err := StateDir()
		require.NoError(t, err)
		assert.Equal(t, dir, got)
	})

	t.Run("xdg state home", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv(StateDirEnv, "")
		t.Setenv("XDG_STATE_HOME", dir)

		got, err := StateDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "readtime"), got)

		p, err := DefaultPath(BackendSQLite)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "readtime", "state.db"), p)
	})
}
