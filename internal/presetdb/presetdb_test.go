package presetdb

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/posegrain/internal/mapping"
	"github.com/banshee-data/posegrain/internal/params"
	"github.com/banshee-data/posegrain/internal/timeutil"
)

func openTestDB(t *testing.T) (*DB, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(time.UnixMilli(1_000))
	db, err := Open(filepath.Join(t.TempDir(), "presets.db"), clock)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, clock
}

func TestOpen_AppliesMigrations(t *testing.T) {
	db, _ := openTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// a second MigrateUp is a no-op
	require.NoError(t, db.MigrateUp())
}

func TestOpen_Pragmas(t *testing.T) {
	db, _ := openTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)
}

func TestMigrateDown(t *testing.T) {
	db, _ := openTestDB(t)

	require.NoError(t, db.MigrateDown())
	version, _, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	require.NoError(t, db.MigrateDown())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	require.NoError(t, db.MigrateUp())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
}

func TestSaveLoadPreset(t *testing.T) {
	db, _ := openTestDB(t)
	ctx := context.Background()
	ms := mapping.CreateDefaultMappings(params.MustDefault())
	ms[0].Transforms.Invert = true
	ms[1].Offset = -0.2

	require.NoError(t, db.SavePreset(ctx, " stage left ", ms))

	got, err := db.LoadPreset(ctx, "stage left")
	require.NoError(t, err)
	assert.Equal(t, ms, got)
}

func TestSavePreset_Replaces(t *testing.T) {
	db, clock := openTestDB(t)
	ctx := context.Background()
	ms := mapping.CreateDefaultMappings(params.MustDefault())

	require.NoError(t, db.SavePreset(ctx, "a", ms))
	clock.Advance(time.Second)
	require.NoError(t, db.SavePreset(ctx, "a", ms[:3]))

	got, err := db.LoadPreset(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, got, 3)

	infos, err := db.RecentPresets(ctx, 0)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, PresetInfo{Name: "a", MappingCount: 3, CreatedAtMs: 1_000, UpdatedAtMs: 2_000}, infos[0])
}

func TestSavePreset_InvalidName(t *testing.T) {
	db, _ := openTestDB(t)
	ctx := context.Background()

	assert.Error(t, db.SavePreset(ctx, "  ", nil))
	assert.Error(t, db.SavePreset(ctx, strings.Repeat("x", MaxNameLength+1), nil))
}

func TestSavePreset_Empty(t *testing.T) {
	db, _ := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SavePreset(ctx, "empty", nil))
	got, err := db.LoadPreset(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadPreset_NotFound(t *testing.T) {
	db, _ := openTestDB(t)
	_, err := db.LoadPreset(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrPresetNotFound)
}

func TestListAndRecentPresets(t *testing.T) {
	db, clock := openTestDB(t)
	ctx := context.Background()

	names, err := db.ListPresets(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	for _, name := range []string{"charlie", "alpha", "bravo"} {
		require.NoError(t, db.SavePreset(ctx, name, nil))
		clock.Advance(time.Millisecond)
	}

	names, err = db.ListPresets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, names)

	infos, err := db.RecentPresets(ctx, 2)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "bravo", infos[0].Name)
	assert.Equal(t, "alpha", infos[1].Name)
}

func TestDeletePreset(t *testing.T) {
	db, _ := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SavePreset(ctx, "gone", nil))
	require.NoError(t, db.DeletePreset(ctx, "gone"))
	assert.ErrorIs(t, db.DeletePreset(ctx, "gone"), ErrPresetNotFound)

	_, err := db.LoadPreset(ctx, "gone")
	assert.ErrorIs(t, err, ErrPresetNotFound)
}

func TestClosedDB(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "closed.db"), nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	ctx := context.Background()
	assert.Error(t, db.SavePreset(ctx, "x", nil))
	_, err = db.ListPresets(ctx)
	assert.Error(t, err)
	assert.ErrorContains(t, db.MigrateUp(), "failed to create sqlite driver")
}
