// Package presetdb stores named mapping sets in SQLite.
package presetdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/posegrain/internal/mapping"
	"github.com/banshee-data/posegrain/internal/monitoring"
	"github.com/banshee-data/posegrain/internal/timeutil"
)

// ErrPresetNotFound is returned when no preset has the requested name.
var ErrPresetNotFound = errors.New("preset not found")

// MaxNameLength bounds preset names.
const MaxNameLength = 128

// pragmas are applied to every pooled connection.
var pragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"temp_store(MEMORY)",
}

type DB struct {
	*sql.DB
	clock timeutil.Clock
}

// PresetInfo summarises a stored preset.
type PresetInfo struct {
	Name         string `json:"name"`
	MappingCount int    `json:"mappingCount"`
	CreatedAtMs  int64  `json:"createdAtMs"`
	UpdatedAtMs  int64  `json:"updatedAtMs"`
}

// Open opens the database at path and applies pending migrations.
func Open(path string, clock timeutil.Clock) (*DB, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	q := url.Values{"_pragma": pragmas}
	sqlDB, err := sql.Open("sqlite", path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("open preset database %s: %w", path, err)
	}
	db := &DB{DB: sqlDB, clock: clock}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	monitoring.Logf("presetdb: opened %s", path)
	return db, nil
}

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("preset name is empty")
	}
	if len(name) > MaxNameLength {
		return "", fmt.Errorf("preset name exceeds %d bytes", MaxNameLength)
	}
	return name, nil
}

// SavePreset stores ms under name, replacing any existing preset with that
// name. The mappings are stored as given; validation belongs to whoever
// installs them.
func (db *DB) SavePreset(ctx context.Context, name string, ms []mapping.Mapping) error {
	name, err := validName(name)
	if err != nil {
		return err
	}
	if ms == nil {
		ms = []mapping.Mapping{}
	}
	data, err := json.Marshal(ms)
	if err != nil {
		return fmt.Errorf("encode preset %q: %w", name, err)
	}
	now := timeutil.UnixMillis(db.clock)
	_, err = db.ExecContext(ctx, `
		INSERT INTO presets (name, mappings_json, mapping_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			mappings_json = excluded.mappings_json,
			mapping_count = excluded.mapping_count,
			updated_at    = excluded.updated_at
	`, name, string(data), len(ms), now, now)
	if err != nil {
		return fmt.Errorf("save preset %q: %w", name, err)
	}
	return nil
}

// LoadPreset returns the mappings stored under name.
func (db *DB) LoadPreset(ctx context.Context, name string) ([]mapping.Mapping, error) {
	name = strings.TrimSpace(name)
	var data string
	err := db.QueryRowContext(ctx, `SELECT mappings_json FROM presets WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrPresetNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("load preset %q: %w", name, err)
	}
	var ms []mapping.Mapping
	if err := json.Unmarshal([]byte(data), &ms); err != nil {
		return nil, fmt.Errorf("decode preset %q: %w", name, err)
	}
	return ms, nil
}

// ListPresets returns every preset name in alphabetical order.
func (db *DB) ListPresets(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM presets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan preset name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// RecentPresets describes presets, most recently updated first.
func (db *DB) RecentPresets(ctx context.Context, limit int) ([]PresetInfo, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT name, mapping_count, created_at, updated_at
		FROM presets
		ORDER BY updated_at DESC, name
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent presets: %w", err)
	}
	defer rows.Close()

	out := []PresetInfo{}
	for rows.Next() {
		var p PresetInfo
		if err := rows.Scan(&p.Name, &p.MappingCount, &p.CreatedAtMs, &p.UpdatedAtMs); err != nil {
			return nil, fmt.Errorf("scan preset: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeletePreset removes the preset called name.
func (db *DB) DeletePreset(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	res, err := db.ExecContext(ctx, `DELETE FROM presets WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete preset %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete preset %q: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrPresetNotFound, name)
	}
	return nil
}
