package presetdb

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/posegrain/internal/testutil"
)

func adminMux(t *testing.T, db *DB) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))
	return mux
}

func TestAdmin_Recent(t *testing.T) {
	db, clock := openTestDB(t)
	ctx := context.Background()
	for _, name := range []string{"one", "two", "three"} {
		require.NoError(t, db.SavePreset(ctx, name, nil))
		clock.Advance(time.Millisecond)
	}
	mux := adminMux(t, db)

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/debug/presetdb-recent?limit=2"))
	require.Equal(t, http.StatusOK, rec.Code)

	var infos []PresetInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	require.Len(t, infos, 2)
	assert.Equal(t, "three", infos[0].Name)
	assert.Equal(t, "two", infos[1].Name)

	rec = testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/debug/presetdb-recent?limit=x"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_Delete(t *testing.T) {
	db, _ := openTestDB(t)
	require.NoError(t, db.SavePreset(context.Background(), "doomed", nil))
	mux := adminMux(t, db)

	serve := func(method, target string) int {
		rec := testutil.NewTestRecorder()
		mux.ServeHTTP(rec, testutil.NewTestRequest(method, target))
		return rec.Code
	}

	assert.Equal(t, http.StatusMethodNotAllowed, serve(http.MethodGet, "/debug/presetdb-delete?name=doomed"))
	assert.Equal(t, http.StatusBadRequest, serve(http.MethodDelete, "/debug/presetdb-delete"))
	assert.Equal(t, http.StatusNoContent, serve(http.MethodDelete, "/debug/presetdb-delete?name=doomed"))
	assert.Equal(t, http.StatusNotFound, serve(http.MethodDelete, "/debug/presetdb-delete?name=doomed"))
}

func TestAdmin_Backup(t *testing.T) {
	db, _ := openTestDB(t)
	require.NoError(t, db.SavePreset(context.Background(), "kept", nil))
	mux := adminMux(t, db)

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/debug/presetdb-backup"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "presets-1.db.gz")

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "SQLite format 3\x00", string(data[:16]))
}
