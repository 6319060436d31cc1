package presetdb

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/posegrain/internal/httputil"
	"github.com/banshee-data/posegrain/internal/monitoring"
)

// AttachAdminRoutes mounts preset database debugging routes under /debug/.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://posegrain.db", db.DB, &tailsql.DBOptions{
		Label: "Preset DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.HandleFunc("presetdb-recent", "recently updated presets (JSON); ?limit=N", func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				httputil.BadRequest(w, fmt.Sprintf("invalid limit %q", v))
				return
			}
			limit = n
		}
		infos, err := db.RecentPresets(r.Context(), limit)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, infos)
	})

	// DELETE name=<preset>
	debug.HandleSilentFunc("presetdb-delete", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			httputil.MethodNotAllowed(w, http.MethodDelete)
			return
		}
		name := strings.TrimSpace(r.URL.Query().Get("name"))
		if name == "" {
			httputil.BadRequest(w, "missing name")
			return
		}
		if err := db.DeletePreset(r.Context(), name); err != nil {
			if errors.Is(err, ErrPresetNotFound) {
				httputil.NotFound(w, err.Error())
				return
			}
			httputil.InternalServerError(w, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	debug.Handle("presetdb-backup", "Create and download a backup of the preset database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dir, err := os.MkdirTemp("", "posegrain-backup-")
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup dir: %v", err), http.StatusInternalServerError)
			return
		}
		defer func() {
			if err := os.RemoveAll(dir); err != nil {
				monitoring.Logf("presetdb: failed to remove backup dir: %v", err)
			}
		}()

		backupName := fmt.Sprintf("presets-%d.db", db.clock.Now().Unix())
		backupPath := filepath.Join(dir, backupName)
		if _, err := db.ExecContext(r.Context(), "VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}
		defer backupFile.Close()

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", backupName))
		w.Header().Set("Content-Type", "application/gzip")

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()
		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			monitoring.Logf("presetdb: failed to write backup: %v", err)
		}
	}))

	return nil
}
