package session

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"tailscale.com/tsweb"

	"github.com/banshee-data/posegrain/internal/httputil"
	"github.com/banshee-data/posegrain/internal/mapping"
	"github.com/banshee-data/posegrain/internal/output"
)

// maxMappingsBody bounds POSTed mapping sets.
const maxMappingsBody = 1 << 20

// PresetStore is the subset of the preset database the admin routes use.
type PresetStore interface {
	ListPresets(ctx context.Context) ([]string, error)
	LoadPreset(ctx context.Context, name string) ([]mapping.Mapping, error)
	SavePreset(ctx context.Context, name string, ms []mapping.Mapping) error
}

type statusView struct {
	Backend     output.Kind   `json:"backend"`
	Status      output.Status `json:"status"`
	Frames      uint64        `json:"frames"`
	EmptyFrames uint64        `json:"emptyFrames"`
	Mappings    int           `json:"mappings"`
}

func (s *Session) statusView() statusView {
	handled, empty := s.Frames()
	s.mu.Lock()
	n := len(s.mappings)
	s.mu.Unlock()
	return statusView{
		Backend:     s.backend.Kind,
		Status:      s.backend.Client.Status(),
		Frames:      handled,
		EmptyFrames: empty,
		Mappings:    n,
	}
}

// AttachAdminRoutes attaches session debugging endpoints to the given HTTP
// mux served at /debug/. presets may be nil. notFound reports whether a
// preset lookup error means the preset does not exist.
func (s *Session) AttachAdminRoutes(mux *http.ServeMux, presets PresetStore, notFound func(error) bool) {
	debug := tsweb.Debugger(mux)

	debug.KVFunc("output backend", func() any { return s.backend.Kind })
	debug.KVFunc("output status", func() any { return s.backend.Client.Status() })

	debug.HandleFunc("posegrain-status", "session and output status (JSON)", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, s.statusView())
	})

	debug.HandleFunc("posegrain-outputs", "outputs from the latest frame (JSON)", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, s.LastOutputs())
	})

	debug.HandleFunc("posegrain-telemetry", "latest engine scan telemetry (JSON)", func(w http.ResponseWriter, r *http.Request) {
		t, ok := s.Telemetry()
		if !ok {
			httputil.NotFound(w, "no telemetry received")
			return
		}
		httputil.WriteJSONOK(w, t)
	})

	debug.HandleFunc("posegrain-mappings", "current mapping set (JSON); POST to replace", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			httputil.WriteJSONOK(w, s.Mappings())
		case http.MethodPost:
			ms, err := readMappings(r)
			if err != nil {
				httputil.BadRequest(w, err.Error())
				return
			}
			if err := s.SetMappings(ms); err != nil {
				httputil.WriteJSONError(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			httputil.WriteJSONOK(w, s.Mappings())
		default:
			httputil.MethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	})

	debug.HandleSilentFunc("posegrain-reset-smoothing", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w, http.MethodPost)
			return
		}
		s.ResetSmoothing()
		w.WriteHeader(http.StatusNoContent)
	})

	if presets == nil {
		return
	}
	if notFound == nil {
		notFound = func(error) bool { return false }
	}

	debug.HandleFunc("posegrain-presets", "saved mapping presets (JSON)", func(w http.ResponseWriter, r *http.Request) {
		names, err := presets.ListPresets(r.Context())
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, names)
	})

	// POST name=<preset> applies a saved preset; PUT name=<preset> saves the
	// current mapping set under that name.
	debug.HandleSilentFunc("posegrain-preset-api", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(r.FormValue("name"))
		if name == "" {
			httputil.BadRequest(w, "missing name")
			return
		}
		switch r.Method {
		case http.MethodPost:
			ms, err := presets.LoadPreset(r.Context(), name)
			if err != nil {
				if notFound(err) {
					httputil.NotFound(w, fmt.Sprintf("preset %q not found", name))
					return
				}
				httputil.InternalServerError(w, err.Error())
				return
			}
			if err := s.SetMappings(ms); err != nil {
				httputil.WriteJSONError(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			httputil.WriteJSONOK(w, s.Mappings())
		case http.MethodPut:
			if err := presets.SavePreset(r.Context(), name, s.Mappings()); err != nil {
				httputil.InternalServerError(w, err.Error())
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			httputil.MethodNotAllowed(w, http.MethodPost, http.MethodPut)
		}
	})
}

func readMappings(r *http.Request) ([]mapping.Mapping, error) {
	var ms []mapping.Mapping
	if err := httputil.DecodeJSONBody(r, maxMappingsBody, &ms); err != nil {
		return nil, fmt.Errorf("mapping set: %w", err)
	}
	return ms, nil
}
