package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/posegrain/internal/config"
	"github.com/banshee-data/posegrain/internal/output"
	"github.com/banshee-data/posegrain/internal/params"
)

func TestLoadConfig_ExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	if err := os.WriteFile(path, []byte(`{"backend":"relay","relay_target":"10.0.0.2:9000"}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.GetBackend() != output.KindRelay || cfg.GetRelayTarget() != "10.0.0.2:9000" {
		t.Errorf("unexpected config %+v", cfg.OutputOptions())
	}
}

func TestLoadConfig_NoDefaultFile(t *testing.T) {
	// the test binary runs in cmd/posegrain where no config/ directory exists
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.GetBackend() != output.KindNative {
		t.Errorf("GetBackend() = %q, want native", cfg.GetBackend())
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name        string
		backend     string
		listen      string
		debug       bool
		wantBackend output.Kind
		wantListen  string
		wantErr     bool
	}{
		{name: "no overrides", wantBackend: output.KindNative, wantListen: "127.0.0.1:8090"},
		{name: "backend override", backend: "device", wantBackend: output.KindDevice, wantListen: "127.0.0.1:8090"},
		{name: "listen override", listen: ":9999", debug: true, wantBackend: output.KindNative, wantListen: ":9999"},
		{name: "bad backend", backend: "smoke-signal", wantErr: true},
		{name: "bad listen", listen: "nope", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.EmptyAppConfig()
			err := applyFlags(cfg, tc.backend, tc.listen, tc.debug)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("applyFlags: %v", err)
			}
			if cfg.GetBackend() != tc.wantBackend {
				t.Errorf("backend = %q, want %q", cfg.GetBackend(), tc.wantBackend)
			}
			if cfg.GetAdminListen() != tc.wantListen {
				t.Errorf("listen = %q, want %q", cfg.GetAdminListen(), tc.wantListen)
			}
			if cfg.GetDebug() != tc.debug {
				t.Errorf("debug = %v, want %v", cfg.GetDebug(), tc.debug)
			}
		})
	}
}

func TestLoadRegistry(t *testing.T) {
	reg, err := loadRegistry("")
	if err != nil {
		t.Fatalf("embedded registry: %v", err)
	}
	if len(reg.Params()) != len(params.CanonicalIDs) {
		t.Errorf("got %d params", len(reg.Params()))
	}

	if _, err := loadRegistry(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing registry file")
	}
}

func TestOpenInput(t *testing.T) {
	rc, err := openInput("-")
	if err != nil {
		t.Fatalf("stdin: %v", err)
	}
	rc.Close()

	path := filepath.Join(t.TempDir(), "frames.jsonl")
	if err := os.WriteFile(path, []byte("{}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	rc, err = openInput(path)
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "{}\n" {
		t.Errorf("read %q", data)
	}
}
