package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/posegrain/internal/config"
	"github.com/banshee-data/posegrain/internal/monitoring"
	"github.com/banshee-data/posegrain/internal/output"
	"github.com/banshee-data/posegrain/internal/params"
	"github.com/banshee-data/posegrain/internal/pose"
	"github.com/banshee-data/posegrain/internal/presetdb"
	"github.com/banshee-data/posegrain/internal/session"
	"github.com/banshee-data/posegrain/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a JSON config file (default "+config.DefaultConfigPath+" if present)")
	input       = flag.String("input", "-", "Pose frame source: JSON lines file, or - for stdin")
	listen      = flag.String("listen", "", "Admin listen address (overrides config)")
	backendKind = flag.String("backend", "", "Output backend: native, relay or device (overrides config)")
	debugLog    = flag.Bool("debug", false, "Log per-message transport failures")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// loadConfig reads path, or the default config file when path is empty and
// that file exists. With neither, every option takes its default.
func loadConfig(path string) (*config.AppConfig, error) {
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); errors.Is(err, fs.ErrNotExist) {
			return config.EmptyAppConfig(), nil
		}
		path = config.DefaultConfigPath
	}
	return config.LoadAppConfig(path)
}

// applyFlags copies explicitly set command line overrides into cfg.
func applyFlags(cfg *config.AppConfig, backend, listen string, debug bool) error {
	if backend != "" {
		cfg.Backend = &backend
	}
	if listen != "" {
		cfg.AdminListen = &listen
	}
	if debug {
		cfg.Debug = &debug
	}
	return cfg.Validate()
}

func loadRegistry(path string) (*params.Registry, error) {
	if path == "" {
		return params.Default()
	}
	return params.LoadRegistry(path)
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// logStatus reports backend status transitions.
func logStatus(kind output.Kind) func(output.Status) {
	return func(st output.Status) {
		log.Printf("%s output: %s", kind, st)
	}
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := applyFlags(cfg, *backendKind, *listen, *debugLog); err != nil {
		log.Fatalf("invalid flags: %v", err)
	}
	monitoring.SetDebug(cfg.GetDebug())
	log.Printf("posegrain %s", version.String())

	reg, err := loadRegistry(cfg.GetRegistryPath())
	if err != nil {
		log.Fatalf("failed to load parameter registry: %v", err)
	}

	backend, err := output.NewBackend(cfg.OutputOptions())
	if err != nil {
		log.Fatalf("failed to create %s output: %v", cfg.GetBackend(), err)
	}
	unsubscribe := backend.Client.SubscribeStatus(logStatus(backend.Kind))
	defer unsubscribe()

	sess, err := session.New(session.Config{
		Registry:      reg,
		Backend:       backend,
		AddressPrefix: cfg.GetAddressPrefix(),
	})
	if err != nil {
		backend.Close()
		log.Fatalf("failed to create session: %v", err)
	}
	defer sess.Close()

	var presets *presetdb.DB
	if path := cfg.GetPresetDBPath(); path != "" {
		presets, err = presetdb.Open(path, nil)
		if err != nil {
			log.Fatalf("failed to open preset database: %v", err)
		}
		defer presets.Close()
	}

	in, err := openInput(*input)
	if err != nil {
		log.Fatalf("failed to open pose input: %v", err)
	}
	defer in.Close()
	reader := pose.NewFrameReader(in)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend.Client.Connect(ctx)

	// Capacity 1: the session always works on the newest frame.
	frames := make(chan *pose.Frame, 1)

	// read pose frames until the input ends, then stop everything
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(frames)
		if err := reader.Monitor(ctx, frames); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to read pose frames: %v", err)
		}
		log.Printf("frame reader terminated (dropped=%d invalid=%d)", reader.Dropped(), reader.Invalid())
		stop()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sess.Run(ctx, frames); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("session stopped: %v", err)
		}
		handled, empty := sess.Frames()
		log.Printf("session routine terminated (frames=%d empty=%d)", handled, empty)
	}()

	if addr := cfg.GetAdminListen(); addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()

			mux := http.NewServeMux()
			var store session.PresetStore
			if presets != nil {
				store = presets
				if err := presets.AttachAdminRoutes(mux); err != nil {
					log.Printf("preset admin routes disabled: %v", err)
				}
			}
			sess.AttachAdminRoutes(mux, store, func(err error) bool {
				return errors.Is(err, presetdb.ErrPresetNotFound)
			})

			server := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Printf("admin server failed: %v", err)
				}
			}()

			<-ctx.Done()
			log.Println("shutting down admin server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Printf("admin server shutdown error: %v", err)
			}
			log.Printf("admin server routine stopped")
		}()
	}

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
