// Command grain-relay accepts relayed control messages over gRPC and
// forwards them to the synthesis engine as OSC over UDP. It is the far end
// of the relay output backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hypebeast/go-osc/osc"
	"google.golang.org/grpc"
	"tailscale.com/tsweb"

	"github.com/banshee-data/posegrain/internal/monitoring"
	"github.com/banshee-data/posegrain/internal/output"
	"github.com/banshee-data/posegrain/internal/version"
)

var (
	listen      = flag.String("listen", ":9000", "gRPC listen address")
	engineHost  = flag.String("engine-host", "127.0.0.1", "Synthesis engine OSC host")
	enginePort  = flag.Int("engine-port", 57120, "Synthesis engine OSC port")
	adminListen = flag.String("admin", "127.0.0.1:8091", "Admin listen address (empty disables)")
	debugLog    = flag.Bool("debug", false, "Log forwarding failures")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// Relayed messages are a handful of scalars.
const maxMsgSize = 64 * 1024

func newRelayServer(host string, port int) (*grpc.Server, *output.RelayServer) {
	relay := output.NewRelayServer(output.NewOSCSink(osc.NewClient(host, port)))
	server := grpc.NewServer(grpc.MaxRecvMsgSize(maxMsgSize))
	relay.Register(server)
	return server, relay
}

func attachAdminRoutes(mux *http.ServeMux, relay *output.RelayServer, engine string) {
	debug := tsweb.Debugger(mux)
	debug.KVFunc("engine", func() any { return engine })
	debug.KVFunc("forwarded", func() any { return relay.Forwarded() })
	debug.KVFunc("failed", func() any { return relay.Failed() })
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if *enginePort < 1 || *enginePort > 65535 {
		log.Fatalf("invalid engine port %d", *enginePort)
	}
	monitoring.SetDebug(*debugLog)

	server, relay := newRelayServer(*engineHost, *enginePort)
	engine := net.JoinHostPort(*engineHost, fmt.Sprint(*enginePort))

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("grain-relay %s listening on %s, forwarding to %s", version.String(), lis.Addr(), engine)
		if err := server.Serve(lis); err != nil {
			log.Printf("gRPC server error: %v", err)
			stop()
		}
	}()

	if *adminListen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mux := http.NewServeMux()
			attachAdminRoutes(mux, relay, engine)
			admin := &http.Server{Addr: *adminListen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Printf("admin server failed: %v", err)
				}
			}()
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := admin.Shutdown(shutdownCtx); err != nil {
				log.Printf("admin server shutdown error: %v", err)
			}
		}()
	}

	<-ctx.Done()
	log.Println("shutting down relay...")
	server.GracefulStop()

	wg.Wait()
	log.Printf("relay stopped (forwarded=%d failed=%d)", relay.Forwarded(), relay.Failed())
}
