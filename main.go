package main

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tankdown/server/internal/auth"
	"tankdown/server/logging"
	"tankdown/server/logging/sinks"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverCfg := loadServerConfig()
	matchCfg := loadMatchConfig()

	router, err := buildLogRouter(serverCfg)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		router.Close(closeCtx)
	}()

	telemetry := newTelemetryCounters()
	registry := newRegistry(router, telemetry)
	provider := auth.NewStaticProvider()
	server := newGameServer(serverCfg, registry, provider, router, telemetry)
	matchmaker := newMatchmaker(matchCfg, registry, router, telemetry)

	go registry.RunHeartbeatSweep(ctx, serverCfg.HeartbeatInterval, serverCfg.DisconnectAfter)
	go matchmaker.Run(ctx)

	ln, err := net.Listen("tcp", serverCfg.TCPAddr)
	if err != nil {
		log.Fatalf("listen %s: %v", serverCfg.TCPAddr, err)
	}
	go server.serveTCP(ctx, ln)
	log.Printf("game server listening on %s (tcp) and %s (http)", serverCfg.TCPAddr, serverCfg.HTTPAddr)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		server.handleWS(ctx, w, r)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/diagnostics", func(w http.ResponseWriter, r *http.Request) {
		stats := router.Stats()
		payload := struct {
			Telemetry telemetrySnapshot `json:"telemetry"`
			Logging   struct {
				EventsTotal  uint64 `json:"eventsTotal"`
				DroppedTotal uint64 `json:"droppedTotal"`
			} `json:"logging"`
		}{Telemetry: telemetry.Snapshot()}
		payload.Logging.EventsTotal = stats.EventsTotal
		payload.Logging.DroppedTotal = stats.DroppedTotal

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(payload)
	})

	httpServer := &http.Server{Addr: serverCfg.HTTPAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("http server: %v", err)
	}
}

// buildLogRouter assembles the event router: console always, JSON file sink
// when a path is configured.
func buildLogRouter(cfg serverConfig) (*logging.Router, error) {
	logCfg := logging.DefaultConfig()
	named := []logging.NamedSink{
		{Name: "console", Sink: sinks.NewConsoleSink(os.Stdout, logCfg.Console)},
	}
	if cfg.LogJSONPath != "" {
		file, err := os.OpenFile(cfg.LogJSONPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		logCfg.EnabledSinks = append(logCfg.EnabledSinks, "json")
		named = append(named, logging.NamedSink{Name: "json", Sink: sinks.NewJSON(file, logCfg.JSON.FlushInterval)})
	}
	return logging.NewRouter(nil, logCfg, named)
}
