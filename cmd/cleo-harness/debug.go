package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cleoruntime/cleo"
)

// debugServer exposes an engine's live state over plain HTTP, following the
// teacher's HTTPServer shape (health/stats/connections handlers wired onto
// one mux, graceful Start/Stop) with CLEO's own state in place of session
// connection stats.
type debugServer struct {
	port   int
	engine *cleo.Engine
	logger *slog.Logger
	server *http.Server
}

func newDebugServer(port int, engine *cleo.Engine, logger *slog.Logger) *debugServer {
	return &debugServer{port: port, engine: engine, logger: logger}
}

func (d *debugServer) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", d.healthHandler)
	mux.HandleFunc("/stats", d.statsHandler)
	mux.HandleFunc("/cheats", d.cheatsHandler)
	mux.HandleFunc("/scripts", d.scriptsHandler)

	addr := fmt.Sprintf(":%d", d.port)
	d.server = &http.Server{Addr: addr, Handler: mux}

	d.logger.Info("debug server starting", "address", addr)
	go func() {
		if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			d.logger.Error("debug server error", "error", err)
		}
	}()
	return nil
}

func (d *debugServer) Stop(ctx context.Context) error {
	if d.server == nil {
		return nil
	}
	return d.server.Shutdown(ctx)
}

func (d *debugServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy", "service": "cleo-harness"})
}

func (d *debugServer) statsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"catalogue_root":      d.engine.Catalogue.Root(),
		"resources":           len(d.engine.Catalogue.Resources()),
		"streams":             d.engine.Streaming.StreamCount(),
		"buffer_size_sectors": d.engine.Streaming.BufferSizeSectors(),
		"scripts_registered":  d.engine.Scripts.Len(),
	})
}

func (d *debugServer) cheatsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if d.engine.Cheats == nil {
		json.NewEncoder(w).Encode(map[string]string{"note": "no cheat manager installed"})
		return
	}
	json.NewEncoder(w).Encode(d.engine.Cheats.Snapshot())
}

func (d *debugServer) scriptsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(d.engine.Scripts.Snapshot())
}
