// Package main runs the embedded sync engine server for desktop
// platforms. Desktop clients communicate via REST/WebSocket on
// localhost.
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hkuo/vidsum/client/cmd/desktop/handlers"
	"github.com/hkuo/vidsum/client/internal/api"
	"github.com/hkuo/vidsum/client/internal/engine"
	"github.com/hkuo/vidsum/client/internal/logging"
	"github.com/hkuo/vidsum/client/internal/netwatch"
	"github.com/hkuo/vidsum/client/internal/scheduler"
	"github.com/hkuo/vidsum/client/internal/store"
	"github.com/hkuo/vidsum/client/internal/telemetry"
)

// listenPort is resolved once at startup so the WebSocket origin
// check can see it.
var listenPort = "8090"

func main() {
	logging.Init(os.Stdout, logging.LevelInfo)

	if p := os.Getenv("VIDSUM_PORT"); p != "" {
		listenPort = p
	}
	dataDir := os.Getenv("VIDSUM_DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}
	apiBase := os.Getenv("VIDSUM_API_URL")
	if apiBase == "" {
		apiBase = "http://localhost:8000"
	}
	probeURL := os.Getenv("VIDSUM_PROBE_URL")
	if probeURL == "" {
		probeURL = apiBase + "/api/health"
	}

	kv, err := store.NewSQLiteStore(dataDir)
	if err != nil {
		logging.Error("Failed to open local store", err, map[string]interface{}{"data_dir": dataDir})
		os.Exit(1)
	}

	remote := api.NewClient(apiBase, &http.Client{Timeout: 30 * time.Second})
	source := netwatch.NewPollingSource(probeURL, 10*time.Second)
	hub := NewWSHub()

	svc, err := engine.New(engine.Options{
		Store:         kv,
		Remote:        remote,
		NetworkSource: source,
		Tasks:         scheduler.NewTickerScheduler(),
		Sink:          hub,
	})
	if err != nil {
		logging.Error("Failed to build engine", err)
		os.Exit(1)
	}

	source.Start()
	if err := svc.Start(); err != nil {
		logging.Error("Failed to start engine", err)
		os.Exit(1)
	}

	queueHandler := handlers.NewQueueHandler(svc)
	cacheHandler := handlers.NewCacheHandler(svc)
	notifHandler := handlers.NewNotificationsHandler(svc)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/queue", queueHandler.Snapshot)
	mux.HandleFunc("POST /api/queue/mutations", queueHandler.Enqueue)
	mux.HandleFunc("POST /api/queue/drain", queueHandler.Drain)
	mux.HandleFunc("DELETE /api/queue", queueHandler.Clear)
	mux.HandleFunc("GET /api/network", queueHandler.Network)
	mux.HandleFunc("GET /api/cache/{ns}", cacheHandler.Info)
	mux.HandleFunc("DELETE /api/cache/{ns}", cacheHandler.Clear)
	mux.HandleFunc("GET /api/summaries/{id}", cacheHandler.Summary)
	mux.HandleFunc("GET /api/notifications", notifHandler.List)
	mux.HandleFunc("DELETE /api/notifications/{id}", notifHandler.Dismiss)
	mux.HandleFunc("GET /api/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(telemetry.Collect())
	})
	mux.HandleFunc("/ws", HandleWebSocket(hub))
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"vidsum-desktop"}`))
	})

	server := &http.Server{
		Addr:    "localhost:" + listenPort,
		Handler: mux,
	}

	go func() {
		logging.Info("Desktop server starting", map[string]interface{}{
			"port":     listenPort,
			"data_dir": dataDir,
			"api_base": apiBase,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("Server error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logging.Info("Shutting down")
	server.Close()
	source.Stop()
	if err := svc.Close(); err != nil {
		logging.Error("Engine shutdown error", err)
	}
}
