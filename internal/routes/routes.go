package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"pivision/internal/config"
	"pivision/internal/eventlog"
	"pivision/internal/handlers"
	"pivision/internal/hub"
	"pivision/internal/logger"
	"pivision/internal/store"
)

// Setup registers the presentation-tier routes: capture ingress, the live
// multipart stream, snapshot/activity queries, the websocket feed and the
// log endpoints.
func Setup(frames *store.Store, activity *eventlog.Log, live *hub.Hub, cfg *config.Config, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Ingress (capture agent -> store)
	r.HandleFunc("/api/capture", handlers.CaptureHandler(frames, activity, live, cfg, log)).Methods(http.MethodPost)

	// Egress (store -> viewers)
	r.HandleFunc("/stream", handlers.StreamHandler(frames, cfg, log)).Methods(http.MethodGet)
	r.HandleFunc("/api/snapshot", handlers.SnapshotHandler(frames, cfg, log)).Methods(http.MethodGet)
	r.HandleFunc("/api/activity", handlers.ActivityHandler(activity, log)).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", handlers.StatsHandler(activity, log)).Methods(http.MethodGet)
	r.HandleFunc("/api/live", handlers.LiveHandler(live, log)).Methods(http.MethodGet)

	// Log endpoints
	r.HandleFunc("/logs/{level}", handlers.ShowLogsHandler(cfg)).Methods(http.MethodGet)
	r.HandleFunc("/logs/{level}/clear", handlers.ClearLogsHandler(log)).Methods(http.MethodPost)

	// Archived snapshots and the dashboard assets, if present
	r.PathPrefix("/captures/").Handler(http.StripPrefix("/captures/", http.FileServer(http.Dir(frames.SnapshotDir()))))
	r.PathPrefix("/").Handler(http.FileServer(http.Dir("static")))

	return r
}
