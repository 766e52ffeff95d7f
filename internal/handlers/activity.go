package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"pivision/internal/camera"
	"pivision/internal/config"
	"pivision/internal/eventlog"
	"pivision/internal/logger"
	"pivision/internal/store"
)

// ActivityData is the paginated response payload for the activity feed.
type ActivityData struct {
	Records     []eventlog.Record `json:"records"`
	Length      int               `json:"length"`
	TotalPages  int               `json:"totalPages"`
	CurrentPage int               `json:"currentPage"`
	Limit       int               `json:"pageSize"`
}

// ActivityHandler lists recent activity records, newest first, with
// page/limit query parameters.
func ActivityHandler(activity *eventlog.Log, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 20)

		total, err := activity.Count()
		if err != nil {
			log.Error("Error counting activity records: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		records, err := activity.Recent(limit, (page-1)*limit)
		if err != nil {
			log.Error("Error querying activity records: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []eventlog.Record{}
		}

		data := ActivityData{
			Records:     records,
			Length:      total,
			TotalPages:  (total + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Error("Error encoding JSON response: %v", err)
		}
	}
}

// SnapshotHandler serves the current latest frame on demand. Before the
// first ingest it serves the placeholder so the endpoint never errors for
// lack of data. Repeated queries between ingress events return identical
// bytes.
func SnapshotHandler(frames *store.Store, cfg *config.Config, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frame, modified, err := frames.Read()
		if err == store.ErrNoFrame {
			w.Header().Set("Content-Type", "image/jpeg")
			w.Header().Set("X-Frame-Status", "awaiting-first-frame")
			w.Write(camera.Placeholder(cfg.CameraWidth, cfg.CameraHeight, time.Unix(0, 0)))
			return
		}
		if err != nil {
			log.Error("Error reading latest frame: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Last-Modified", modified.UTC().Format(http.TimeFormat))
		w.Write(frame)
	}
}

// StatsHandler serves aggregate activity statistics.
func StatsHandler(activity *eventlog.Log, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := activity.Stats()
		if err != nil {
			log.Error("Error computing stats: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats); err != nil {
			log.Error("Error encoding JSON response: %v", err)
		}
	}
}

// atoiDefault parses a positive integer, falling back to def on anything else.
func atoiDefault(value string, def int) int {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
