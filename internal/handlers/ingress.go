package handlers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image/jpeg"
	"io"
	"net/http"
	"time"

	"pivision/internal/config"
	"pivision/internal/detect"
	"pivision/internal/eventlog"
	"pivision/internal/hub"
	"pivision/internal/logger"
	"pivision/internal/store"
)

// maxUploadSize bounds ingress payloads (frame plus metadata).
const maxUploadSize = 16 << 20

// liveUpdate is the JSON shape broadcast to websocket viewers on each
// accepted capture event.
type liveUpdate struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
	FaceCount int             `json:"face_count"`
	Regions   []detect.Region `json:"regions"`
	Image     string          `json:"image"` // base64 JPEG
}

// CaptureHandler is the ingress endpoint. It validates that the payload is a
// decodable JPEG before touching any stored state, then atomically replaces
// the latest-frame slot, archives the snapshot, appends the activity record
// and broadcasts the event to live viewers.
func CaptureHandler(frames *store.Store, activity *eventlog.Log, live *hub.Hub, cfg *config.Config, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			log.Warning("Ingress rejected: malformed multipart payload: %v", err)
			http.Error(w, "Malformed payload", http.StatusBadRequest)
			return
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			log.Warning("Ingress rejected: missing frame part: %v", err)
			http.Error(w, "Missing frame", http.StatusBadRequest)
			return
		}
		defer file.Close()

		frame, err := io.ReadAll(file)
		if err != nil {
			log.Warning("Ingress rejected: unreadable frame part: %v", err)
			http.Error(w, "Unreadable frame", http.StatusBadRequest)
			return
		}

		// The invariant: a payload the receiver cannot decode is never
		// accepted as an event, and prior state stays untouched.
		if _, err := jpeg.DecodeConfig(bytes.NewReader(frame)); err != nil {
			log.Warning("Ingress rejected: frame is not a decodable JPEG: %v", err)
			http.Error(w, "Frame is not a valid JPEG", http.StatusBadRequest)
			return
		}

		ts := parseTimestamp(r.FormValue("timestamp"))
		source := r.FormValue("source")
		if source == "" {
			source = "real"
		}

		var detections detect.Result
		if raw := r.FormValue("detections"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &detections); err != nil {
				log.Warning("Ingress rejected: invalid detections payload: %v", err)
				http.Error(w, "Invalid detection metadata", http.StatusBadRequest)
				return
			}
		}
		if detections.Regions == nil {
			detections.Regions = []detect.Region{}
		}

		if err := frames.Write(frame); err != nil {
			log.Error("Failed to store latest frame: %v", err)
			http.Error(w, "Storage failure", http.StatusInternalServerError)
			return
		}

		filename, err := frames.Archive(frame, ts)
		if err != nil {
			log.Error("Failed to archive snapshot: %v", err)
			http.Error(w, "Storage failure", http.StatusInternalServerError)
			return
		}

		rec := &eventlog.Record{
			Timestamp: ts,
			Source:    source,
			FaceCount: len(detections.Regions),
			Regions:   detections.Regions,
			Filename:  filename,
		}
		if err := activity.Insert(rec); err != nil {
			log.Error("Failed to log activity record: %v", err)
			http.Error(w, "Storage failure", http.StatusInternalServerError)
			return
		}

		if cfg.MaxActivityEntries > 0 {
			if _, err := activity.PruneToCount(cfg.MaxActivityEntries); err != nil {
				log.Warning("Failed to prune activity log: %v", err)
			}
		}

		if live != nil {
			update := liveUpdate{
				ID:        rec.ID,
				Timestamp: rec.Timestamp,
				Source:    rec.Source,
				FaceCount: rec.FaceCount,
				Regions:   rec.Regions,
				Image:     base64.StdEncoding.EncodeToString(frame),
			}
			if msg, err := json.Marshal(update); err == nil {
				live.Broadcast(msg)
			}
		}

		if rec.FaceCount > 0 {
			log.Info("Capture event: %d face(s) from %s source", rec.FaceCount, rec.Source)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"status": "created", "id": rec.ID})
	}
}

// parseTimestamp accepts RFC3339 and falls back to the receive time.
func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Now()
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Now()
	}
	return ts
}
