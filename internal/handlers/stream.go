package handlers

import (
	"fmt"
	"net/http"
	"time"

	"pivision/internal/camera"
	"pivision/internal/config"
	"pivision/internal/logger"
	"pivision/internal/store"
)

const streamBoundary = "frame"

// StreamHandler serves the continuous multipart image stream. Each viewer
// runs its own loop: poll the latest-frame slot's change marker at the
// configured interval, send a chunk only when the slot changed, and stop
// only when the viewer disconnects. Before the first ingest the viewer gets
// a placeholder frame so the stream is well-defined from the start.
func StreamHandler(frames *store.Store, cfg *config.Config, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+streamBoundary)
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "close")

		var lastSent time.Time
		sentPlaceholder := false

		send := func(chunk []byte) error {
			_, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", streamBoundary, len(chunk))
			if err != nil {
				return err
			}
			if _, err := w.Write(chunk); err != nil {
				return err
			}
			if _, err := fmt.Fprint(w, "\r\n"); err != nil {
				return err
			}
			flusher.Flush()
			return nil
		}

		ticker := time.NewTicker(cfg.StreamPollInterval)
		defer ticker.Stop()

		for {
			modified, err := frames.LastModified()
			switch {
			case err == store.ErrNoFrame:
				if !sentPlaceholder {
					if err := send(camera.Placeholder(cfg.CameraWidth, cfg.CameraHeight, time.Now())); err != nil {
						return
					}
					sentPlaceholder = true
				}
			case err != nil:
				log.Error("Stream failed to check latest frame: %v", err)
			case modified.After(lastSent):
				frame, modTime, err := frames.Read()
				if err != nil {
					log.Error("Stream failed to read latest frame: %v", err)
					break
				}
				if err := send(frame); err != nil {
					return
				}
				lastSent = modTime
			}

			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
			}
		}
	}
}
