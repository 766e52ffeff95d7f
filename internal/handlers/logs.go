package handlers

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"

	"pivision/internal/config"
	"pivision/internal/logger"
)

// validLogLevels maps the {level} route variable to its log file.
var validLogLevels = map[string]string{
	"info":    "info.log",
	"warning": "warning.log",
	"error":   "error.log",
}

// ShowLogsHandler serves one of the level log files as plain text.
func ShowLogsHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename, ok := validLogLevels[mux.Vars(r)["level"]]
		if !ok {
			http.NotFound(w, r)
			return
		}

		filePath := filepath.Join(cfg.LogDirectory, filename)
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("Log file not found: " + filename))
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, filePath)
	}
}

// ClearLogsHandler truncates one of the level log files.
func ClearLogsHandler(log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename, ok := validLogLevels[mux.Vars(r)["level"]]
		if !ok {
			http.NotFound(w, r)
			return
		}
		log.CleanLogs(filename)
		w.WriteHeader(http.StatusNoContent)
	}
}
