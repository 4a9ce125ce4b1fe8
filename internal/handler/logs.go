package handler

import (
	"net/http"
	"os"

	"calendarcam/internal/logger"
)

// LogLevels are the levels whose files the status server exposes.
var LogLevels = []string{logger.LevelInfo, logger.LevelWarning, logger.LevelError}

// ShowLogsHandler serves the log file of one level as text/plain.
func ShowLogsHandler(logger *logger.Logger, level string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := logger.Path(level)

		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("Log file not found: " + level + ".log"))
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")

		http.ServeFile(w, r, filePath)
	}
}

// ClearLogsHandler truncates the log file of one level.
func ClearLogsHandler(logger *logger.Logger, level string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := logger.CleanLogs(level); err != nil {
			logger.Error("Error clearing %s logs: %v", level, err)
			http.Error(w, "Unable to clear logs", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
