package handler

import (
	"errors"
	"net/http"
	"os"
	"strconv"

	"calendarcam/internal/logger"
	"calendarcam/internal/service/storage"

	"github.com/bytedance/sonic"
)

// GetCalendarHandler returns the last written record file.
func GetCalendarHandler(store *storage.ArtifactStore, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, err := store.ReadCalendar()
		if errors.Is(err, os.ErrNotExist) {
			http.Error(w, "No calendar captured yet", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("Error reading calendar: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, file, logger)
	}
}

// ViewDayHandler serves the crop of the day given in the "day" query parameter.
func ViewDayHandler(store *storage.ArtifactStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		day, err := strconv.Atoi(r.URL.Query().Get("day"))
		if err != nil {
			http.Error(w, "Day parameter is required", http.StatusBadRequest)
			return
		}
		path, err := store.DayPath(day)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.ServeFile(w, r, path)
	}
}

// GetStillsHandler lists the kept stills, newest first.
func GetStillsHandler(store *storage.ArtifactStore, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := store.ListStills()
		if err != nil {
			logger.Error("Error listing stills: %v", err)
			http.Error(w, "Unable to read stills directory", http.StatusInternalServerError)
			return
		}
		writeJSON(w, data, logger)
	}
}

// ViewStillHandler serves a single still named by the "name" query parameter.
func ViewStillHandler(store *storage.ArtifactStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := store.StillPath(r.URL.Query().Get("name"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.ServeFile(w, r, path)
	}
}

func writeJSON(w http.ResponseWriter, v any, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := sonic.ConfigStd.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}
