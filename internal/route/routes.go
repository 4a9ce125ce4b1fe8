package route

import (
	"net/http"

	"calendarcam/internal/config"
	"calendarcam/internal/handler"
	"calendarcam/internal/logger"
	"calendarcam/internal/middleware"
	"calendarcam/internal/service/storage"
	"calendarcam/internal/service/websocket"
)

// SetupRoutes registers the status feed endpoints and wraps the mux with
// token authentication.
func SetupRoutes(cfg *config.Config, logger *logger.Logger, hub *websocket.HubService, store *storage.ArtifactStore) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	// API endpoints
	mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(hub, logger))
	mux.HandleFunc("/api/calendar", handler.GetCalendarHandler(store, logger))
	mux.HandleFunc("/api/calendar/day", handler.ViewDayHandler(store))
	mux.HandleFunc("/api/stills", handler.GetStillsHandler(store, logger))
	mux.HandleFunc("/api/stills/view", handler.ViewStillHandler(store))

	// Log endpoints
	for _, level := range handler.LogLevels {
		mux.HandleFunc("/logs/"+level, handler.ShowLogsHandler(logger, level))
		mux.HandleFunc("/logs/"+level+"/clear", handler.ClearLogsHandler(logger, level))
	}

	return middleware.TokenAuth(cfg.StatusToken, mux)
}
