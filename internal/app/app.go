package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"calendarcam/internal/config"
	"calendarcam/internal/frame"
	"calendarcam/internal/logger"
	"calendarcam/internal/route"
	"calendarcam/internal/service"
	"calendarcam/internal/service/camera"
	"calendarcam/internal/service/extract"
	"calendarcam/internal/service/inbox"
	"calendarcam/internal/service/motion"
	"calendarcam/internal/service/ocr"
	"calendarcam/internal/service/storage"
	"calendarcam/internal/service/websocket"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config   *config.Config
	logger   *logger.Logger
	text     ocr.TextExtractor
	store    *storage.ArtifactStore
	hub      *websocket.HubService
	pipeline *service.Pipeline
}

func NewApp(ctx context.Context) (*App, error) {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	text, err := ocr.New(ctx, cfg, log)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to set up text extraction: %w", err)
	}

	store := storage.NewArtifactStore(cfg, log)

	// a typed nil would slip past the pipeline's nil check
	var publisher service.Publisher
	var hub *websocket.HubService
	if cfg.StatusPort > 0 {
		hub = websocket.NewHubService(cfg, log)
		publisher = hub
	}

	extractor := extract.NewCellExtractor(cfg, text, store, log)
	pipeline, err := service.NewPipeline(cfg, extractor, store, publisher, log)
	if err != nil {
		text.Close()
		log.Close()
		return nil, err
	}

	return &App{
		config:   cfg,
		logger:   log,
		text:     text,
		store:    store,
		hub:      hub,
		pipeline: pipeline,
	}, nil
}

// Run is the unattended loop: watch the wall for motion, capture a still once
// it settles and digitize it.
func (a *App) Run(ctx context.Context) error {
	a.serveStatus(ctx)

	cam := camera.NewVideoCamera(a.config, a.logger)
	defer cam.Close()
	monitor := motion.NewMonitor(a.config, motion.NewDiffScorer(a.config), a.logger)
	defer monitor.Close()

	var publisher service.Publisher
	if a.hub != nil {
		publisher = a.hub
	}
	controller := service.NewCaptureController(a.config, cam, monitor, a.pipeline, a.store, publisher, a.logger)

	a.logger.Info("📅 Calendar camera")
	a.logger.Info("📷 Device: %d (%dx%d monitoring, %dx%d stills)", a.config.CameraDevice,
		a.config.MonitorWidth, a.config.MonitorHeight, a.config.StillWidth, a.config.StillHeight)
	a.logger.Info("🧮 Grid: %s, %dx%d", a.pipeline.Strategy(), a.config.GridRows, a.config.GridCols)
	a.logger.Info("📁 Output: %s", a.config.OutputDirectory)

	return controller.Run(ctx)
}

// Digitize runs every image through the pipeline. A failing image does not
// stop the rest; the returned error counts the failures.
func (a *App) Digitize(ctx context.Context, paths []string) error {
	failed := 0
	for _, path := range paths {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := a.digitizeFile(ctx, path); err != nil {
			a.logger.Error("%s: %v", filepath.Base(path), err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(paths))
	}
	return nil
}

func (a *App) digitizeFile(ctx context.Context, path string) error {
	still, err := frame.Load(path)
	if err != nil {
		return err
	}
	defer still.Close()

	cal, err := a.pipeline.Run(ctx, still)
	if err != nil {
		return err
	}
	a.logger.Info("✅ %s: %d days written to %s", filepath.Base(path), len(cal.Days), a.config.RecordsPath())
	return nil
}

// WatchInbox digitizes images dropped into the inbox directory until ctx is
// cancelled.
func (a *App) WatchInbox(ctx context.Context) error {
	a.serveStatus(ctx)

	watcher, err := inbox.NewWatcher(a.config, a.logger)
	if err != nil {
		return err
	}
	defer watcher.Close()

	return watcher.Run(ctx, a.digitizeFile)
}

// serveStatus starts the hub and the status server when a port is configured.
// Both stop with ctx.
func (a *App) serveStatus(ctx context.Context) {
	if a.hub == nil {
		return
	}
	go a.hub.Run(ctx)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.StatusPort),
		Handler: route.SetupRoutes(a.config, a.logger, a.hub, a.store),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Warning("Status server shutdown: %v", err)
		}
	}()
	go func() {
		a.logger.Info("🚀 Status feed on http://localhost:%d", a.config.StatusPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Status server failed: %v", err)
		}
	}()
}

func (a *App) Close() {
	if err := a.text.Close(); err != nil {
		a.logger.Warning("Failed to close text extractor: %v", err)
	}
	a.logger.Close()
}
