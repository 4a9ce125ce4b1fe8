package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"calendarcam/internal/config"
	"calendarcam/internal/dto"
	"calendarcam/internal/frame"
	"calendarcam/internal/logger"
	"calendarcam/internal/model"
	"calendarcam/internal/service/camera"
	"calendarcam/internal/service/motion"

	"gocv.io/x/gocv"
)

// Processor digitizes a captured still. Pipeline implements it.
type Processor interface {
	Run(ctx context.Context, still *frame.Frame) (*model.Calendar, error)
}

// StillSaver keeps the raw capture regardless of the pipeline outcome.
type StillSaver interface {
	SaveStill(data []byte, capturedAt time.Time, suffix string) (string, error)
}

// CaptureController owns the camera. It polls low-resolution frames into the
// motion monitor and, when the scene settles, switches to the still profile,
// takes one photo and runs it through the processor. Polling is blocked while
// a capture is in progress.
type CaptureController struct {
	camera    camera.Camera
	monitor   *motion.Monitor
	processor Processor
	stills    StillSaver
	publisher Publisher
	logger    *logger.Logger

	monitorProfile camera.Profile
	stillProfile   camera.Profile
	pollInterval   time.Duration
	settleDelay    time.Duration
	stabilizeDelay time.Duration
	autofocusDelay time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

func NewCaptureController(config *config.Config, cam camera.Camera, monitor *motion.Monitor, processor Processor,
	stills StillSaver, publisher Publisher, logger *logger.Logger) *CaptureController {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &CaptureController{
		camera:         cam,
		monitor:        monitor,
		processor:      processor,
		stills:         stills,
		publisher:      publisher,
		logger:         logger,
		monitorProfile: camera.MonitorProfile(config),
		stillProfile:   camera.StillProfile(config),
		pollInterval:   config.PollInterval,
		settleDelay:    config.CaptureSettleDelay,
		stabilizeDelay: config.StillStabilizeDelay,
		autofocusDelay: config.AutofocusDelay,
		sleep:          sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run polls until ctx is cancelled. Frame, pipeline and camera errors are
// logged and never end the loop.
func (c *CaptureController) Run(ctx context.Context) error {
	if err := c.startMonitoring(); err != nil {
		return err
	}
	defer c.camera.Stop()

	c.logger.Info("🎬 Monitoring for motion every %v", c.pollInterval)
	// let exposure settle before the first reference frame
	if err := c.sleep(ctx, c.stabilizeDelay); err != nil {
		return nil
	}

	for {
		if ctx.Err() != nil {
			c.logger.Info("🛑 Monitoring stopped")
			return nil
		}
		c.poll(ctx)
		if err := c.sleep(ctx, c.pollInterval); err != nil {
			c.logger.Info("🛑 Monitoring stopped")
			return nil
		}
	}
}

func (c *CaptureController) poll(ctx context.Context) {
	f, err := c.camera.CaptureFrame()
	if errors.Is(err, camera.ErrNotStarted) {
		if err := c.startMonitoring(); err != nil {
			c.logger.Error("Failed to restart monitoring: %v", err)
		}
		return
	}
	if err != nil {
		c.logger.Warning("Failed to read monitoring frame: %v", err)
		return
	}
	transition, err := c.monitor.Observe(f)
	f.Close()
	if err != nil {
		c.logger.Warning("Failed to score frame: %v", err)
		return
	}

	if transition.From != transition.To {
		c.publisher.Publish(dto.StatusEvent{
			Type:  dto.EventMotion,
			Time:  transition.At,
			State: transition.To.String(),
			Score: transition.Score,
		})
	}
	if transition.Capture {
		if err := c.Capture(ctx); err != nil {
			c.logger.Error("Capture failed: %v", err)
			c.publisher.Publish(dto.StatusEvent{Type: dto.EventFailure, Time: time.Now(), Error: err.Error()})
		}
	}
}

func (c *CaptureController) startMonitoring() error {
	if err := c.camera.Configure(c.monitorProfile); err != nil {
		return fmt.Errorf("failed to configure monitoring profile: %w", err)
	}
	if err := c.camera.Start(); err != nil {
		return fmt.Errorf("failed to start monitoring: %w", err)
	}
	return nil
}

// Capture takes one still and processes it. The camera always returns to the
// monitoring profile and the monitor is reset, whatever the outcome.
func (c *CaptureController) Capture(ctx context.Context) error {
	c.publisher.Publish(dto.StatusEvent{Type: dto.EventCapture, Time: time.Now(), Source: c.stillProfile.Name})
	defer c.resumeMonitoring()

	if err := c.camera.Stop(); err != nil {
		c.logger.Warning("Failed to stop monitoring stream: %v", err)
	}
	if err := c.sleep(ctx, c.settleDelay); err != nil {
		return err
	}

	if err := c.camera.Configure(c.stillProfile); err != nil {
		return fmt.Errorf("failed to configure still profile: %w", err)
	}
	if err := c.camera.Start(); err != nil {
		return fmt.Errorf("failed to start still stream: %w", err)
	}
	if err := c.sleep(ctx, c.stabilizeDelay); err != nil {
		return err
	}

	c.focus(ctx)
	c.bestEffort(camera.AutoExposure, 1)
	c.bestEffort(camera.AutoGain, 0)

	raw, err := c.camera.CaptureStill()
	if err != nil {
		return fmt.Errorf("failed to capture still: %w", err)
	}
	defer raw.Close()
	// the camera is mounted upside down
	still, err := raw.Rotate180()
	if err != nil {
		return err
	}
	defer still.Close()

	if data, err := still.Encode(gocv.JPEGFileExt); err != nil {
		c.logger.Error("Failed to encode still: %v", err)
	} else if _, err := c.stills.SaveStill(data, still.CapturedAt, ""); err != nil {
		c.logger.Error("Failed to save still: %v", err)
	}

	if _, err := c.processor.Run(ctx, still); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	return nil
}

func (c *CaptureController) focus(ctx context.Context) {
	if !c.bestEffort(camera.AutofocusTrigger, 1) {
		return
	}
	if err := c.sleep(ctx, c.autofocusDelay); err != nil {
		return
	}
	c.bestEffort(camera.FocusLock, 1)
}

// bestEffort applies a control and reports whether it took. Failures are
// logged and otherwise ignored.
func (c *CaptureController) bestEffort(control camera.Control, value float64) bool {
	err := c.camera.SetControl(control, value)
	if err == nil {
		return true
	}
	if errors.Is(err, camera.ErrControlUnsupported) {
		c.logger.Warning("Camera does not support %s, keeping current setting", control)
	} else {
		c.logger.Warning("Failed to set %s: %v", control, err)
	}
	return false
}

func (c *CaptureController) resumeMonitoring() {
	if err := c.camera.Stop(); err != nil {
		c.logger.Warning("Failed to stop still stream: %v", err)
	}
	if err := c.startMonitoring(); err != nil {
		c.logger.Error("Failed to resume monitoring: %v", err)
	}
	c.monitor.Reset()
	c.logger.Info("Back to monitoring")
}
