// Package camera owns the capture device and its monitoring/still profiles.
package camera

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"calendarcam/internal/config"
	"calendarcam/internal/frame"
	"calendarcam/internal/logger"

	"gocv.io/x/gocv"
)

var (
	// ErrControlUnsupported is returned by SetControl when the device does not
	// expose the control. Callers treat it as non-fatal.
	ErrControlUnsupported = errors.New("camera control not supported")
	ErrNotStarted         = errors.New("camera stream not started")
)

// Mode distinguishes the cheap preview stream from full-resolution stills.
type Mode int

const (
	Monitoring Mode = iota
	Still
)

func (m Mode) String() string {
	if m == Still {
		return "still"
	}
	return "monitoring"
}

// Profile is a resolution and mode the device is configured with.
type Profile struct {
	Name   string
	Width  int
	Height int
	Mode   Mode
}

// Control names a best-effort sensor setting.
type Control int

const (
	AutofocusTrigger Control = iota
	FocusLock
	AutoExposure
	AutoGain
)

func (c Control) String() string {
	switch c {
	case AutofocusTrigger:
		return "autofocus"
	case FocusLock:
		return "focus-lock"
	case AutoExposure:
		return "auto-exposure"
	case AutoGain:
		return "auto-gain"
	}
	return fmt.Sprintf("control(%d)", int(c))
}

// Camera is the capture capability consumed by the controller.
type Camera interface {
	Configure(p Profile) error
	Start() error
	Stop() error
	CaptureFrame() (*frame.Frame, error)
	CaptureStill() (*frame.Frame, error)
	SetControl(c Control, value float64) error
	Close() error
}

// MonitorProfile and StillProfile build the two profiles from configuration.
func MonitorProfile(config *config.Config) Profile {
	return Profile{Name: "monitor", Width: config.MonitorWidth, Height: config.MonitorHeight, Mode: Monitoring}
}

func StillProfile(config *config.Config) Profile {
	return Profile{Name: "still", Width: config.StillWidth, Height: config.StillHeight, Mode: Still}
}

// VideoCamera drives a V4L2/UVC device through OpenCV.
type VideoCamera struct {
	device  int
	profile Profile
	capture *gocv.VideoCapture
	mu      sync.Mutex
	logger  *logger.Logger
	now     func() time.Time
}

func NewVideoCamera(config *config.Config, logger *logger.Logger) *VideoCamera {
	return &VideoCamera{
		device:  config.CameraDevice,
		profile: MonitorProfile(config),
		logger:  logger,
		now:     time.Now,
	}
}

// Configure stores the profile. It takes effect on the next Start.
func (c *VideoCamera) Configure(p Profile) error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("invalid camera profile %s: %dx%d", p.Name, p.Width, p.Height)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profile = p
	return nil
}

// Start opens the device with the configured resolution.
func (c *VideoCamera) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture != nil {
		return nil
	}
	capture, err := gocv.VideoCaptureDevice(c.device)
	if err != nil {
		return fmt.Errorf("failed to open camera %d: %w", c.device, err)
	}
	capture.Set(gocv.VideoCaptureFrameWidth, float64(c.profile.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(c.profile.Height))
	c.capture = capture

	c.logger.Info("Camera %d started with %s profile (%dx%d)", c.device, c.profile.Name, c.profile.Width, c.profile.Height)
	return nil
}

// Stop releases the device so the next Start can apply a new profile.
func (c *VideoCamera) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}
	err := c.capture.Close()
	c.capture = nil
	if err != nil {
		return fmt.Errorf("failed to stop camera %d: %w", c.device, err)
	}
	return nil
}

func (c *VideoCamera) CaptureFrame() (*frame.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, ErrNotStarted
	}
	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, fmt.Errorf("failed to read frame from camera %d", c.device)
	}
	return frame.New(mat, c.now())
}

// CaptureStill reads one frame; it must be called with the still profile active.
func (c *VideoCamera) CaptureStill() (*frame.Frame, error) {
	c.mu.Lock()
	mode := c.profile.Mode
	c.mu.Unlock()
	if mode != Still {
		c.logger.Warning("Capturing still while %s profile is active", mode)
	}
	return c.CaptureFrame()
}

// SetControl applies a sensor control. Devices report a negative value for
// properties they do not expose.
func (c *VideoCamera) SetControl(control Control, value float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return ErrNotStarted
	}
	prop, ok := captureProperty(control)
	if !ok || c.capture.Get(prop) < 0 {
		return fmt.Errorf("%w: %s", ErrControlUnsupported, control)
	}
	c.capture.Set(prop, propertyValue(control, value))
	return nil
}

func captureProperty(control Control) (gocv.VideoCaptureProperties, bool) {
	switch control {
	case AutofocusTrigger, FocusLock:
		return gocv.VideoCaptureAutoFocus, true
	case AutoExposure:
		return gocv.VideoCaptureAutoExposure, true
	case AutoGain:
		return gocv.VideoCaptureGain, true
	}
	return 0, false
}

// propertyValue maps a control setting to the V4L2 value OpenCV expects.
// Non-zero means "on" for every control except AutoGain, which passes the
// gain through (0 lets auto exposure choose).
func propertyValue(control Control, value float64) float64 {
	on := value != 0
	switch control {
	case AutofocusTrigger:
		return boolValue(on, 1, 0)
	case FocusLock:
		// locking focus means turning continuous autofocus off
		return boolValue(on, 0, 1)
	case AutoExposure:
		// V4L2: 3 is aperture-priority auto, 1 is manual
		return boolValue(on, 3, 1)
	}
	return value
}

func boolValue(on bool, yes, no float64) float64 {
	if on {
		return yes
	}
	return no
}

func (c *VideoCamera) Close() error {
	return c.Stop()
}
