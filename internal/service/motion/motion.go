// Package motion scores frame-to-frame change and decides when a scene has
// gone still long enough to be photographed.
package motion

import (
	"fmt"
	"image"
	"sync"
	"time"

	"calendarcam/internal/config"
	"calendarcam/internal/frame"
	"calendarcam/internal/logger"

	"gocv.io/x/gocv"
)

// State of the capture trigger.
type State int

const (
	// Idle: no unhandled motion.
	Idle State = iota
	// Active: the last frame scored above the threshold.
	Active
	// Settling: motion was seen and the scene is now quiet.
	Settling
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Settling:
		return "settling"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Transition is the outcome of observing one frame.
type Transition struct {
	From  State
	To    State
	Score int
	// Seeded is set when the frame only initialised the reference frame.
	Seeded bool
	// Capture is set when the scene has been still for the configured timeout.
	Capture bool
	At      time.Time
}

// Scorer turns a frame into a motion score against the previous one.
type Scorer interface {
	Score(f *frame.Frame) (score int, seeded bool, err error)
	Reset()
	Close() error
}

// DiffScorer counts pixels that changed between consecutive blurred
// greyscale frames.
type DiffScorer struct {
	blurSize   int
	cutoff     float32
	iterations int

	previous    gocv.Mat
	hasPrevious bool
	mu          sync.Mutex
}

func NewDiffScorer(config *config.Config) *DiffScorer {
	blur := config.MotionBlurSize
	if blur%2 == 0 {
		blur++
	}
	return &DiffScorer{
		blurSize:   blur,
		cutoff:     float32(config.MotionPixelCutoff),
		iterations: config.MotionDilateIteration,
	}
}

// Score returns the number of changed pixels. The first frame after a reset,
// or after a resolution change, only seeds the reference and scores zero.
func (s *DiffScorer) Score(f *frame.Frame) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gray := f.Gray()
	blurred := gocv.NewMat()
	gocv.GaussianBlur(gray, &blurred, image.Pt(s.blurSize, s.blurSize), 0, 0, gocv.BorderDefault)
	gray.Close()

	if !s.hasPrevious || s.previous.Rows() != blurred.Rows() || s.previous.Cols() != blurred.Cols() {
		s.replace(blurred)
		return 0, true, nil
	}

	diff := gocv.NewMat()
	defer diff.Close()
	if err := gocv.AbsDiff(s.previous, blurred, &diff); err != nil {
		blurred.Close()
		return 0, false, fmt.Errorf("failed to compute absolute difference: %v", err)
	}
	s.replace(blurred)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, s.cutoff, 255, gocv.ThresholdBinary)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()
	mask := thresh.Clone()
	for i := 0; i < s.iterations; i++ {
		next := gocv.NewMat()
		gocv.Dilate(mask, &next, kernel)
		mask.Close()
		mask = next
	}
	defer mask.Close()

	return gocv.CountNonZero(mask), false, nil
}

func (s *DiffScorer) replace(mat gocv.Mat) {
	if s.hasPrevious {
		s.previous.Close()
	}
	s.previous = mat
	s.hasPrevious = true
}

// Reset drops the reference frame.
func (s *DiffScorer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasPrevious {
		s.previous.Close()
		s.hasPrevious = false
	}
}

func (s *DiffScorer) Close() error {
	s.Reset()
	return nil
}

// Monitor is the Idle/Active/Settling state machine.
type Monitor struct {
	scorer     Scorer
	threshold  int
	timeout    time.Duration
	state      State
	lastActive time.Time
	logger     *logger.Logger
}

func NewMonitor(config *config.Config, scorer Scorer, logger *logger.Logger) *Monitor {
	return &Monitor{
		scorer:    scorer,
		threshold: config.MotionScoreThreshold,
		timeout:   config.StillnessTimeout,
		logger:    logger,
	}
}

func (m *Monitor) State() State {
	return m.state
}

// Observe scores f and advances the state machine using f.CapturedAt as
// the clock.
func (m *Monitor) Observe(f *frame.Frame) (Transition, error) {
	score, seeded, err := m.scorer.Score(f)
	if err != nil {
		return Transition{From: m.state, To: m.state, At: f.CapturedAt}, err
	}
	if seeded {
		return Transition{From: m.state, To: m.state, Seeded: true, At: f.CapturedAt}, nil
	}
	return m.observeScore(score, f.CapturedAt), nil
}

func (m *Monitor) observeScore(score int, at time.Time) Transition {
	t := Transition{From: m.state, Score: score, At: at}

	switch {
	case score > m.threshold:
		if m.state != Active {
			m.logger.Info("Motion detected: score %d", score)
		}
		m.lastActive = at
		m.state = Active
	case m.state != Idle:
		m.state = Settling
		if at.Sub(m.lastActive) >= m.timeout {
			m.logger.Info("Scene still for %v, requesting capture", at.Sub(m.lastActive))
			t.Capture = true
			m.state = Idle
		}
	}

	t.To = m.state
	return t
}

// Reset returns to Idle and forgets the reference frame, so the first frame
// after a capture only re-seeds.
func (m *Monitor) Reset() {
	m.state = Idle
	m.lastActive = time.Time{}
	m.scorer.Reset()
}

func (m *Monitor) Close() error {
	return m.scorer.Close()
}
