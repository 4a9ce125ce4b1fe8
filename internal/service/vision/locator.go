package vision

import (
	"errors"
	"fmt"
	"image"

	"calendarcam/internal/config"
	"calendarcam/internal/frame"
	"calendarcam/internal/geometry"
	"calendarcam/internal/logger"

	"gocv.io/x/gocv"
)

const (
	// Canny hysteresis thresholds used for calendar outlines and grid lines.
	CannyLow  = 50
	CannyHigh = 150
	// ApproxEpsilon is the polygon simplification tolerance relative to the
	// contour perimeter.
	ApproxEpsilon = 0.02
)

// ErrNotQuadrilateral means the calendar outline did not simplify to four
// vertices, so the perspective strategy cannot run for this frame.
var ErrNotQuadrilateral = errors.New("calendar outline is not a quadrilateral")

// Locator finds where the calendar sits inside a raw frame.
type Locator struct {
	filter geometry.RegionFilter
	logger *logger.Logger
}

// NewLocator creates a Locator with the configured area/aspect filter.
func NewLocator(config *config.Config, logger *logger.Logger) *Locator {
	return &Locator{
		filter: geometry.RegionFilter{
			MinArea:   config.RegionMinArea,
			MinAspect: config.RegionMinAspect,
			MaxAspect: config.RegionMaxAspect,
		},
		logger: logger,
	}
}

// Locate returns the bounding box of the largest plausible calendar outline.
// When nothing qualifies the whole frame is returned with Fallback set.
func (l *Locator) Locate(f *frame.Frame) geometry.CalendarRegion {
	gray := f.Gray()
	defer gray.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, CannyLow, CannyHigh)

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	candidates := make([]image.Rectangle, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		candidates = append(candidates, gocv.BoundingRect(contours.At(i)))
	}

	box, ok := geometry.SelectCalendarBox(candidates, f.Bounds(), l.filter)
	if !ok {
		l.logger.Warning("No calendar region among %d contours, using full frame %v", len(candidates), box)
		return geometry.CalendarRegion{Box: box, Fallback: true}
	}

	l.logger.Info("Calendar region found: %v", box)
	return geometry.CalendarRegion{Box: box}
}

// FindQuad simplifies the largest outline of an inverted adaptive threshold
// and returns its four corners in canonical order.
func (l *Locator) FindQuad(f *frame.Frame) (geometry.Quad, error) {
	gray := f.Gray()
	defer gray.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.AdaptiveThreshold(blurred, &thresh, 255, gocv.AdaptiveThresholdMean, gocv.ThresholdBinaryInv, 11, 2)

	contours := gocv.FindContours(thresh, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	if contours.Size() == 0 {
		return geometry.Quad{}, fmt.Errorf("%w: no contours", ErrNotQuadrilateral)
	}

	largest, largestArea := 0, -1.0
	for i := 0; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area > largestArea {
			largest, largestArea = i, area
		}
	}

	outline := contours.At(largest)
	perimeter := gocv.ArcLength(outline, true)
	approx := gocv.ApproxPolyDP(outline, ApproxEpsilon*perimeter, true)
	defer approx.Close()

	if approx.Size() != 4 {
		return geometry.Quad{}, fmt.Errorf("%w: %d vertices", ErrNotQuadrilateral, approx.Size())
	}
	return geometry.OrderCorners(approx.ToPoints())
}
