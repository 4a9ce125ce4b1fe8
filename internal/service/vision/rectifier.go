package vision

import (
	"fmt"
	"image"

	"calendarcam/internal/frame"
	"calendarcam/internal/geometry"
	"calendarcam/internal/logger"

	"gocv.io/x/gocv"
)

// RectifiedImage is the top-down view of a calendar quad. It lives only
// between rectification and grid reconstruction.
type RectifiedImage struct {
	Frame  *frame.Frame
	Width  int
	Height int
	Source geometry.Quad
}

// Close releases the rectified pixels.
func (r *RectifiedImage) Close() error {
	if r == nil {
		return nil
	}
	return r.Frame.Close()
}

// Rectifier flattens a skewed calendar quad into an axis-aligned image.
type Rectifier struct {
	logger *logger.Logger
}

func NewRectifier(logger *logger.Logger) *Rectifier {
	return &Rectifier{logger: logger}
}

// Rectify maps the ordered corners onto a rectangle sized by the longer of
// each pair of opposite edges and resamples the frame through the homography.
func (r *Rectifier) Rectify(f *frame.Frame, corners geometry.Quad) (*RectifiedImage, error) {
	width, height := geometry.TargetSize(corners)
	if width < 2 || height < 2 {
		return nil, fmt.Errorf("degenerate calendar quad %v (%dx%d)", corners, width, height)
	}

	src := gocv.NewPointVectorFromPoints(corners.Points())
	defer src.Close()
	dst := gocv.NewPointVectorFromPoints(geometry.TargetCorners(width, height).Points())
	defer dst.Close()

	homography := gocv.GetPerspectiveTransform(src, dst)
	defer homography.Close()

	warped := gocv.NewMat()
	gocv.WarpPerspective(f.Mat(), &warped, homography, image.Pt(width, height))

	out, err := frame.New(warped, f.CapturedAt)
	if err != nil {
		return nil, fmt.Errorf("perspective warp produced no image: %w", err)
	}

	r.logger.Info("Rectified calendar spanning %v to %dx%d", corners.Bounds(), width, height)
	return &RectifiedImage{Frame: out, Width: width, Height: height, Source: corners}, nil
}
