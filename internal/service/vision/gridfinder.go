package vision

import (
	"image"
	"image/color"
	"math"

	"calendarcam/internal/config"
	"calendarcam/internal/logger"

	"gocv.io/x/gocv"
)

// Hough segment parameters for the line-contour strategy.
const (
	HoughThreshold     = 100
	HoughMinLineLength = 100
	HoughMaxLineGap    = 10
	lineThickness      = 2
	morphIterations    = 2
)

// GridFinder extracts the geometric evidence a grid is rebuilt from:
// intersection centroids or boxes enclosed by line segments.
type GridFinder struct {
	kernelLength int
	logger       *logger.Logger
}

func NewGridFinder(config *config.Config, logger *logger.Logger) *GridFinder {
	return &GridFinder{
		kernelLength: config.LineKernelLength,
		logger:       logger,
	}
}

// Intersections isolates horizontal and vertical rules with long thin
// morphological kernels and returns the centre of every blob where they cross.
func (g *GridFinder) Intersections(gray gocv.Mat) []image.Point {
	binary := gocv.NewMat()
	defer binary.Close()
	gocv.AdaptiveThreshold(gray, &binary, 255, gocv.AdaptiveThresholdMean, gocv.ThresholdBinaryInv, 15, 10)

	horizontal := g.isolateLines(binary, image.Pt(g.kernelLength, 1))
	defer horizontal.Close()
	vertical := g.isolateLines(binary, image.Pt(1, g.kernelLength))
	defer vertical.Close()

	crossings := gocv.NewMat()
	defer crossings.Close()
	gocv.BitwiseAnd(horizontal, vertical, &crossings)

	contours := gocv.FindContours(crossings, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	points := make([]image.Point, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		r := gocv.BoundingRect(contours.At(i))
		points = append(points, image.Pt(r.Min.X+r.Dx()/2, r.Min.Y+r.Dy()/2))
	}

	g.logger.Info("Found %d grid intersections", len(points))
	return points
}

func (g *GridFinder) isolateLines(binary gocv.Mat, size image.Point) gocv.Mat {
	kernel := gocv.GetStructuringElement(gocv.MorphRect, size)
	defer kernel.Close()

	lines := binary.Clone()
	for i := 0; i < morphIterations; i++ {
		next := gocv.NewMat()
		gocv.Erode(lines, &next, kernel)
		lines.Close()
		lines = next
	}
	for i := 0; i < morphIterations; i++ {
		next := gocv.NewMat()
		gocv.Dilate(lines, &next, kernel)
		lines.Close()
		lines = next
	}
	return lines
}

// LineBoxes blurs and edge-detects gray, draws every detected segment onto a
// blank mask and returns the bounding boxes of all closed shapes in it, nested
// ones included.
func (g *GridFinder) LineBoxes(gray gocv.Mat) []image.Rectangle {
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, CannyLow, CannyHigh)

	segments := gocv.NewMat()
	defer segments.Close()
	gocv.HoughLinesPWithParams(edges, &segments, 1, math.Pi/180, HoughThreshold, HoughMinLineLength, HoughMaxLineGap)

	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), gray.Rows(), gray.Cols(), gocv.MatTypeCV8U)
	defer mask.Close()
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	for i := 0; i < segments.Rows(); i++ {
		v := segments.GetVeciAt(i, 0)
		gocv.Line(&mask, image.Pt(int(v[0]), int(v[1])), image.Pt(int(v[2]), int(v[3])), white, lineThickness)
	}

	contours := gocv.FindContours(mask, gocv.RetrievalList, gocv.ChainApproxSimple)
	defer contours.Close()

	boxes := make([]image.Rectangle, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		boxes = append(boxes, gocv.BoundingRect(contours.At(i)))
	}

	g.logger.Info("Found %d line segments and %d enclosed shapes", segments.Rows(), len(boxes))
	return boxes
}
