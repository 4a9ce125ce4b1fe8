package vision

import (
	"image"
	"image/color"
	"testing"
	"time"

	"calendarcam/internal/config"
	"calendarcam/internal/frame"
	"calendarcam/internal/geometry"
	"calendarcam/internal/grid"
	"calendarcam/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

var black = color.RGBA{A: 255}

func testConfig() *config.Config {
	return &config.Config{
		RegionMinArea:    10000,
		RegionMinAspect:  0.5,
		RegionMaxAspect:  2.0,
		LineKernelLength: 40,
	}
}

// paper returns a white frame for drawing on.
func paper(t *testing.T, width, height int) *frame.Frame {
	t.Helper()
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), height, width, gocv.MatTypeCV8UC3)
	f, err := frame.New(mat, time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func drawGrid(t *testing.T, f *frame.Frame, xs, ys []int) {
	t.Helper()
	mat := f.Mat()
	for _, y := range ys {
		gocv.Line(&mat, image.Pt(xs[0], y), image.Pt(xs[len(xs)-1], y), black, 3)
	}
	for _, x := range xs {
		gocv.Line(&mat, image.Pt(x, ys[0]), image.Pt(x, ys[len(ys)-1]), black, 3)
	}
}

func TestLocate_BlankFrameFallsBack(t *testing.T) {
	f := paper(t, 320, 240)
	locator := NewLocator(testConfig(), logger.Discard())

	region := locator.Locate(f)

	assert.True(t, region.Fallback)
	assert.Equal(t, image.Rect(0, 0, 320, 240), region.Box)
}

func TestLocate_FindsOutline(t *testing.T) {
	f := paper(t, 400, 300)
	mat := f.Mat()
	require.NoError(t, gocv.Rectangle(&mat, image.Rect(60, 50, 300, 230), black, 3))
	locator := NewLocator(testConfig(), logger.Discard())

	region := locator.Locate(f)

	require.False(t, region.Fallback)
	assert.InDelta(t, 60, region.Box.Min.X, 4)
	assert.InDelta(t, 50, region.Box.Min.Y, 4)
	assert.InDelta(t, 300, region.Box.Max.X, 4)
	assert.InDelta(t, 230, region.Box.Max.Y, 4)
}

func TestLocate_RejectsSmallAndNarrowShapes(t *testing.T) {
	f := paper(t, 400, 300)
	mat := f.Mat()
	require.NoError(t, gocv.Rectangle(&mat, image.Rect(10, 10, 60, 60), black, 2))   // too small
	require.NoError(t, gocv.Rectangle(&mat, image.Rect(100, 20, 130, 280), black, 2)) // too narrow
	locator := NewLocator(testConfig(), logger.Discard())

	region := locator.Locate(f)

	assert.True(t, region.Fallback)
}

func TestFindQuad_OrdersCorners(t *testing.T) {
	f := paper(t, 400, 300)
	mat := f.Mat()
	require.NoError(t, gocv.Rectangle(&mat, image.Rect(80, 60, 320, 240), black, 4))
	locator := NewLocator(testConfig(), logger.Discard())

	quad, err := locator.FindQuad(f)
	require.NoError(t, err)

	assert.InDelta(t, 80, quad.TopLeft.X, 6)
	assert.InDelta(t, 60, quad.TopLeft.Y, 6)
	assert.InDelta(t, 320, quad.TopRight.X, 6)
	assert.InDelta(t, 240, quad.BottomRight.Y, 6)
	assert.InDelta(t, 80, quad.BottomLeft.X, 6)
	assert.Less(t, quad.TopLeft.X+quad.TopLeft.Y, quad.BottomRight.X+quad.BottomRight.Y)
}

func TestFindQuad_CircleIsNotQuadrilateral(t *testing.T) {
	f := paper(t, 400, 300)
	mat := f.Mat()
	require.NoError(t, gocv.Circle(&mat, image.Pt(200, 150), 100, black, 4))
	locator := NewLocator(testConfig(), logger.Discard())

	_, err := locator.FindQuad(f)
	assert.ErrorIs(t, err, ErrNotQuadrilateral)
}

func TestRectify_TargetSize(t *testing.T) {
	f := paper(t, 400, 300)
	quad := geometry.Quad{
		TopLeft:     image.Pt(50, 40),
		TopRight:    image.Pt(350, 50),
		BottomRight: image.Pt(360, 260),
		BottomLeft:  image.Pt(40, 250),
	}

	rectified, err := NewRectifier(logger.Discard()).Rectify(f, quad)
	require.NoError(t, err)
	defer rectified.Close()

	w, h := geometry.TargetSize(quad)
	assert.Equal(t, w, rectified.Width)
	assert.Equal(t, h, rectified.Height)
	assert.Equal(t, w, rectified.Frame.Width)
	assert.Equal(t, h, rectified.Frame.Height)
	assert.Equal(t, quad, rectified.Source)
}

func TestRectify_Degenerate(t *testing.T) {
	f := paper(t, 100, 100)
	p := image.Pt(10, 10)

	_, err := NewRectifier(logger.Discard()).Rectify(f, geometry.Quad{TopLeft: p, TopRight: p, BottomRight: p, BottomLeft: p})
	assert.Error(t, err)
}

func TestIntersections_RuledGrid(t *testing.T) {
	f := paper(t, 400, 300)
	drawGrid(t, f, []int{20, 140, 260, 380}, []int{50, 150, 250})
	gray := f.Gray()
	defer gray.Close()

	points := NewGridFinder(testConfig(), logger.Discard()).Intersections(gray)
	require.Len(t, points, 12)

	cells, report := grid.FromIntersections(points, 20)
	assert.Len(t, cells, 6)
	assert.False(t, report.Degraded())
	assert.InDelta(t, 20, cells[0].Bounds.Min.X, 3)
	assert.InDelta(t, 150, cells[0].Bounds.Max.Y, 3)
}

func TestLineBoxes_RuledGrid(t *testing.T) {
	f := paper(t, 400, 300)
	drawGrid(t, f, []int{20, 140, 260, 380}, []int{50, 150, 250})
	gray := f.Gray()
	defer gray.Close()

	boxes := NewGridFinder(testConfig(), logger.Discard()).LineBoxes(gray)
	cells := grid.FromBoxes(boxes, 50, 20)

	require.Len(t, cells, 6)
	assert.Equal(t, 0, cells[2].Row)
	assert.Equal(t, 1, cells[3].Row)
}

func TestAnnotate(t *testing.T) {
	f := paper(t, 200, 100)
	cells, err := grid.Divide(200, 100, 1, 2)
	require.NoError(t, err)

	data, err := Annotate(f, image.Rect(0, 0, 200, 100), cells)
	require.NoError(t, err)

	decoded, err := gocv.IMDecode(data, gocv.IMReadColor)
	require.NoError(t, err)
	defer decoded.Close()
	assert.Equal(t, 200, decoded.Cols())
	assert.Equal(t, 100, decoded.Rows())

	// drawing happens on a copy
	src := f.Mat()
	assert.Equal(t, uint8(255), src.GetVecbAt(1, 1)[0])
	assert.Equal(t, uint8(255), src.GetVecbAt(1, 1)[1])
}

func TestLineBoxes_SpeckledGrid(t *testing.T) {
	f := paper(t, 400, 300)
	drawGrid(t, f, []int{20, 140, 260, 380}, []int{50, 150, 250})
	mat := f.Mat()
	for x := 30; x < 380; x += 17 {
		for y := 60; y < 250; y += 13 {
			require.NoError(t, gocv.Circle(&mat, image.Pt(x, y), 1, black, -1))
		}
	}
	gray := f.Gray()
	defer gray.Close()

	boxes := NewGridFinder(testConfig(), logger.Discard()).LineBoxes(gray)
	cells := grid.FromBoxes(boxes, 50, 20)

	require.Len(t, cells, 6)
	assert.InDelta(t, 20, cells[0].Bounds.Min.X, 4)
	assert.InDelta(t, 50, cells[0].Bounds.Min.Y, 4)
}
