package vision

import (
	"fmt"
	"image"
	"image/color"

	"calendarcam/internal/frame"
	"calendarcam/internal/grid"

	"gocv.io/x/gocv"
)

var (
	cellColor   = color.RGBA{R: 0, G: 200, B: 0, A: 0}
	regionColor = color.RGBA{R: 255, G: 0, B: 0, A: 0}
)

// Annotate draws the calendar region and every numbered cell on a copy of f
// and returns it JPEG-encoded. region may be empty.
func Annotate(f *frame.Frame, region image.Rectangle, cells []grid.Cell) ([]byte, error) {
	src := f.Mat()
	mat := src.Clone()
	defer mat.Close()

	if !region.Empty() {
		if err := gocv.Rectangle(&mat, region, regionColor, 3); err != nil {
			return nil, fmt.Errorf("failed to draw region: %v", err)
		}
	}

	for _, cell := range cells {
		if err := gocv.Rectangle(&mat, cell.Bounds, cellColor, 2); err != nil {
			return nil, fmt.Errorf("failed to draw cell %d: %v", cell.Day, err)
		}
		label := fmt.Sprintf("%d", cell.Day)
		pt := image.Pt(cell.Bounds.Min.X+5, cell.Bounds.Min.Y+20)
		if err := gocv.PutText(&mat, label, pt, gocv.FontHersheySimplex, 0.6, cellColor, 2); err != nil {
			return nil, fmt.Errorf("failed to draw label %s: %v", label, err)
		}
	}

	return frame.EncodeMat(gocv.JPEGFileExt, mat)
}
