// Package grid rebuilds the day-cell layout of a calendar from geometric
// evidence and numbers the cells in row-major order.
package grid

import (
	"fmt"
	"image"
	"sort"
	"strings"
)

// Strategy selects how cell boundaries are recovered.
type Strategy int

const (
	// Uniform splits a rectified image into rows x cols equal cells.
	Uniform Strategy = iota
	// IntersectionCluster pairs grid-line intersections of adjacent rows.
	IntersectionCluster
	// LineContours boxes the closed regions left by detected line segments.
	LineContours
)

func (s Strategy) String() string {
	switch s {
	case Uniform:
		return "uniform"
	case IntersectionCluster:
		return "intersection"
	case LineContours:
		return "lines"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy maps a configuration value to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "uniform", "":
		return Uniform, nil
	case "intersection", "intersections", "cluster":
		return IntersectionCluster, nil
	case "lines", "hough":
		return LineContours, nil
	}
	return Uniform, fmt.Errorf("unknown grid strategy %q", name)
}

// Cell is one day box. Bounds are in the coordinates of the image the cell
// was reconstructed from.
type Cell struct {
	Row    int
	Col    int
	Day    int
	Bounds image.Rectangle
}

// GridPoint is a grid-line intersection centroid with its row placement.
type GridPoint struct {
	X, Y  int
	Row   int
	Index int
}

func (p GridPoint) Point() image.Point {
	return image.Pt(p.X, p.Y)
}

// Divide splits a width x height image into rows x cols cells. Cell (r,c)
// spans [c*cw, (c+1)*cw) x [r*rh, (r+1)*rh) with cw, rh floored.
func Divide(width, height, rows, cols int) ([]Cell, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("grid must have positive rows and columns, got %dx%d", rows, cols)
	}
	cw, rh := width/cols, height/rows
	if cw == 0 || rh == 0 {
		return nil, fmt.Errorf("image %dx%d too small for a %dx%d grid", width, height, rows, cols)
	}

	cells := make([]Cell, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			cells = append(cells, Cell{
				Row:    r,
				Col:    c,
				Bounds: image.Rect(c*cw, r*rh, (c+1)*cw, (r+1)*rh),
			})
		}
	}
	return Number(cells), nil
}

// ClusterRows groups points into rows. Points are sorted by y then x; a point
// joins the current row when its y is within tolerance of the previous
// point's y, otherwise it opens a new row. Each row is then sorted by x.
func ClusterRows(points []image.Point, tolerance int) [][]GridPoint {
	sorted := make([]image.Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y < sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var rows [][]GridPoint
	var current []GridPoint
	for _, p := range sorted {
		if len(current) > 0 && abs(p.Y-current[len(current)-1].Y) >= tolerance {
			rows = append(rows, current)
			current = nil
		}
		current = append(current, GridPoint{X: p.X, Y: p.Y})
	}
	if len(current) > 0 {
		rows = append(rows, current)
	}

	for r, row := range rows {
		sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })
		for i := range row {
			row[i].Row = r
			row[i].Index = i
		}
	}
	return rows
}

// Report describes how much of the intersection grid turned into cells.
type Report struct {
	Rows       int   `json:"rows"`
	PairCounts []int `json:"pairCounts"`
	Expected   int   `json:"expected"`
	Found      int   `json:"found"`
	// Dropped is the number of trailing cells lost to row-length mismatches.
	Dropped    int   `json:"dropped"`
	// Misaligned lists row pairs whose first points are at least the row
	// tolerance apart horizontally; their diagonal pairing is shifted.
	Misaligned []int `json:"misaligned,omitempty"`
}

// Degraded reports whether anything was dropped or shifted.
func (r Report) Degraded() bool {
	return r.Dropped > 0 || len(r.Misaligned) > 0
}

func (r Report) String() string {
	return fmt.Sprintf("%d rows, %d/%d cells (pairs %v, dropped %d, misaligned %v)",
		r.Rows, r.Found, r.Expected, r.PairCounts, r.Dropped, r.Misaligned)
}

// PairCells builds cells from adjacent row pairs. For rows i and i+1 with
// L = min(len(i), len(i+1)) - 1, cell j runs from row i point j to row i+1
// point j+1. Trailing points of the longer row are left unmatched.
func PairCells(rows [][]GridPoint, tolerance int) ([]Cell, Report) {
	report := Report{Rows: len(rows)}
	var cells []Cell

	for i := 0; i+1 < len(rows); i++ {
		upper, lower := rows[i], rows[i+1]
		n := max(min(len(upper), len(lower))-1, 0)
		report.PairCounts = append(report.PairCounts, n)
		report.Found += n
		report.Expected += max(max(len(upper), len(lower))-1, 0)

		if len(upper) > 0 && len(lower) > 0 && abs(upper[0].X-lower[0].X) >= tolerance {
			report.Misaligned = append(report.Misaligned, i)
		}

		for j := 0; j < n; j++ {
			tl, br := upper[j], lower[j+1]
			cells = append(cells, Cell{
				Row:    i,
				Col:    j,
				Bounds: image.Rectangle{Min: tl.Point(), Max: br.Point()},
			})
		}
	}
	report.Dropped = report.Expected - report.Found
	return Number(cells), report
}

// FromIntersections clusters intersection centroids and pairs adjacent rows.
func FromIntersections(points []image.Point, tolerance int) ([]Cell, Report) {
	return PairCells(ClusterRows(points, tolerance), tolerance)
}

// FromBoxes turns closed-region bounding boxes into cells. Boxes not larger
// than minSize on both sides are noise, and a box enclosing another kept box
// is the outline of the line network rather than a day. Rows are formed by
// clustering box tops within tolerance, columns by ascending x.
func FromBoxes(boxes []image.Rectangle, minSize, tolerance int) []Cell {
	var sized []image.Rectangle
	seen := make(map[image.Rectangle]bool)
	for _, b := range boxes {
		// a closed shape can show up twice, once per side of a thick line
		if b.Dx() > minSize && b.Dy() > minSize && !seen[b] {
			seen[b] = true
			sized = append(sized, b)
		}
	}
	var kept []image.Rectangle
	for i, b := range sized {
		container := false
		for j, other := range sized {
			if i != j && other.In(b) {
				container = true
				break
			}
		}
		if !container {
			kept = append(kept, b)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Min.Y != kept[j].Min.Y {
			return kept[i].Min.Y < kept[j].Min.Y
		}
		return kept[i].Min.X < kept[j].Min.X
	})

	cells := make([]Cell, 0, len(kept))
	row, col := 0, 0
	for i, b := range kept {
		if i > 0 {
			if abs(b.Min.Y-kept[i-1].Min.Y) >= tolerance {
				row++
				col = 0
			} else {
				col++
			}
		}
		cells = append(cells, Cell{Row: row, Col: col, Bounds: b})
	}

	// within a row the y-sort may have interleaved x; re-rank columns by x
	sort.SliceStable(cells, func(i, j int) bool {
		if cells[i].Row != cells[j].Row {
			return cells[i].Row < cells[j].Row
		}
		return cells[i].Bounds.Min.X < cells[j].Bounds.Min.X
	})
	for i := range cells {
		if i > 0 && cells[i].Row == cells[i-1].Row {
			cells[i].Col = cells[i-1].Col + 1
		} else {
			cells[i].Col = 0
		}
	}
	return Number(cells)
}

// Number sorts cells row-major and assigns day numbers 1..N.
func Number(cells []Cell) []Cell {
	sort.SliceStable(cells, func(i, j int) bool {
		if cells[i].Row != cells[j].Row {
			return cells[i].Row < cells[j].Row
		}
		return cells[i].Col < cells[j].Col
	})
	for i := range cells {
		cells[i].Day = i + 1
	}
	return cells
}

// Translate shifts cell bounds by offset, e.g. from a cropped region back
// into full-frame coordinates.
func Translate(cells []Cell, offset image.Point) []Cell {
	out := make([]Cell, len(cells))
	for i, c := range cells {
		c.Bounds = c.Bounds.Add(offset)
		out[i] = c
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
