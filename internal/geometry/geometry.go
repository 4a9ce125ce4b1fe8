// Package geometry holds the pure coordinate math shared by region location,
// perspective rectification and grid reconstruction.
package geometry

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sort"
)

// ErrCornerCount is returned when corner ordering is given anything but four points.
var ErrCornerCount = errors.New("exactly four corner points are required")

// Quad is a quadrilateral with its corners in clockwise image order.
type Quad struct {
	TopLeft     image.Point
	TopRight    image.Point
	BottomRight image.Point
	BottomLeft  image.Point
}

// Points returns the corners as top-left, top-right, bottom-right, bottom-left.
func (q Quad) Points() []image.Point {
	return []image.Point{q.TopLeft, q.TopRight, q.BottomRight, q.BottomLeft}
}

// Bounds is the axis-aligned box enclosing the quad.
func (q Quad) Bounds() image.Rectangle {
	r := image.Rectangle{Min: q.TopLeft, Max: q.TopLeft}
	for _, p := range q.Points()[1:] {
		r.Min.X = min(r.Min.X, p.X)
		r.Min.Y = min(r.Min.Y, p.Y)
		r.Max.X = max(r.Max.X, p.X)
		r.Max.Y = max(r.Max.Y, p.Y)
	}
	return r
}

// CalendarRegion is where the calendar sits inside a frame. Box is always set;
// Corners is set only when a four-vertex outline was found.
type CalendarRegion struct {
	Box      image.Rectangle
	Corners  *Quad
	Fallback bool // no candidate qualified, Box is the whole frame
}

// OrderCorners orders four points as top-left (min x+y), bottom-right
// (max x+y), top-right (max x-y) and bottom-left (min x-y). The points are
// canonicalised first so the result does not depend on input order. When the
// sums or differences tie (a quad rotated by 45 degrees), the corners are
// taken clockwise around the centroid starting from the top-left pick.
func OrderCorners(pts []image.Point) (Quad, error) {
	if len(pts) != 4 {
		return Quad{}, fmt.Errorf("%w: got %d", ErrCornerCount, len(pts))
	}

	sorted := make([]image.Point, 4)
	copy(sorted, pts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	tl, br, tr, bl := 0, 0, 0, 0
	for i, p := range sorted {
		s, d := p.X+p.Y, p.X-p.Y
		if s < sorted[tl].X+sorted[tl].Y {
			tl = i
		}
		if s > sorted[br].X+sorted[br].Y {
			br = i
		}
		if d > sorted[tr].X-sorted[tr].Y {
			tr = i
		}
		if d < sorted[bl].X-sorted[bl].Y {
			bl = i
		}
	}

	if distinct(tl, tr, br, bl) {
		return Quad{TopLeft: sorted[tl], TopRight: sorted[tr], BottomRight: sorted[br], BottomLeft: sorted[bl]}, nil
	}
	return clockwiseFrom(sorted, tl), nil
}

func distinct(idx ...int) bool {
	seen := make(map[int]bool, len(idx))
	for _, i := range idx {
		if seen[i] {
			return false
		}
		seen[i] = true
	}
	return true
}

// clockwiseFrom walks the points by angle around their centroid. Image y grows
// downwards, so ascending atan2 is clockwise on screen.
func clockwiseFrom(pts []image.Point, start int) Quad {
	var cx, cy float64
	for _, p := range pts {
		cx += float64(p.X)
		cy += float64(p.Y)
	}
	cx /= float64(len(pts))
	cy /= float64(len(pts))

	angle := func(p image.Point) float64 {
		return math.Atan2(float64(p.Y)-cy, float64(p.X)-cx)
	}
	origin := angle(pts[start])
	rel := func(p image.Point) float64 {
		a := angle(p) - origin
		for a < 0 {
			a += 2 * math.Pi
		}
		return a
	}

	ordered := make([]image.Point, len(pts))
	copy(ordered, pts)
	sort.SliceStable(ordered, func(i, j int) bool { return rel(ordered[i]) < rel(ordered[j]) })

	return Quad{TopLeft: ordered[0], TopRight: ordered[1], BottomRight: ordered[2], BottomLeft: ordered[3]}
}

// Distance is the Euclidean distance between two points.
func Distance(a, b image.Point) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}

// TargetSize is the size of the top-down view of q: the longer of each pair
// of opposite edges, floored.
func TargetSize(q Quad) (width, height int) {
	width = int(math.Max(Distance(q.TopLeft, q.TopRight), Distance(q.BottomLeft, q.BottomRight)))
	height = int(math.Max(Distance(q.TopLeft, q.BottomLeft), Distance(q.TopRight, q.BottomRight)))
	return width, height
}

// TargetCorners are the destination corners of a width x height rectified view.
func TargetCorners(width, height int) Quad {
	return Quad{
		TopLeft:     image.Pt(0, 0),
		TopRight:    image.Pt(width-1, 0),
		BottomRight: image.Pt(width-1, height-1),
		BottomLeft:  image.Pt(0, height-1),
	}
}

// RegionFilter bounds what counts as a plausible calendar outline.
type RegionFilter struct {
	MinArea   int
	MinAspect float64
	MaxAspect float64
}

// Accepts reports whether a bounding box passes the area and aspect filter.
// Aspect bounds are exclusive; a zero-height box never passes.
func (f RegionFilter) Accepts(r image.Rectangle) bool {
	w, h := r.Dx(), r.Dy()
	if h == 0 {
		return false
	}
	aspect := float64(w) / float64(h)
	return w*h > f.MinArea && aspect > f.MinAspect && aspect < f.MaxAspect
}

// SelectCalendarBox returns the largest-area candidate accepted by the filter.
// With no accepted candidate it returns the full frame and false.
func SelectCalendarBox(candidates []image.Rectangle, frame image.Rectangle, filter RegionFilter) (image.Rectangle, bool) {
	best, bestArea := image.Rectangle{}, 0
	for _, r := range candidates {
		if !filter.Accepts(r) {
			continue
		}
		if area := r.Dx() * r.Dy(); area > bestArea {
			best, bestArea = r, area
		}
	}
	if bestArea == 0 {
		return frame, false
	}
	return best, true
}
