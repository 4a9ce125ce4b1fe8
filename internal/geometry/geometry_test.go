package geometry

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func permutations(pts []image.Point) [][]image.Point {
	if len(pts) <= 1 {
		return [][]image.Point{append([]image.Point(nil), pts...)}
	}
	var out [][]image.Point
	for i := range pts {
		rest := make([]image.Point, 0, len(pts)-1)
		rest = append(rest, pts[:i]...)
		rest = append(rest, pts[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]image.Point{pts[i]}, p...))
		}
	}
	return out
}

func TestOrderCorners_AllOrderingsAgree(t *testing.T) {
	tests := []struct {
		name string
		quad Quad
	}{
		{
			name: "axis aligned",
			quad: Quad{image.Pt(10, 20), image.Pt(710, 20), image.Pt(710, 620), image.Pt(10, 620)},
		},
		{
			name: "photographed from the left",
			quad: Quad{image.Pt(120, 80), image.Pt(900, 140), image.Pt(870, 700), image.Pt(90, 760)},
		},
		{
			name: "slight rotation",
			quad: Quad{image.Pt(50, 60), image.Pt(640, 30), image.Pt(670, 500), image.Pt(80, 530)},
		},
		{
			name: "diamond",
			quad: Quad{image.Pt(0, 50), image.Pt(50, 0), image.Pt(100, 50), image.Pt(50, 100)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perms := permutations(tt.quad.Points())
			require.Len(t, perms, 24)

			first, err := OrderCorners(perms[0])
			require.NoError(t, err)
			assert.Equal(t, tt.quad, first)

			for _, p := range perms[1:] {
				got, err := OrderCorners(p)
				require.NoError(t, err)
				assert.Equal(t, first, got, "ordering of %v", p)
			}
		})
	}
}

func TestOrderCorners_WrongCount(t *testing.T) {
	_, err := OrderCorners([]image.Point{{0, 0}, {1, 0}, {1, 1}})
	assert.ErrorIs(t, err, ErrCornerCount)

	_, err = OrderCorners(nil)
	assert.ErrorIs(t, err, ErrCornerCount)
}

func TestTargetSize(t *testing.T) {
	q := Quad{
		TopLeft:     image.Pt(0, 0),
		TopRight:    image.Pt(300, 0),
		BottomRight: image.Pt(304, 403),
		BottomLeft:  image.Pt(0, 400),
	}
	w, h := TargetSize(q)
	// bottom edge 304, right edge hypot(4,403) = 403.02
	assert.Equal(t, 304, w)
	assert.Equal(t, 403, h)

	corners := TargetCorners(w, h)
	assert.Equal(t, image.Pt(303, 402), corners.BottomRight)
	assert.Equal(t, image.Pt(0, 402), corners.BottomLeft)
}

func TestQuad_Bounds(t *testing.T) {
	q := Quad{image.Pt(120, 80), image.Pt(900, 140), image.Pt(870, 700), image.Pt(90, 760)}
	assert.Equal(t, image.Rect(90, 80, 900, 760), q.Bounds())
}

func TestRegionFilter_Accepts(t *testing.T) {
	f := RegionFilter{MinArea: 10000, MinAspect: 0.5, MaxAspect: 2.0}

	tests := []struct {
		name string
		rect image.Rectangle
		want bool
	}{
		{"square", image.Rect(0, 0, 200, 200), true},
		{"exactly min area", image.Rect(0, 0, 100, 100), false},
		{"just above min area", image.Rect(0, 0, 101, 100), true},
		{"aspect exactly two", image.Rect(0, 0, 400, 200), false},
		{"aspect exactly half", image.Rect(0, 0, 200, 400), false},
		{"too wide", image.Rect(0, 0, 900, 100), false},
		{"zero height", image.Rect(0, 0, 50000, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Accepts(tt.rect))
		})
	}
}

func TestSelectCalendarBox(t *testing.T) {
	frame := image.Rect(0, 0, 1280, 960)
	f := RegionFilter{MinArea: 10000, MinAspect: 0.5, MaxAspect: 2.0}

	t.Run("largest qualifying wins", func(t *testing.T) {
		candidates := []image.Rectangle{
			image.Rect(0, 0, 150, 150),
			image.Rect(100, 100, 900, 700),
			image.Rect(0, 0, 1200, 100), // larger but too wide
			image.Rect(10, 10, 300, 300),
		}
		box, ok := SelectCalendarBox(candidates, frame, f)
		assert.True(t, ok)
		assert.Equal(t, image.Rect(100, 100, 900, 700), box)
	})

	t.Run("nothing qualifies returns full frame", func(t *testing.T) {
		candidates := []image.Rectangle{
			image.Rect(0, 0, 50, 50),
			image.Rect(0, 0, 1000, 10),
			image.Rect(5, 5, 5, 400),
		}
		box, ok := SelectCalendarBox(candidates, frame, f)
		assert.False(t, ok)
		assert.Equal(t, frame, box)
	})

	t.Run("no candidates", func(t *testing.T) {
		box, ok := SelectCalendarBox(nil, frame, f)
		assert.False(t, ok)
		assert.Equal(t, image.Rect(0, 0, 1280, 960), box)
	})
}
