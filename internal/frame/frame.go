// Package frame wraps captured pixel buffers with their metadata.
package frame

import (
	"errors"
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"
)

var (
	ErrRegionOutOfBounds = errors.New("region outside frame bounds")
	ErrEmptyRegion       = errors.New("region is empty")
	ErrEmptyFrame        = errors.New("frame is empty")
)

// Frame is a captured image. It owns its Mat; callers must not write to the
// Mat returned by Mat() and must call Close when done.
type Frame struct {
	mat        gocv.Mat
	Width      int
	Height     int
	Channels   int
	CapturedAt time.Time
}

// New takes ownership of mat.
func New(mat gocv.Mat, capturedAt time.Time) (*Frame, error) {
	if mat.Empty() {
		mat.Close()
		return nil, ErrEmptyFrame
	}
	return &Frame{
		mat:        mat,
		Width:      mat.Cols(),
		Height:     mat.Rows(),
		Channels:   mat.Channels(),
		CapturedAt: capturedAt,
	}, nil
}

// Load reads an image file from disk as a BGR frame.
func Load(path string) (*Frame, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("failed to read image %s", path)
	}
	return New(mat, time.Now())
}

// Mat exposes the pixel buffer for read-only processing.
func (f *Frame) Mat() gocv.Mat {
	return f.mat
}

// Bounds is the frame rectangle (0,0)-(Width,Height).
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// Region returns an owned copy of r. r must lie within the frame.
func (f *Frame) Region(r image.Rectangle) (gocv.Mat, error) {
	if r.Empty() {
		return gocv.NewMat(), fmt.Errorf("%w: %v", ErrEmptyRegion, r)
	}
	if !r.In(f.Bounds()) {
		return gocv.NewMat(), fmt.Errorf("%w: %v not in %v", ErrRegionOutOfBounds, r, f.Bounds())
	}
	view := f.mat.Region(r)
	defer view.Close()
	return view.Clone(), nil
}

// Crop returns r clipped to the frame as a new Frame.
func (f *Frame) Crop(r image.Rectangle) (*Frame, error) {
	mat, err := f.Region(r.Intersect(f.Bounds()))
	if err != nil {
		return nil, err
	}
	return New(mat, f.CapturedAt)
}

// Gray returns a single-channel copy of the frame.
func (f *Frame) Gray() gocv.Mat {
	gray := gocv.NewMat()
	switch f.Channels {
	case 1:
		f.mat.CopyTo(&gray)
	case 4:
		gocv.CvtColor(f.mat, &gray, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(f.mat, &gray, gocv.ColorBGRToGray)
	}
	return gray
}

// Rotate180 returns a copy turned upside down, for a camera mounted inverted.
func (f *Frame) Rotate180() (*Frame, error) {
	rotated := gocv.NewMat()
	if err := gocv.Rotate(f.mat, &rotated, gocv.Rotate180Clockwise); err != nil {
		rotated.Close()
		return nil, fmt.Errorf("failed to rotate frame: %w", err)
	}
	return New(rotated, f.CapturedAt)
}

// Encode compresses the frame with the given extension (gocv.JPEGFileExt, gocv.PNGFileExt).
func (f *Frame) Encode(ext gocv.FileExt) ([]byte, error) {
	return EncodeMat(ext, f.mat)
}

// EncodeMat compresses mat and copies the bytes out of native memory.
func EncodeMat(ext gocv.FileExt, mat gocv.Mat) ([]byte, error) {
	if mat.Empty() {
		return nil, ErrEmptyFrame
	}
	buf, err := gocv.IMEncode(ext, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()
	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return data, nil
}

// Close releases the pixel buffer.
func (f *Frame) Close() error {
	if f == nil {
		return nil
	}
	return f.mat.Close()
}
