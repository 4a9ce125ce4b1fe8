package extract

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"calendarcam/internal/config"
	"calendarcam/internal/frame"
	"calendarcam/internal/grid"
	"calendarcam/internal/logger"
	"calendarcam/internal/model"
	"calendarcam/internal/service/ocr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// fakeText answers with the order in which calls arrived, so a test can tell
// whether output order follows arrival order or day order.
type fakeText struct {
	mu    sync.Mutex
	calls int
	hints []ocr.LayoutHint
	fail  map[int]bool
	delay func(call int) time.Duration
}

func (f *fakeText) ExtractText(_ context.Context, image []byte, hint ocr.LayoutHint) (string, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.hints = append(f.hints, hint)
	f.mu.Unlock()

	if f.delay != nil {
		time.Sleep(f.delay(call))
	}
	if f.fail[call] {
		return "", errors.New("engine crashed")
	}
	return fmt.Sprintf("  call %d (%d bytes)\n", call, len(image)), nil
}

func (f *fakeText) Close() error { return nil }

type memorySink struct {
	mu    sync.Mutex
	saved map[int][]byte
}

func (s *memorySink) SaveCell(day int, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = map[int][]byte{}
	}
	s.saved[day] = data
	return fmt.Sprintf("day_%02d.jpg", day), nil
}

func testFrame(t *testing.T, width, height int) *frame.Frame {
	t.Helper()
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(200, 200, 200, 0), height, width, gocv.MatTypeCV8UC3)
	f, err := frame.New(mat, time.Now())
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestExtract_OneRecordPerCellInDayOrder(t *testing.T) {
	src := testFrame(t, 140, 60)
	cells, err := grid.Divide(140, 60, 2, 7)
	require.NoError(t, err)
	text := &fakeText{}
	sink := &memorySink{}
	extractor := NewCellExtractor(&config.Config{OCRWorkers: 1}, text, sink, logger.Discard())

	records := extractor.Extract(context.Background(), src, cells)

	require.Len(t, records, 14)
	for i, r := range records {
		assert.Equal(t, i+1, r.Day)
		assert.Equal(t, cells[i], r.Cell)
		assert.NotContains(t, r.Text, "\n")
		assert.Equal(t, byte('c'), r.Text[0], "text is trimmed")
	}
	assert.Len(t, sink.saved, 14)
	for _, h := range text.hints {
		assert.Equal(t, ocr.SingleBlock, h)
	}
}

func TestExtract_ParallelKeepsDayOrder(t *testing.T) {
	src := testFrame(t, 70, 60)
	cells, err := grid.Divide(70, 60, 6, 7)
	require.NoError(t, err)
	text := &fakeText{delay: func(call int) time.Duration {
		// early calls finish last
		return time.Duration(50-call) * time.Millisecond
	}}
	extractor := NewCellExtractor(&config.Config{OCRWorkers: 8}, text, &memorySink{}, logger.Discard())

	records := extractor.Extract(context.Background(), src, cells)

	require.Len(t, records, 42)
	for i, r := range records {
		assert.Equal(t, i+1, r.Day)
		assert.NotEmpty(t, r.Text)
	}
	assert.Equal(t, 42, text.calls)
}

func TestExtract_FailuresBecomeEmptyText(t *testing.T) {
	src := testFrame(t, 100, 50)
	cells := []grid.Cell{
		{Row: 0, Col: 0, Day: 1, Bounds: image.Rect(0, 0, 50, 50)},
		{Row: 0, Col: 1, Day: 2, Bounds: image.Rect(50, 0, 100, 50)},
		{Row: 0, Col: 2, Day: 3, Bounds: image.Rect(100, 0, 150, 50)}, // outside the frame
	}
	text := &fakeText{fail: map[int]bool{2: true}}
	sink := &memorySink{}
	extractor := NewCellExtractor(&config.Config{OCRWorkers: 1}, text, sink, logger.Discard())

	records := extractor.Extract(context.Background(), src, cells)

	require.Len(t, records, 3)
	assert.NotEmpty(t, records[0].Text)
	assert.Empty(t, records[1].Text)
	assert.Empty(t, records[2].Text)
	assert.Equal(t, 3, records[2].Day)
	assert.Len(t, sink.saved, 2)
	assert.Equal(t, 2, text.calls)
}

func TestExtract_NoCells(t *testing.T) {
	src := testFrame(t, 10, 10)
	extractor := NewCellExtractor(&config.Config{OCRWorkers: 4}, &fakeText{}, &memorySink{}, logger.Discard())
	assert.Empty(t, extractor.Extract(context.Background(), src, nil))
}

func TestAssemble(t *testing.T) {
	records := []model.DayRecord{{Day: 3, Text: "c"}, {Day: 1}, {Day: 2, Text: "b"}}

	out, err := Assemble(records)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{out[0].Day, out[1].Day, out[2].Day})
	assert.Equal(t, "", out[0].Text)
	// input untouched
	assert.Equal(t, 3, records[0].Day)
}

func TestAssemble_RejectsBadDays(t *testing.T) {
	_, err := Assemble([]model.DayRecord{{Day: 1}, {Day: 1}})
	assert.ErrorContains(t, err, "duplicate")

	_, err = Assemble([]model.DayRecord{{Day: 0}})
	assert.Error(t, err)
}

// sparseText finds nothing as a single block and something on a full-page read.
type sparseText struct {
	mu    sync.Mutex
	hints []ocr.LayoutHint
}

func (s *sparseText) ExtractText(_ context.Context, _ []byte, hint ocr.LayoutHint) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hints = append(s.hints, hint)
	if hint == ocr.FullPage {
		return " Dentist 9am \n", nil
	}
	return "\n", nil
}

func (s *sparseText) Close() error { return nil }

func TestExtract_EmptyBlockRetriesAsFullPage(t *testing.T) {
	src := testFrame(t, 100, 50)
	cells := []grid.Cell{{Row: 0, Col: 0, Day: 1, Bounds: image.Rect(0, 0, 50, 50)}}
	text := &sparseText{}
	extractor := NewCellExtractor(&config.Config{OCRWorkers: 1}, text, &memorySink{}, logger.Discard())

	records := extractor.Extract(context.Background(), src, cells)

	require.Len(t, records, 1)
	assert.Equal(t, "Dentist 9am", records[0].Text)
	assert.Equal(t, []ocr.LayoutHint{ocr.SingleBlock, ocr.FullPage}, text.hints)
}
