// Package extract crops day cells and turns them into ordered day records.
package extract

import (
	"context"
	"strings"
	"sync"

	"calendarcam/internal/config"
	"calendarcam/internal/frame"
	"calendarcam/internal/grid"
	"calendarcam/internal/logger"
	"calendarcam/internal/model"
	"calendarcam/internal/service/ocr"

	"gocv.io/x/gocv"
)

// CropSink receives the encoded crop of every day.
type CropSink interface {
	SaveCell(day int, data []byte) (string, error)
}

type ocrTask struct {
	slot  int
	day   int
	image []byte
}

// CellExtractor crops cells from a source frame and recognizes their text
// on a pool of workers. Results land in day-indexed slots, so the output
// order never depends on which worker finished first.
type CellExtractor struct {
	text       ocr.TextExtractor
	sink       CropSink
	numWorkers int
	logger     *logger.Logger
}

func NewCellExtractor(config *config.Config, text ocr.TextExtractor, sink CropSink, logger *logger.Logger) *CellExtractor {
	return &CellExtractor{
		text:       text,
		sink:       sink,
		numWorkers: max(config.OCRWorkers, 1),
		logger:     logger,
	}
}

// Extract returns one record per cell, in the order the cells are given.
// Crop and recognition failures are logged and yield an empty text.
func (e *CellExtractor) Extract(ctx context.Context, src *frame.Frame, cells []grid.Cell) []model.DayRecord {
	records := make([]model.DayRecord, len(cells))
	tasks := make([]ocrTask, 0, len(cells))

	for i, cell := range cells {
		records[i] = model.DayRecord{Day: cell.Day, Cell: cell}

		data, err := e.crop(src, cell)
		if err != nil {
			e.logger.Error("Failed to crop day %d at %v: %v", cell.Day, cell.Bounds, err)
			continue
		}
		if _, err := e.sink.SaveCell(cell.Day, data); err != nil {
			e.logger.Error("Failed to save crop of day %d: %v", cell.Day, err)
		}
		tasks = append(tasks, ocrTask{slot: i, day: cell.Day, image: data})
	}

	queue := make(chan ocrTask)
	var wg sync.WaitGroup
	for w := 0; w < min(e.numWorkers, max(len(tasks), 1)); w++ {
		wg.Add(1)
		go e.worker(ctx, queue, records, &wg)
	}
	for _, task := range tasks {
		queue <- task
	}
	close(queue)
	wg.Wait()

	e.logger.Info("Extracted text from %d/%d cells", len(tasks), len(cells))
	return records
}

func (e *CellExtractor) crop(src *frame.Frame, cell grid.Cell) ([]byte, error) {
	mat, err := src.Region(cell.Bounds)
	if err != nil {
		return nil, err
	}
	defer mat.Close()
	return frame.EncodeMat(gocv.JPEGFileExt, mat)
}

// worker writes only to records[task.slot], which no other task shares.
func (e *CellExtractor) worker(ctx context.Context, queue <-chan ocrTask, records []model.DayRecord, wg *sync.WaitGroup) {
	defer wg.Done()
	for task := range queue {
		text, err := e.readCell(ctx, task)
		if err != nil {
			e.logger.Warning("Text extraction failed for day %d, recording empty text: %v", task.day, err)
			continue
		}
		records[task.slot].Text = text
	}
}

// readCell reads a crop as one block of text. Sparse entries that the
// single-block layout misses get a second read with full page segmentation.
func (e *CellExtractor) readCell(ctx context.Context, task ocrTask) (string, error) {
	text, err := e.text.ExtractText(ctx, task.image, ocr.SingleBlock)
	if err != nil {
		return "", err
	}
	if text = strings.TrimSpace(text); text != "" {
		return text, nil
	}
	text, err = e.text.ExtractText(ctx, task.image, ocr.FullPage)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
