package service

import (
	"context"
	"errors"
	"fmt"
	"image"

	"calendarcam/internal/config"
	"calendarcam/internal/dto"
	"calendarcam/internal/frame"
	"calendarcam/internal/grid"
	"calendarcam/internal/logger"
	"calendarcam/internal/model"
	"calendarcam/internal/service/extract"
	"calendarcam/internal/service/storage"
	"calendarcam/internal/service/vision"
)

// ErrNoCells aborts a run whose grid reconstruction produced nothing to read.
var ErrNoCells = errors.New("no day cells found")

// Publisher receives status events. The websocket hub implements it.
type Publisher interface {
	Publish(event dto.StatusEvent)
}

type nopPublisher struct{}

func (nopPublisher) Publish(dto.StatusEvent) {}

// Pipeline runs the geometric chain on one still: locate, rectify or crop,
// rebuild the grid, read every cell and write the record file.
type Pipeline struct {
	strategy  grid.Strategy
	rows      int
	cols      int
	tolerance int
	minCell   int

	locator   *vision.Locator
	rectifier *vision.Rectifier
	finder    *vision.GridFinder
	extractor *extract.CellExtractor
	store     *storage.ArtifactStore
	publisher Publisher
	logger    *logger.Logger
}

func NewPipeline(config *config.Config, extractor *extract.CellExtractor, store *storage.ArtifactStore,
	publisher Publisher, logger *logger.Logger) (*Pipeline, error) {
	strategy, err := grid.ParseStrategy(config.GridStrategy)
	if err != nil {
		return nil, err
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &Pipeline{
		strategy:  strategy,
		rows:      config.GridRows,
		cols:      config.GridCols,
		tolerance: config.RowTolerance,
		minCell:   config.MinCellSize,
		locator:   vision.NewLocator(config, logger),
		rectifier: vision.NewRectifier(logger),
		finder:    vision.NewGridFinder(config, logger),
		extractor: extractor,
		store:     store,
		publisher: publisher,
		logger:    logger,
	}, nil
}

func (p *Pipeline) Strategy() grid.Strategy {
	return p.strategy
}

// layout is the outcome of grid reconstruction: the cells and the image
// their bounds refer to.
type layout struct {
	source   *frame.Frame
	release  func()
	cells    []grid.Cell
	region   image.Rectangle
	fallback bool
	report   *grid.Report
}

// Run digitizes still. A structural failure returns an error and leaves the
// previous record file untouched.
func (p *Pipeline) Run(ctx context.Context, still *frame.Frame) (*model.Calendar, error) {
	p.logger.Info("Digitizing %dx%d still with %s strategy", still.Width, still.Height, p.strategy)

	l, err := p.reconstruct(still)
	if err != nil {
		p.logger.Error("Calendar run aborted: %v", err)
		return nil, err
	}
	defer l.release()

	if len(l.cells) == 0 {
		p.logger.Error("Calendar run aborted: %v", ErrNoCells)
		return nil, ErrNoCells
	}

	if err := p.store.ResetDays(); err != nil {
		return nil, err
	}

	records := p.extractor.Extract(ctx, l.source, l.cells)
	days, err := extract.Assemble(records)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble day records: %w", err)
	}

	if overlay, err := vision.Annotate(l.source, l.region, l.cells); err != nil {
		p.logger.Warning("Failed to draw cell overlay: %v", err)
	} else if _, err := p.store.SaveStill(overlay, still.CapturedAt, "cells"); err != nil {
		p.logger.Warning("Failed to save cell overlay: %v", err)
	}

	cal := &model.Calendar{
		Days:       days,
		CapturedAt: still.CapturedAt,
		Strategy:   p.strategy,
		Region:     l.region,
		Fallback:   l.fallback,
		Report:     l.report,
	}
	if cal.Empty() {
		p.logger.Warning("No text read in any of the %d day cells", len(cal.Days))
	}
	if err := p.store.WriteCalendar(cal); err != nil {
		return nil, err
	}

	p.publisher.Publish(dto.StatusEvent{
		Type:     dto.EventCalendar,
		Time:     cal.CapturedAt,
		Strategy: p.strategy.String(),
		Days:     storage.DayEntries(cal.Days),
		Report:   cal.Report,
	})
	p.logger.Info("Calendar run finished: %d days", len(cal.Days))
	return cal, nil
}

func (p *Pipeline) reconstruct(still *frame.Frame) (*layout, error) {
	switch p.strategy {
	case grid.Uniform:
		return p.uniform(still)
	case grid.IntersectionCluster, grid.LineContours:
		return p.fromRegion(still)
	}
	return nil, fmt.Errorf("unsupported grid strategy %s", p.strategy)
}

// uniform rectifies the calendar quad and divides it evenly; crops are taken
// from the rectified image.
func (p *Pipeline) uniform(still *frame.Frame) (*layout, error) {
	corners, err := p.locator.FindQuad(still)
	if err != nil {
		return nil, err
	}
	rectified, err := p.rectifier.Rectify(still, corners)
	if err != nil {
		return nil, err
	}
	cells, err := grid.Divide(rectified.Width, rectified.Height, p.rows, p.cols)
	if err != nil {
		rectified.Close()
		return nil, err
	}
	return &layout{
		source:  rectified.Frame,
		release: func() { rectified.Close() },
		cells:   cells,
		region:  rectified.Frame.Bounds(),
	}, nil
}

// fromRegion finds grid evidence inside the located calendar region and maps
// cells back onto the original still, which is where crops come from.
func (p *Pipeline) fromRegion(still *frame.Frame) (*layout, error) {
	region := p.locator.Locate(still)

	crop, err := still.Crop(region.Box)
	if err != nil {
		return nil, fmt.Errorf("failed to crop calendar region: %w", err)
	}
	defer crop.Close()
	gray := crop.Gray()
	defer gray.Close()

	var cells []grid.Cell
	var report *grid.Report
	if p.strategy == grid.IntersectionCluster {
		var r grid.Report
		cells, r = grid.FromIntersections(p.finder.Intersections(gray), p.tolerance)
		report = &r
		if r.Degraded() {
			p.logger.Warning("Grid under-detected: %s", r)
		} else {
			p.logger.Info("Grid reconstructed: %s", r)
		}
	} else {
		cells = grid.FromBoxes(p.finder.LineBoxes(gray), p.minCell, p.tolerance)
		p.logger.Info("Found %d line-enclosed cells", len(cells))
	}

	return &layout{
		source:   still,
		release:  func() {},
		cells:    grid.Translate(cells, region.Box.Min),
		region:   region.Box,
		fallback: region.Fallback,
		report:   report,
	}, nil
}
