package model

import (
	"image"
	"time"

	"calendarcam/internal/grid"
)

// DayRecord is the text recognized in one day cell.
type DayRecord struct {
	Day  int
	Text string
	Cell grid.Cell
}

// Calendar is the outcome of one digitization run.
type Calendar struct {
	Days       []DayRecord
	CapturedAt time.Time
	Strategy   grid.Strategy
	Region     image.Rectangle
	Fallback   bool
	Report     *grid.Report
}

// Empty reports whether no day produced any text.
func (c *Calendar) Empty() bool {
	for _, d := range c.Days {
		if d.Text != "" {
			return false
		}
	}
	return true
}
