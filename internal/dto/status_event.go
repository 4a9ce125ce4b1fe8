package dto

import (
	"time"

	"calendarcam/internal/grid"
)

const (
	EventMotion   = "motion"
	EventCapture  = "capture"
	EventCalendar = "calendar"
	EventFailure  = "failure"
)

// StatusEvent is pushed to status viewers over the websocket.
type StatusEvent struct {
	Type     string       `json:"type"`
	Time     time.Time    `json:"time"`
	State    string       `json:"state,omitempty"`
	Score    int          `json:"score,omitempty"`
	Source   string       `json:"source,omitempty"`
	Strategy string       `json:"strategy,omitempty"`
	Days     []DayEntry   `json:"days,omitempty"`
	Report   *grid.Report `json:"report,omitempty"`
	Error    string       `json:"error,omitempty"`
}
