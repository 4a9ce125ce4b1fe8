package dto

import (
	"time"

	"github.com/bytedance/sonic"
)

// StillInfo describes a raw still kept under the stills directory.
type StillInfo struct {
	Name       string    `json:"name"`
	CapturedAt time.Time `json:"capturedAt"`
	Size       int64     `json:"size"`
}

// MarshalJSON formats the capture time the way the status page shows it.
func (s StillInfo) MarshalJSON() ([]byte, error) {
	type Alias StillInfo
	return sonic.Marshal(&struct {
		CapturedAt string `json:"capturedAt"`
		Alias
	}{
		CapturedAt: s.CapturedAt.Format("02-01-2006 15:04:05"),
		Alias:      (Alias)(s),
	})
}

// StillsData is the payload of the stills listing.
type StillsData struct {
	Stills    []StillInfo `json:"stills"`
	StillsDir string      `json:"stillsDir"`
	Size      int64       `json:"size"`
	Length    int         `json:"length"`
}
