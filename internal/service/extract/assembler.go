package extract

import (
	"fmt"
	"sort"

	"calendarcam/internal/model"
)

// Assemble orders records by day number. Every record is kept, empty text
// included; a non-positive or repeated day is an error.
func Assemble(records []model.DayRecord) ([]model.DayRecord, error) {
	out := make([]model.DayRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Day < out[j].Day })

	for i, r := range out {
		if r.Day < 1 {
			return nil, fmt.Errorf("invalid day number %d", r.Day)
		}
		if i > 0 && out[i-1].Day == r.Day {
			return nil, fmt.Errorf("duplicate day number %d", r.Day)
		}
	}
	return out, nil
}
