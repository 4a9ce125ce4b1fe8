package dto

// DayEntry is one element of the record file.
type DayEntry struct {
	Day    int    `json:"day"`
	Events string `json:"events"`
}

// CalendarFile is the on-disk record of the last run, in day order.
type CalendarFile struct {
	Days []DayEntry `json:"days"`
}
