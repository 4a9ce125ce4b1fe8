package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalendarEmpty(t *testing.T) {
	assert.True(t, (&Calendar{}).Empty())
	assert.True(t, (&Calendar{Days: []DayRecord{{Day: 1}, {Day: 2}}}).Empty())
	assert.False(t, (&Calendar{Days: []DayRecord{{Day: 1}, {Day: 2, Text: "Dentist"}}}).Empty())
}
