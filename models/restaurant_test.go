package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// 2024-03-05 is a Tuesday.
func at(hour, min int) time.Time {
	return time.Date(2024, 3, 5, hour, min, 0, 0, time.UTC)
}

func TestOpeningHoursDaytimeWindow(t *testing.T) {
	h := OpeningHours{"tuesday": {Open: "11:00", Close: "22:00"}}
	assert.False(t, h.IsOpenAt(at(10, 59)))
	assert.True(t, h.IsOpenAt(at(11, 0)))
	assert.True(t, h.IsOpenAt(at(21, 59)))
	assert.False(t, h.IsOpenAt(at(22, 0)))
}

func TestOpeningHoursSpanningMidnight(t *testing.T) {
	h := OpeningHours{
		"monday":  {Open: "18:00", Close: "02:00"},
		"tuesday": {Open: "18:00", Close: "02:00"},
	}
	assert.True(t, h.IsOpenAt(at(1, 30)), "monday's window runs into tuesday")
	assert.False(t, h.IsOpenAt(at(2, 0)))
	assert.False(t, h.IsOpenAt(at(12, 0)))
	assert.True(t, h.IsOpenAt(at(23, 0)))
}

func TestOpeningHoursClosedAndMissingDays(t *testing.T) {
	assert.True(t, OpeningHours{}.IsOpenAt(at(3, 0)), "no hours configured means open")

	h := OpeningHours{"tuesday": {Closed: true}, "monday": {Open: "09:00", Close: "17:00"}}
	assert.False(t, h.IsOpenAt(at(12, 0)))

	h = OpeningHours{"monday": {Open: "09:00", Close: "17:00"}}
	assert.False(t, h.IsOpenAt(at(12, 0)), "unlisted weekday is closed")
}

func TestDayHoursValidate(t *testing.T) {
	assert.NoError(t, DayHours{Open: "08:30", Close: "23:15"}.Validate())
	assert.NoError(t, DayHours{Closed: true}.Validate())
	assert.Error(t, DayHours{Open: "8am", Close: "23:00"}.Validate())
	assert.Equal(t, "08:30-23:15", DayHours{Open: "08:30", Close: "23:15"}.String())
}
