package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clock(day, hour, minute int) time.Time {
	return time.Date(2025, 3, day, hour, minute, 0, 0, time.UTC)
}

func TestValidateWorkingHoursHourPrecision(t *testing.T) {
	window := WorkingHours{Open: 9, Close: 17, Precision: PrecisionHour}

	tests := []struct {
		name       string
		start, end time.Time
		ok         bool
		reason     string
	}{
		{"inside", clock(10, 10, 0), clock(10, 11, 0), true, "within working hours"},
		{"crosses day", clock(10, 16, 0), clock(11, 10, 0), false, "crosses a day boundary"},
		{"cross day wins over hours", clock(10, 20, 0), clock(11, 1, 0), false, "crosses a day boundary"},
		{"starts before open", clock(10, 8, 0), clock(10, 9, 0), false, "starts before opening"},
		{"starts 08:59", clock(10, 8, 59), clock(10, 10, 0), false, "starts before opening"},
		{"ends after close", clock(10, 16, 0), clock(10, 18, 0), false, "ends after closing"},
		{"ends exactly at close", clock(10, 16, 0), clock(10, 17, 0), true, "within working hours"},
		// Only the hour is compared: 17:15 has hour 17, which is not > 17.
		{"ends 17:15 passes", clock(10, 16, 30), clock(10, 17, 15), true, "within working hours"},
		{"starts at close", clock(10, 17, 0), clock(10, 17, 30), false, "starts at or after closing"},
		// 09:30 has hour 9, which is <= 9.
		{"ends 09:30 rejected", clock(10, 9, 0), clock(10, 9, 30), false, "ends at or before opening"},
		{"ends 10:00 passes", clock(10, 9, 0), clock(10, 10, 0), true, "within working hours"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := ValidateWorkingHours(tt.start, tt.end, window)
			assert.Equal(t, tt.ok, ok)
			assert.Contains(t, reason, tt.reason)
		})
	}
}

func TestValidateWorkingHoursRuleOrder(t *testing.T) {
	// Closing hour rules are only reachable with a window where start < open is false.
	window := WorkingHours{Open: 9, Close: 12, Precision: PrecisionHour}
	ok, reason := ValidateWorkingHours(clock(10, 8, 0), clock(10, 13, 0), window)
	assert.False(t, ok)
	assert.Contains(t, reason, "starts before opening", "first failing rule wins")
}

func TestValidateWorkingHoursMinutePrecision(t *testing.T) {
	window := WorkingHours{Open: 9, Close: 17, Precision: PrecisionMinute}

	tests := []struct {
		name       string
		start, end time.Time
		ok         bool
		reason     string
	}{
		{"inside", clock(10, 10, 0), clock(10, 11, 0), true, "within working hours"},
		{"crosses day", clock(10, 16, 0), clock(11, 10, 0), false, "crosses a day boundary"},
		{"ends 17:15 rejected", clock(10, 16, 30), clock(10, 17, 15), false, "ends after closing"},
		{"ends at close", clock(10, 16, 30), clock(10, 17, 0), true, "within working hours"},
		{"ends 09:30 passes", clock(10, 9, 0), clock(10, 9, 30), true, "within working hours"},
		{"starts 08:59", clock(10, 8, 59), clock(10, 9, 30), false, "starts before opening"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := ValidateWorkingHours(tt.start, tt.end, window)
			assert.Equal(t, tt.ok, ok)
			assert.Contains(t, reason, tt.reason)
		})
	}
}

func TestWorkingHoursValidate(t *testing.T) {
	require.NoError(t, DefaultWorkingHours().Validate())
	assert.Error(t, WorkingHours{Open: 17, Close: 9}.Validate())
	assert.Error(t, WorkingHours{Open: 9, Close: 24}.Validate())
	assert.Error(t, WorkingHours{Open: 9, Close: 17, Precision: "second"}.Validate())
}

func TestDayWindow(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	day := time.Date(2025, 3, 10, 15, 42, 0, 0, loc)
	w := DefaultWorkingHours().DayWindow(day)
	assert.Equal(t, time.Date(2025, 3, 10, 9, 0, 0, 0, loc), w.Start)
	assert.Equal(t, time.Date(2025, 3, 10, 17, 0, 0, 0, loc), w.End)
}
