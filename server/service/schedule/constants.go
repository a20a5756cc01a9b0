package schedule

import "time"

const (
	// DefaultTimezone is the deployment timezone when none is configured.
	DefaultTimezone = "America/New_York"

	// SlotStep is the fixed granularity of slot enumeration.
	// It does not depend on the requested duration.
	SlotStep = 30 * time.Minute

	// DefaultOpenHour and DefaultCloseHour bound the default working-hours window.
	DefaultOpenHour  = 9
	DefaultCloseHour = 17

	// MaxAlternatives caps the number of suggested alternative slots.
	MaxAlternatives = 10
	// AlternativeDayRange is how many following days are searched for alternatives.
	AlternativeDayRange = 3
	// minSameDayAlternatives triggers the search of following days when not reached.
	minSameDayAlternatives = 3
)
