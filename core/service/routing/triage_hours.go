package routing

import (
	"fmt"
	"time"

	"triage_server/core/domain"
)

// IsWithinBusinessHours reports whether nowUTC falls inside any of the
// tenant's weekly windows, evaluated in the tenant's timezone. A pure
// function of its inputs so it can be tested with injected clocks.
//
// An empty schedule means the tenant is always open. An unknown
// timezone is reported as an error together with true, so callers
// never substitute an after-hours destination on bad configuration.
func IsWithinBusinessHours(nowUTC time.Time, tz string, windows []domain.BusinessWindow) (bool, error) {
	if len(windows) == 0 {
		return true, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return true, fmt.Errorf("unknown timezone %q: %w", tz, err)
	}

	local := nowUTC.In(loc)
	minutes := local.Hour()*60 + local.Minute()

	for _, window := range windows {
		if !windowCoversDay(window, local.Weekday()) {
			continue
		}

		start, err := parseHHMM(window.Start)
		if err != nil {
			return true, err
		}
		end, err := parseHHMM(window.End)
		if err != nil {
			return true, err
		}

		// Start is inclusive, end exclusive.
		if minutes >= start && minutes < end {
			return true, nil
		}
	}

	return false, nil
}

func windowCoversDay(window domain.BusinessWindow, day time.Weekday) bool {
	for _, d := range window.Days {
		if d == day {
			return true
		}
	}
	return false
}

func parseHHMM(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid business hours time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
