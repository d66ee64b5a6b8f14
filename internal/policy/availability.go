package policy

import (
	"time"

	"github.com/GTDGit/event_marketplace_api/internal/models"
)

// IsDateAvailable checks date against a. When a date range is configured it
// wins: the day must fall within [from, to] and must not be excluded. Without
// a range the legacy explicit list is consulted. Days are compared in UTC.
func IsDateAvailable(a models.Availability, date time.Time) bool {
	day := truncateDay(date)
	if a.DateRange != nil {
		from := truncateDay(a.DateRange.From)
		to := truncateDay(a.DateRange.To)
		if day.Before(from) || day.After(to) {
			return false
		}
		for _, ex := range a.ExcludedDates {
			if truncateDay(ex).Equal(day) {
				return false
			}
		}
		return true
	}
	for _, d := range a.AvailableDates {
		if truncateDay(d).Equal(day) {
			return true
		}
	}
	return false
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
