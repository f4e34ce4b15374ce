package cache

import (
	"time"
)

// sessionRollover is the New York wall-clock hour after which the previous
// trading day's daily bar is final.
const sessionRollover = 18

// TimeUntilNextSession returns the duration until the next 18:00 New York time.
// If the time zone cannot be loaded it computes in UTC.
func TimeUntilNextSession(now time.Time) time.Duration {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	now = now.In(loc)

	next := time.Date(now.Year(), now.Month(), now.Day(), sessionRollover, 0, 0, 0, loc)

	// already past, use tomorrow
	if !now.Before(next) {
		next = next.AddDate(0, 0, 1)
	}

	return next.Sub(now)
}
