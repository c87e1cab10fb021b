package domain

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// DaysUntil returns the whole days from now until t, rounded up. Past dates
// yield zero or negative values.
func DaysUntil(now, t time.Time) int {
	return int(math.Ceil(float64(t.Sub(now)) / float64(day)))
}

// DaysBetween returns the whole days elapsed from start to end, rounded down.
func DaysBetween(start, end time.Time) int {
	return int(math.Floor(float64(end.Sub(start)) / float64(day)))
}

// DateLabel formats t as an ISO calendar date.
func DateLabel(t time.Time) string {
	return t.Format("2006-01-02")
}
