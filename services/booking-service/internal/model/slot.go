package model

import "time"

// DateLayout renders slot dates in exports and JSON.
const DateLayout = "2006-01-02"

type Slot struct {
	ID       string
	Date     time.Time
	Time     string
	IsBooked bool
	// BookedAt is set on reservation and cleared on release.
	BookedAt *time.Time
}

// DateOnly truncates t to a UTC calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
