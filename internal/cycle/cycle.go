// Package cycle computes the bounds of the weekly loot lockout window.
// The game resets on Wednesday at 00:00, so a cycle always spans Wednesday
// midnight through the following Tuesday 23:59:59.999.
package cycle

import "time"

// StartOf returns midnight of the most recent Wednesday on or before t,
// in t's location.
func StartOf(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) - int(time.Wednesday) + 7) % 7
	return day.AddDate(0, 0, -offset)
}

// EndOf returns the last tracked millisecond of the cycle containing t,
// i.e. the following Tuesday 23:59:59.999.
func EndOf(t time.Time) time.Time {
	return StartOf(t).AddDate(0, 0, 7).Add(-time.Millisecond)
}

// Bounds returns the closed interval [StartOf(t), EndOf(t)].
func Bounds(t time.Time) (start, end time.Time) {
	return StartOf(t), EndOf(t)
}

// Contains reports whether instant falls inside the cycle containing ref.
// Both interval ends are closed.
func Contains(ref, instant time.Time) bool {
	start, end := Bounds(ref)
	return !instant.Before(start) && !instant.After(end)
}

// WithinCurrentOrNext reports whether instant falls inside the cycle
// containing now, or the cycle immediately after it. Raids may only be
// scheduled inside this two-week horizon.
func WithinCurrentOrNext(now, instant time.Time) bool {
	return Contains(now, instant) || Contains(now.AddDate(0, 0, 7), instant)
}
