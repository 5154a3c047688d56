package booking

import (
	"errors"
	"fmt"
	"time"
)

const defaultWindowDays = 7

// ErrInvalidWindow marks a malformed from/to range so the transport layer
// can reject it as a validation failure rather than a server error.
var ErrInvalidWindow = errors.New("invalid slot window")

// SlotWindow resolves the from/to query parameters into a concrete UTC
// window. from defaults to today; to defaults to seven days from now,
// independent of from. The window always spans whole days: from is
// clamped to 00:00:00 and to runs to the last instant of its day.
func SlotWindow(fromStr, toStr string, now time.Time) (from, to time.Time, err error) {
	from = now.UTC()
	if fromStr != "" {
		from, err = parseDay(fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: bad from date: %v", ErrInvalidWindow, err)
		}
	}

	to = now.UTC().AddDate(0, 0, defaultWindowDays)
	if toStr != "" {
		to, err = parseDay(toStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: bad to date: %v", ErrInvalidWindow, err)
		}
	}

	from = startOfDay(from)
	to = endOfDay(to)

	// an explicitly inverted range is a caller mistake; a defaulted to
	// that falls before a future from just yields an empty window
	if toStr != "" && to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to %s precedes from %s", ErrInvalidWindow, to.Format("2006-01-02"), from.Format("2006-01-02"))
	}

	return from, to, nil
}

func parseDay(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 23, 59, 59, 999_000_000, time.UTC)
}
