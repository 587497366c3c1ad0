// Package schedule computes fire instants for recurring-schedule triggers.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/zachsents/minus-sub000/pkg/models"
)

var (
	ErrUnknownUnit   = errors.New("unknown interval unit")
	ErrInvalidAtTime = errors.New("invalid atTime, expected HH:MM")
)

// ComputeFirstRun returns the first instant strictly after now that satisfies s.
// Anchors are rounded up: when today's anchor has already passed, the next period is used.
// Calendar overflow (onDay 31 in a 30 day month) rolls into the following month.
// The result is expressed in now's location.
func ComputeFirstRun(s models.RecurringSchedule, now time.Time) (time.Time, error) {
	switch s.IntervalUnit {
	case models.IntervalMinute:
		return now.Add(time.Duration(s.Interval) * time.Minute), nil

	case models.IntervalHour:
		next := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), s.AtMinute, 0, 0, now.Location())
		if !next.After(now) {
			next = next.Add(time.Hour)
		}

		return next, nil

	case models.IntervalDay:
		hour, minute, err := ParseAtTime(s.AtTime)
		if err != nil {
			return time.Time{}, err
		}

		next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}

		return next, nil

	case models.IntervalWeek:
		hour, minute, err := ParseAtTime(s.AtTime)
		if err != nil {
			return time.Time{}, err
		}

		daysAhead := (s.OnWeekday - int(now.Weekday()) + 7) % 7

		next := time.Date(now.Year(), now.Month(), now.Day()+daysAhead, hour, minute, 0, 0, now.Location())
		if !next.After(now) {
			next = next.AddDate(0, 0, 7)
		}

		return next, nil

	case models.IntervalMonth:
		hour, minute, err := ParseAtTime(s.AtTime)
		if err != nil {
			return time.Time{}, err
		}

		next := time.Date(now.Year(), now.Month(), s.OnDay, hour, minute, 0, 0, now.Location())
		if !next.After(now) {
			next = time.Date(now.Year(), now.Month()+1, s.OnDay, hour, minute, 0, 0, now.Location())
		}

		return next, nil

	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownUnit, s.IntervalUnit)
	}
}

// ComputeNextRun offsets last by one interval of s. It never re-anchors, so
// daylight saving and month length drift are carried over from last.
func ComputeNextRun(s models.RecurringSchedule, last time.Time) (time.Time, error) {
	switch s.IntervalUnit {
	case models.IntervalMinute:
		return last.Add(time.Duration(s.Interval) * time.Minute), nil
	case models.IntervalHour:
		return last.Add(time.Duration(s.Interval) * time.Hour), nil
	case models.IntervalDay:
		return last.AddDate(0, 0, s.Interval), nil
	case models.IntervalWeek:
		return last.AddDate(0, 0, 7*s.Interval), nil
	case models.IntervalMonth:
		return last.AddDate(0, s.Interval, 0), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownUnit, s.IntervalUnit)
	}
}

// ParseAtTime parses an "HH:MM" time of day.
func ParseAtTime(atTime string) (int, int, error) {
	parsed, err := time.Parse("15:04", atTime)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidAtTime, atTime)
	}

	return parsed.Hour(), parsed.Minute(), nil
}
