package schedule

import (
	"github.com/go-playground/validator/v10"
	"github.com/zachsents/minus-sub000/pkg/models"
)

// RegisterValidation adds the anchor rules for RecurringSchedule to v.
// Anchors are only checked for the unit that uses them, the others are ignored.
func RegisterValidation(v *validator.Validate) {
	v.RegisterStructValidation(validateAnchors, models.RecurringSchedule{})
}

func validateAnchors(sl validator.StructLevel) {
	s, ok := sl.Current().Interface().(models.RecurringSchedule)
	if !ok {
		return
	}

	switch s.IntervalUnit {
	case models.IntervalHour:
		if s.AtMinute < 0 || s.AtMinute > 59 {
			sl.ReportError(s.AtMinute, "AtMinute", "atMinute", "minute", "")
		}

	case models.IntervalDay:
		reportAtTime(sl, s)

	case models.IntervalWeek:
		reportAtTime(sl, s)

		if s.OnWeekday < 0 || s.OnWeekday > 6 {
			sl.ReportError(s.OnWeekday, "OnWeekday", "onWeekday", "weekday", "")
		}

	case models.IntervalMonth:
		reportAtTime(sl, s)

		if s.OnDay < 1 || s.OnDay > 31 {
			sl.ReportError(s.OnDay, "OnDay", "onDay", "monthday", "")
		}
	}
}

func reportAtTime(sl validator.StructLevel, s models.RecurringSchedule) {
	if _, _, err := ParseAtTime(s.AtTime); err != nil {
		sl.ReportError(s.AtTime, "AtTime", "atTime", "hhmm", "")
	}
}
