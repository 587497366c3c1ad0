package schedule_test

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zachsents/minus-sub000/pkg/models"
	"github.com/zachsents/minus-sub000/pkg/schedule"
)

// 2024-01-15 is a Monday.
func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.January, day, hour, minute, 0, 0, time.UTC)
}

func TestComputeFirstRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		schedule models.RecurringSchedule
		now      time.Time
		expected time.Time
	}{
		{
			name:     "minute is always one interval ahead",
			schedule: models.RecurringSchedule{Interval: 15, IntervalUnit: models.IntervalMinute},
			now:      at(15, 14, 0),
			expected: at(15, 14, 15),
		},
		{
			name:     "hour anchor later this hour",
			schedule: models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalHour, AtMinute: 30},
			now:      at(15, 14, 10),
			expected: at(15, 14, 30),
		},
		{
			name:     "hour anchor already passed",
			schedule: models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalHour, AtMinute: 5},
			now:      at(15, 14, 10),
			expected: at(15, 15, 5),
		},
		{
			name:     "hour anchor equal to now rolls over",
			schedule: models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalHour, AtMinute: 10},
			now:      at(15, 14, 10),
			expected: at(15, 15, 10),
		},
		{
			name:     "day anchor passed goes to tomorrow",
			schedule: models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalDay, AtTime: "09:00"},
			now:      at(15, 14, 0),
			expected: at(16, 9, 0),
		},
		{
			name:     "day anchor later today",
			schedule: models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalDay, AtTime: "18:45"},
			now:      at(15, 14, 0),
			expected: at(15, 18, 45),
		},
		{
			name:     "day ignores weekday anchor",
			schedule: models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalDay, AtTime: "18:45", OnWeekday: 5},
			now:      at(15, 14, 0),
			expected: at(15, 18, 45),
		},
		{
			name:     "week later in the week",
			schedule: models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalWeek, AtTime: "08:00", OnWeekday: 3},
			now:      at(15, 14, 0),
			expected: at(17, 8, 0),
		},
		{
			name:     "week earlier in the week wraps",
			schedule: models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalWeek, AtTime: "08:00", OnWeekday: 0},
			now:      at(15, 14, 0),
			expected: at(21, 8, 0),
		},
		{
			name:     "week today but time passed",
			schedule: models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalWeek, AtTime: "08:00", OnWeekday: 1},
			now:      at(15, 14, 0),
			expected: at(22, 8, 0),
		},
		{
			name:     "week today and time ahead",
			schedule: models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalWeek, AtTime: "20:00", OnWeekday: 1},
			now:      at(15, 14, 0),
			expected: at(15, 20, 0),
		},
		{
			name:     "month anchor later this month",
			schedule: models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalMonth, AtTime: "10:00", OnDay: 20},
			now:      at(15, 14, 0),
			expected: at(20, 10, 0),
		},
		{
			name:     "month anchor passed",
			schedule: models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalMonth, AtTime: "10:00", OnDay: 3},
			now:      at(15, 14, 0),
			expected: time.Date(2024, time.February, 3, 10, 0, 0, 0, time.UTC),
		},
		{
			name:     "month overflow rolls into march",
			schedule: models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalMonth, AtTime: "10:00", OnDay: 31},
			now:      time.Date(2023, time.February, 10, 9, 0, 0, 0, time.UTC),
			expected: time.Date(2023, time.March, 3, 10, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := schedule.ComputeFirstRun(tt.schedule, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.True(t, got.After(tt.now))
		})
	}
}

func TestComputeFirstRun_NeverAtOrBeforeNow(t *testing.T) {
	t.Parallel()

	units := []models.RecurringSchedule{
		{Interval: 1, IntervalUnit: models.IntervalHour, AtMinute: 0},
		{Interval: 1, IntervalUnit: models.IntervalDay, AtTime: "00:00"},
		{Interval: 1, IntervalUnit: models.IntervalWeek, AtTime: "00:00", OnWeekday: 2},
		{Interval: 1, IntervalUnit: models.IntervalMonth, AtTime: "00:00", OnDay: 1},
	}

	start := at(1, 0, 0)
	for step := 0; step < 24*40; step += 7 {
		now := start.Add(time.Duration(step) * time.Hour)

		for _, s := range units {
			got, err := schedule.ComputeFirstRun(s, now)
			require.NoError(t, err)
			assert.True(t, got.After(now), "unit %s at %s returned %s", s.IntervalUnit, now, got)
		}
	}
}

func TestComputeFirstRun_KeepsLocation(t *testing.T) {
	t.Parallel()

	location := time.FixedZone("UTC-5", -5*60*60)
	now := time.Date(2024, time.January, 15, 14, 0, 0, 0, location)

	got, err := schedule.ComputeFirstRun(models.RecurringSchedule{
		Interval: 1, IntervalUnit: models.IntervalDay, AtTime: "09:00",
	}, now)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, time.January, 16, 9, 0, 0, 0, location), got)
	assert.Equal(t, location, got.Location())
}

func TestComputeFirstRun_Errors(t *testing.T) {
	t.Parallel()

	_, err := schedule.ComputeFirstRun(models.RecurringSchedule{Interval: 1, IntervalUnit: "fortnight"}, at(15, 0, 0))
	require.ErrorIs(t, err, schedule.ErrUnknownUnit)

	_, err = schedule.ComputeFirstRun(models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalDay, AtTime: "9am"}, at(15, 0, 0))
	require.ErrorIs(t, err, schedule.ErrInvalidAtTime)
}

func TestComputeNextRun(t *testing.T) {
	t.Parallel()

	last := at(16, 9, 0)

	tests := []struct {
		name     string
		schedule models.RecurringSchedule
		expected time.Time
	}{
		{"minutes", models.RecurringSchedule{Interval: 45, IntervalUnit: models.IntervalMinute}, at(16, 9, 45)},
		{"hours", models.RecurringSchedule{Interval: 3, IntervalUnit: models.IntervalHour, AtMinute: 30}, at(16, 12, 0)},
		{"days", models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalDay, AtTime: "09:00"}, at(17, 9, 0)},
		{"days ignore anchor", models.RecurringSchedule{Interval: 2, IntervalUnit: models.IntervalDay, AtTime: "18:00"}, at(18, 9, 0)},
		{"weeks", models.RecurringSchedule{Interval: 2, IntervalUnit: models.IntervalWeek, AtTime: "09:00", OnWeekday: 5}, at(30, 9, 0)},
		{"months", models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalMonth, AtTime: "09:00", OnDay: 1}, time.Date(2024, time.February, 16, 9, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := schedule.ComputeNextRun(tt.schedule, last)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestComputeNextRun_IsPureOffset(t *testing.T) {
	t.Parallel()

	s := models.RecurringSchedule{Interval: 90, IntervalUnit: models.IntervalMinute}

	for _, last := range []time.Time{at(1, 0, 0), at(15, 13, 7), at(31, 23, 59)} {
		got, err := schedule.ComputeNextRun(s, last)
		require.NoError(t, err)
		assert.Equal(t, 90*time.Minute, got.Sub(last))
	}
}

func TestDailyScenario(t *testing.T) {
	t.Parallel()

	s := models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalDay, AtTime: "09:00"}

	first, err := schedule.ComputeFirstRun(s, at(15, 14, 0))
	require.NoError(t, err)
	assert.Equal(t, at(16, 9, 0), first)

	next, err := schedule.ComputeNextRun(s, first)
	require.NoError(t, err)
	assert.Equal(t, at(17, 9, 0), next)
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	validate := validator.New(validator.WithRequiredStructEnabled())
	schedule.RegisterValidation(validate)

	tests := []struct {
		name     string
		schedule models.RecurringSchedule
		valid    bool
	}{
		{"valid hourly", models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalHour, AtMinute: 59}, true},
		{"hourly minute out of range", models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalHour, AtMinute: 60}, false},
		{"daily ignores weekday", models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalDay, AtTime: "09:00", OnWeekday: 42}, true},
		{"daily requires atTime", models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalDay}, false},
		{"weekly bad weekday", models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalWeek, AtTime: "09:00", OnWeekday: 7}, false},
		{"monthly ignores atMinute", models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalMonth, AtTime: "09:00", OnDay: 31, AtMinute: 99}, true},
		{"monthly day zero", models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalMonth, AtTime: "09:00"}, false},
		{"minute needs no anchors", models.RecurringSchedule{Interval: 5, IntervalUnit: models.IntervalMinute, AtTime: "garbage"}, true},
		{"zero interval", models.RecurringSchedule{Interval: 0, IntervalUnit: models.IntervalMinute}, false},
		{"unknown unit", models.RecurringSchedule{Interval: 1, IntervalUnit: "year"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := validate.Struct(tt.schedule)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
