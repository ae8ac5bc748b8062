package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWeekFromDate(t *testing.T) {
	cases := []struct {
		date string
		want WeekNum
	}{
		{"2024-03-11", WeekNum{2024, 11}},
		{"2024-01-01", WeekNum{2024, 1}},
		// ISO year boundary: the last days of December can belong to
		// week 1 of the next year and vice versa.
		{"2024-12-30", WeekNum{2025, 1}},
		{"2021-01-01", WeekNum{2020, 53}},
	}
	for _, c := range cases {
		d, err := time.Parse("2006-01-02", c.date)
		assert.NoError(t, err)
		assert.Equal(t, c.want, WeekFromDate(d), "week of %s", c.date)
	}
}

func TestDateFromWeek(t *testing.T) {
	cases := []struct {
		year, week int
		want       string
	}{
		{2024, 11, "2024-03-11"},
		{2024, 1, "2024-01-01"},
		{2025, 1, "2024-12-30"},
		{2020, 53, "2020-12-28"},
	}
	for _, c := range cases {
		got := DateFromWeek(c.year, c.week)
		assert.Equal(t, c.want, got.Format("2006-01-02"), "monday of %d-W%02d", c.year, c.week)
		assert.Equal(t, time.Monday, got.Weekday())
	}
}

func TestTargetYear(t *testing.T) {
	// Early January looking back at late-December week numbers.
	assert.Equal(t, 2023, TargetYear(2024, 1, 52))
	// Late December looking ahead at week 1 of next year.
	assert.Equal(t, 2025, TargetYear(2024, 52, 1))
	// Same week, same year.
	assert.Equal(t, 2024, TargetYear(2024, 20, 20))
	// Nearby weeks stay in the current year.
	assert.Equal(t, 2024, TargetYear(2024, 20, 22))
	assert.Equal(t, 2024, TargetYear(2024, 20, 18))
}

func TestStatusFromIcon(t *testing.T) {
	s, ok := StatusFromIcon("icon_plus.png")
	assert.True(t, ok)
	assert.Equal(t, StatusAvailable, s)

	_, ok = StatusFromIcon("icon_mystery.png")
	assert.False(t, ok)
}
