package booking

import "time"

// WeekFromDate returns the ISO-8601 week containing t, evaluated in UTC.
func WeekFromDate(t time.Time) WeekNum {
	year, week := t.UTC().ISOWeek()
	return WeekNum{Year: year, Week: week}
}

// DateFromWeek returns the Monday (00:00 UTC) of the given ISO week.
func DateFromWeek(year, week int) time.Time {
	d := time.Date(year, time.January, 1+(week-1)*7, 0, 0, 0, 0, time.UTC)
	dow := int(d.Weekday())
	if dow <= 4 {
		return d.AddDate(0, 0, 1-dow)
	}
	return d.AddDate(0, 0, 8-dow)
}

func circularMod(q, p int) int {
	if q < 0 {
		return p + q%p
	}
	return q % p
}

// TargetYear disambiguates a bare week number scraped from the calendar
// header: the page shows only "vecka N", so near a year boundary N could
// belong to the previous or next year. Picks the year that puts targetWeek
// within half a year of the current week.
func TargetYear(thisYear, thisWeek, targetWeek int) int {
	if thisWeek == targetWeek {
		return thisYear
	}
	adjusted := circularMod(targetWeek-thisWeek, 53) - 26
	switch {
	case adjusted > 0:
		if thisWeek > targetWeek {
			return thisYear
		}
		return thisYear - 1
	case adjusted < 0:
		if thisWeek < targetWeek {
			return thisYear
		}
		return thisYear + 1
	default:
		return thisYear
	}
}
