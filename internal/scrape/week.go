package scrape

import (
	"bytes"
	"fmt"
	"path"
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/example/laundry-scheduler/internal/booking"
)

const (
	weekCellClass       = ".BookingCalendarCurrentWeekCell"
	timeRowTableClass   = ".calendarTimeRowOuterTdInnerTable"
	iconColTableClass   = ".BookingCalendarBookingIconsOuterCellInnerTable"
	groupSelectedOptSel = "#ddBookingGroup > option[selected]"
)

var (
	weekHeader  = regexp.MustCompile(`(?i)\s*vecka\s*(\d+)`)
	dayHeader   = regexp.MustCompile(`(?:^|[^\d])(\d{1,2}/\d{1,2})(?:$|[^\d])`)
	rowTimeSpan = regexp.MustCompile(`(?:^|[^\d])(\d{2}:\d{2})\s*-\s*(\d{2}:\d{2})(?:$|[^\d])`)
)

// Week extracts every timeslot of a week-calendar page, one per status
// icon, with the status the icon encodes.
func Week(html []byte) ([]booking.TimeSlot, error) {
	return WeekAt(html, time.Now())
}

// WeekAt is Week with an explicit "current" time, used to resolve which
// year the page's bare week number belongs to.
func WeekAt(html []byte, now time.Time) ([]booking.TimeSlot, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	groupID, err := weekGroupID(doc)
	if err != nil {
		return nil, err
	}
	dates, week, err := weekDates(doc, now)
	if err != nil {
		return nil, err
	}
	ranges, err := weekTimeRanges(doc)
	if err != nil {
		return nil, err
	}

	cols := doc.Find(iconColTableClass)
	if cols.Length() != len(dates) {
		return nil, markupErrf("expected %d booking tables, got %d", len(dates), cols.Length())
	}

	var (
		slots   []booking.TimeSlot
		iterErr error
	)
	cols.EachWithBreak(func(dateIndex int, col *goquery.Selection) bool {
		imgs := col.Find("img")
		if imgs.Length() != len(ranges) {
			iterErr = markupErrf("expected %d image rows, got %d", len(ranges), imgs.Length())
			return false
		}
		imgs.EachWithBreak(func(slotIndex int, img *goquery.Selection) bool {
			src, _ := img.Attr("src")
			status, ok := booking.StatusFromIcon(path.Base(src))
			if !ok {
				iterErr = markupErrf("unknown status image %q, expected one of %v", src, booking.KnownIcons())
				return false
			}
			day := dates[dateIndex]
			r := ranges[slotIndex]
			slots = append(slots, booking.TimeSlot{
				WeekNum:    week,
				GroupID:    groupID,
				PassNumber: slotIndex,
				Start:      dateAt(day.Year(), int(day.Month()), day.Day(), r.Start),
				End:        dateAt(day.Year(), int(day.Month()), day.Day(), r.End),
				Status:     status,
			})
			return true
		})
		return iterErr == nil
	})
	if iterErr != nil {
		return nil, iterErr
	}
	return slots, nil
}

// weekGroupID reads the currently selected booking group from the page's
// group dropdown.
func weekGroupID(doc *goquery.Document) (int, error) {
	opt := doc.Find(groupSelectedOptSel)
	if opt.Length() != 1 {
		return 0, markupErrf("unable to determine current booking group, selected option missing")
	}
	val, ok := opt.Attr("value")
	if !ok {
		return 0, markupErrf("unable to determine current booking group, value attribute missing")
	}
	if !allNums.MatchString(val) {
		return 0, markupErrf("'groupId' is not a valid integer")
	}
	return mustInt(val), nil
}

// weekDates resolves the calendar's week header into the seven dates it
// covers and cross-checks each day-header cell against them.
func weekDates(doc *goquery.Document, now time.Time) ([7]time.Time, booking.WeekNum, error) {
	var dates [7]time.Time

	cells := doc.Find(weekCellClass)
	if cells.Length() == 0 {
		return dates, booking.WeekNum{}, markupErrf("cannot find current week table cell")
	}
	cell := cells.First()
	m := weekHeader.FindStringSubmatch(cell.Text())
	if m == nil {
		return dates, booking.WeekNum{}, markupErrf("unable to decode string in week cell")
	}
	weekNum := mustInt(m[1])
	cur := booking.WeekFromDate(now)
	year := booking.TargetYear(cur.Year, cur.Week, weekNum)

	monday := booking.DateFromWeek(year, weekNum)
	for i := range dates {
		dates[i] = monday.AddDate(0, 0, i)
	}

	next := cell.Next()
	for _, d := range dates {
		dm := dayHeader.FindStringSubmatch(next.Text())
		if dm == nil {
			return dates, booking.WeekNum{}, markupErrf("unable to find date-like segment of weekday string")
		}
		expected := fmt.Sprintf("%d/%d", d.Day(), int(d.Month()))
		if dm[1] != expected {
			return dates, booking.WeekNum{}, markupErrf("date mismatch, expected %q, got %q", expected, dm[1])
		}
		next = next.Next()
	}
	return dates, booking.WeekNum{Year: year, Week: weekNum}, nil
}

// weekTimeRanges reads the slot time ranges from the first time-row table.
// Every icon column repeats the same row layout.
func weekTimeRanges(doc *goquery.Document) ([]booking.TimeRange, error) {
	tables := doc.Find(timeRowTableClass)
	if tables.Length() == 0 {
		return nil, markupErrf("cannot find time row table")
	}
	rows := tables.First().Find("tr")

	var (
		ranges  []booking.TimeRange
		iterErr error
	)
	rows.EachWithBreak(func(_ int, row *goquery.Selection) bool {
		m := rowTimeSpan.FindStringSubmatch(row.Text())
		if m == nil {
			iterErr = markupErrf("unable to find time-range-like segment of slot row")
			return false
		}
		ranges = append(ranges, booking.TimeRange{
			Start: booking.Time{Hour: mustInt(m[1][:2]), Minute: mustInt(m[1][3:])},
			End:   booking.Time{Hour: mustInt(m[2][:2]), Minute: mustInt(m[2][3:])},
		})
		return true
	})
	if iterErr != nil {
		return nil, iterErr
	}
	return ranges, nil
}
