// Package scrape recovers structured booking records from the site's
// server-rendered HTML. The selectors and regexps here are deliberately
// specific to one markup dialect; anything off-pattern is an error rather
// than a guess.
package scrape

import (
	"bytes"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/example/laundry-scheduler/internal/booking"
)

const (
	// activeTableClass marks the one table holding the authenticated
	// booking view. Its absence is the primary "this is not the page we
	// thought" signal.
	activeTableClass = ".bgActiveColor"

	// errorBannerSel matches the site's inline error dialogue.
	errorBannerSel = `[color="#FF4500"]`

	// ownMarkerSel matches the arrow icon placed next to each of the
	// current user's bookings.
	ownMarkerSel = `img[src="Images/pil2_right.gif"]`
)

var (
	allNums   = regexp.MustCompile(`^\d+$`)
	isoDate   = regexp.MustCompile(`^\d{4,}-\d{2}-\d{2}$`)
	timeRange = regexp.MustCompile(`^\s*(\d{2}):(\d{2})\s*-\s*(\d{2}):(\d{2})\s*$`)

	// The only script fragment we recognize: a javascript: pseudo-URL
	// assigning a single-quoted string to location.href, allowing extra
	// scheme-like segments before the assignment. Not a JS parser.
	navHref = regexp.MustCompile(`^\s*javascript\s*:.*?location\s*\.\s*href\s*=\s*'([^']*)'\s*$`)
)

// BookedTimes extracts the current user's bookings from a booking listing
// page. Slots come back in document order; no marker images means no
// bookings, which is a valid empty result.
func BookedTimes(html []byte) ([]booking.TimeSlot, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	table := doc.Find(activeTableClass)
	if table.Length() != 1 {
		return nil, markupErrf("cannot find main table")
	}

	if banner := table.Find(errorBannerSel).First(); banner.Length() > 0 {
		return nil, &ServerError{Message: strings.TrimSpace(banner.Text())}
	}

	var (
		slots   []booking.TimeSlot
		iterErr error
	)
	table.Find(ownMarkerSel).EachWithBreak(func(_ int, img *goquery.Selection) bool {
		slot, err := bookedEntry(img)
		if err != nil {
			iterErr = err
			return false
		}
		slots = append(slots, slot)
		return true
	})
	if iterErr != nil {
		return nil, iterErr
	}
	return slots, nil
}

// bookedEntry decodes one marker image into a TimeSlot. The booking's
// parameters live in a navigation URL on the marker's parent cell; the
// time range is free text in the row below.
func bookedEntry(img *goquery.Selection) (booking.TimeSlot, error) {
	parent := img.Parent()

	onMouseDown, ok := parent.Attr("onmousedown")
	if !ok {
		return booking.TimeSlot{}, markupErrf("booking entry has no onmousedown attribute")
	}
	m := navHref.FindStringSubmatch(onMouseDown)
	if m == nil {
		return booking.TimeSlot{}, markupErrf("cannot find navigation URL in onmousedown attribute")
	}
	navURL := m[1]

	tr, err := entryTimeRange(parent)
	if err != nil {
		return booking.TimeSlot{}, err
	}
	return slotFromURL(navURL, tr)
}

// entryTimeRange finds the HH:MM - HH:MM text in the spans of the row
// following the marker's row.
func entryTimeRange(parent *goquery.Selection) (booking.TimeRange, error) {
	var tr booking.TimeRange
	found := false
	parent.ParentFiltered("tr").Next().Find("span").EachWithBreak(func(_ int, span *goquery.Selection) bool {
		m := timeRange.FindStringSubmatch(span.Text())
		if m == nil {
			return true
		}
		tr = booking.TimeRange{
			Start: booking.Time{Hour: mustInt(m[1]), Minute: mustInt(m[2])},
			End:   booking.Time{Hour: mustInt(m[3]), Minute: mustInt(m[4])},
		}
		found = true
		return false
	})
	if !found {
		return booking.TimeRange{}, markupErrf("cannot find time range for booking entry")
	}
	return tr, nil
}

// slotFromURL parses the navigation URL's query into a TimeSlot. Entries
// reached through the own-booking marker are always the user's own.
func slotFromURL(rawURL string, tr booking.TimeRange) (booking.TimeSlot, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return booking.TimeSlot{}, markupErrf("navigation URL does not parse: %v", err)
	}
	q := u.Query()

	groupID, err := queryInt(q, "groupId")
	if err != nil {
		return booking.TimeSlot{}, err
	}
	passNumber, err := queryInt(q, "passNumber")
	if err != nil {
		return booking.TimeSlot{}, err
	}

	if !q.Has("date") {
		return booking.TimeSlot{}, markupErrf("cannot find 'date' in URL")
	}
	date := q.Get("date")
	if !isoDate.MatchString(date) {
		return booking.TimeSlot{}, markupErrf("'date' is not a valid date")
	}
	parts := strings.SplitN(date, "-", 3)
	year, month, day := mustInt(parts[0]), mustInt(parts[1]), mustInt(parts[2])

	start := dateAt(year, month, day, tr.Start)
	end := dateAt(year, month, day, tr.End)

	return booking.TimeSlot{
		WeekNum:    booking.WeekFromDate(start),
		GroupID:    groupID,
		PassNumber: passNumber,
		Start:      start,
		End:        end,
		Status:     booking.StatusOwn,
	}, nil
}

func queryInt(q url.Values, key string) (int, error) {
	if !q.Has(key) {
		return 0, markupErrf("cannot find '%s' in URL", key)
	}
	v := q.Get(key)
	if !allNums.MatchString(v) {
		return 0, markupErrf("'%s' is not a valid integer", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, markupErrf("'%s' is not a valid integer", key)
	}
	return n, nil
}

// mustInt is only called on regexp-validated digit strings.
func mustInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// dateAt combines a calendar date with a wall-clock time, interpreted as
// UTC the way the site renders it.
func dateAt(year, month, day int, t booking.Time) time.Time {
	return time.Date(year, time.Month(month), day, t.Hour, t.Minute, 0, 0, time.UTC)
}
