package scrape

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/laundry-scheduler/internal/booking"
)

// weekPage builds a minimal calendar for 2024-W11 (Mar 11..17) with two
// passes per day and the given icon per column/row.
func weekPage(icons [7][2]string) []byte {
	var b strings.Builder

	b.WriteString(`<html><body>`)
	b.WriteString(`<select id="ddBookingGroup"><option value="1">A</option><option value="3" selected>B</option></select>`)

	b.WriteString(`<table><tr><td class="BookingCalendarCurrentWeekCell">vecka 11</td>`)
	for day := 11; day <= 17; day++ {
		fmt.Fprintf(&b, `<td>%d/3</td>`, day)
	}
	b.WriteString(`</tr></table>`)

	b.WriteString(`<table class="calendarTimeRowOuterTdInnerTable">`)
	b.WriteString(`<tr><td>07:00 - 08:30</td></tr><tr><td>09:00 - 10:30</td></tr>`)
	b.WriteString(`</table>`)

	for col := 0; col < 7; col++ {
		b.WriteString(`<table class="BookingCalendarBookingIconsOuterCellInnerTable">`)
		for row := 0; row < 2; row++ {
			fmt.Fprintf(&b, `<tr><td><img src="Images/%s"></td></tr>`, icons[col][row])
		}
		b.WriteString(`</table>`)
	}

	b.WriteString(`</body></html>`)
	return []byte(b.String())
}

func allIcons(name string) [7][2]string {
	var icons [7][2]string
	for c := range icons {
		for r := range icons[c] {
			icons[c][r] = name
		}
	}
	return icons
}

var weekNow = time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC)

func TestWeekAt(t *testing.T) {
	icons := allIcons("icon_plus.png")
	icons[0][0] = "icon_own.png"
	icons[6][1] = "icon_no.png"

	slots, err := WeekAt(weekPage(icons), weekNow)
	require.NoError(t, err)
	require.Len(t, slots, 14)

	first := slots[0]
	assert.Equal(t, booking.StatusOwn, first.Status)
	assert.Equal(t, 3, first.GroupID)
	assert.Equal(t, 0, first.PassNumber)
	assert.Equal(t, time.Date(2024, 3, 11, 7, 0, 0, 0, time.UTC), first.Start)
	assert.Equal(t, time.Date(2024, 3, 11, 8, 30, 0, 0, time.UTC), first.End)
	assert.Equal(t, booking.WeekNum{Year: 2024, Week: 11}, first.WeekNum)

	last := slots[13]
	assert.Equal(t, booking.StatusTaken, last.Status)
	assert.Equal(t, 1, last.PassNumber)
	assert.Equal(t, time.Date(2024, 3, 17, 9, 0, 0, 0, time.UTC), last.Start)

	for _, s := range slots[1:13] {
		assert.Equal(t, booking.StatusAvailable, s.Status)
	}
}

func TestWeekAtUnknownIcon(t *testing.T) {
	icons := allIcons("icon_plus.png")
	icons[2][1] = "icon_mystery.png"

	_, err := WeekAt(weekPage(icons), weekNow)
	var merr *MarkupError
	require.ErrorAs(t, err, &merr)
	assert.Contains(t, merr.Expectation, "unknown status image")
}

func TestWeekAtMissingGroupSelect(t *testing.T) {
	html := []byte(`<html><body><td class="BookingCalendarCurrentWeekCell">vecka 11</td></body></html>`)
	_, err := WeekAt(html, weekNow)
	var merr *MarkupError
	require.ErrorAs(t, err, &merr)
	assert.Contains(t, merr.Expectation, "booking group")
}

func TestWeekAtDayHeaderMismatch(t *testing.T) {
	page := strings.Replace(string(weekPage(allIcons("icon_plus.png"))), ">12/3<", ">13/3<", 1)
	_, err := WeekAt([]byte(page), weekNow)
	var merr *MarkupError
	require.ErrorAs(t, err, &merr)
	assert.Contains(t, merr.Expectation, "date mismatch")
}
