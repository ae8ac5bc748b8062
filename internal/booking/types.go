package booking

import (
	"fmt"
	"time"
)

// Status is the bookability of a single timeslot as encoded by the site's
// status icons.
type Status int

const (
	// StatusOwn is a slot booked by the configured user.
	StatusOwn Status = iota
	StatusAvailable
	StatusNotYetAvailable
	StatusExpired
	StatusTaken
)

func (s Status) String() string {
	switch s {
	case StatusOwn:
		return "own"
	case StatusAvailable:
		return "available"
	case StatusNotYetAvailable:
		return "not-yet-available"
	case StatusExpired:
		return "expired"
	case StatusTaken:
		return "taken"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// iconStatus maps status icon filenames to their meaning. The site encodes
// slot state purely in these images.
var iconStatus = map[string]Status{
	"icon_own.png":      StatusOwn,
	"icon_plus.png":     StatusAvailable,
	"icon_plus_not.png": StatusNotYetAvailable,
	"icon_expired.png":  StatusExpired,
	"icon_no.png":       StatusTaken,
}

// StatusFromIcon resolves a status icon filename (without directory) to a
// Status. Unknown icons are an error, not a default: a new icon means the
// markup contract changed.
func StatusFromIcon(name string) (Status, bool) {
	s, ok := iconStatus[name]
	return s, ok
}

// KnownIcons returns the recognized icon filenames, for diagnostics.
func KnownIcons() []string {
	out := make([]string, 0, len(iconStatus))
	for k := range iconStatus {
		out = append(out, k)
	}
	return out
}

// Time is a wall-clock time of day.
type Time struct {
	Hour   int
	Minute int
}

func (t Time) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// TimeRange is a start/end pair of wall-clock times on the same day.
type TimeRange struct {
	Start Time
	End   Time
}

// WeekNum is an ISO-8601 (year, week) pair.
type WeekNum struct {
	Year int
	Week int
}

func (w WeekNum) String() string { return fmt.Sprintf("%d-W%02d", w.Year, w.Week) }

// TimeSlot is one bookable laundry pass.
type TimeSlot struct {
	WeekNum    WeekNum
	GroupID    int
	PassNumber int
	Start      time.Time
	End        time.Time
	Status     Status
}
