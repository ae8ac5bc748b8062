// Package store persists scraped slots and the user's watches.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/example/laundry-scheduler/internal/booking"
	"github.com/example/laundry-scheduler/internal/db"
)

// Slots keeps the latest snapshot of every timeslot we have seen, one row
// per (group, pass, start).
type Slots struct{ db *db.DB }

func NewSlots(d *db.DB) *Slots { return &Slots{db: d} }

// UpsertWeek replaces the stored state of every slot in the batch with
// what the page showed.
func (r *Slots) UpsertWeek(ctx context.Context, slots []booking.TimeSlot) error {
	for _, s := range slots {
		err := r.db.Exec(ctx, `
INSERT INTO slots(group_id, pass_number, start_at, end_at, week_year, week_num, status, fetched_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,now())
ON CONFLICT (group_id, pass_number, start_at)
DO UPDATE SET end_at=EXCLUDED.end_at, week_year=EXCLUDED.week_year, week_num=EXCLUDED.week_num,
              status=EXCLUDED.status, fetched_at=now()`,
			s.GroupID, s.PassNumber, s.Start, s.End, s.WeekNum.Year, s.WeekNum.Week, s.Status.String(),
		)
		if err != nil {
			return fmt.Errorf("upsert slot %s/%d: %w", s.Start.Format(time.RFC3339), s.PassNumber, err)
		}
	}
	return nil
}

// Upcoming lists stored slots starting after now, soonest first.
func (r *Slots) Upcoming(ctx context.Context, limit int) ([]StoredSlot, error) {
	rows, err := r.db.Query(ctx, `
SELECT group_id, pass_number, start_at, end_at, week_year, week_num, status, fetched_at
FROM slots
WHERE start_at >= now()
ORDER BY start_at ASC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredSlot
	for rows.Next() {
		var s StoredSlot
		if err := rows.Scan(&s.GroupID, &s.PassNumber, &s.StartAt, &s.EndAt, &s.WeekYear, &s.WeekNum, &s.Status, &s.FetchedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// StoredSlot is a slot row as persisted; Status is kept as its string form
// so old rows survive enum changes.
type StoredSlot struct {
	GroupID    int
	PassNumber int
	StartAt    time.Time
	EndAt      time.Time
	WeekYear   int
	WeekNum    int
	Status     string
	FetchedAt  time.Time
}
