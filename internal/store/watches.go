package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/laundry-scheduler/internal/db"
)

// Watch is a standing wish for a laundry slot: a weekday plus preferred
// start times, attempted until one is booked.
type Watch struct {
	ID     int64
	UserID int64
	Name   string

	// Weekday is 0=Monday..6=Sunday, matching the calendar columns.
	Weekday int

	// PreferredTimes are HH:MM starts in priority order.
	PreferredTimes []string

	IntervalSec int

	Status        string
	LastAttemptAt *time.Time
	BookedAt      *time.Time
	LastError     *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (w Watch) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("name required")
	}
	if w.Weekday < 0 || w.Weekday > 6 {
		return fmt.Errorf("weekday must be 0..6 (Monday..Sunday)")
	}
	if len(w.PreferredTimes) == 0 {
		return fmt.Errorf("preferred_times required")
	}
	for _, t := range w.PreferredTimes {
		if len(t) != 5 || t[2] != ':' {
			return fmt.Errorf("preferred time %q must be HH:MM", t)
		}
	}
	if w.IntervalSec < 1 {
		return fmt.Errorf("interval_seconds must be >= 1")
	}
	return nil
}

// NextAttemptAt is when the watch becomes due again.
func (w Watch) NextAttemptAt() time.Time {
	if w.LastAttemptAt == nil {
		return w.CreatedAt
	}
	return w.LastAttemptAt.Add(time.Duration(w.IntervalSec) * time.Second)
}

type Watches struct{ db *db.DB }

func NewWatches(d *db.DB) *Watches { return &Watches{db: d} }

func (r *Watches) Create(ctx context.Context, w Watch) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
INSERT INTO watches(user_id, name, weekday, preferred_times, interval_seconds, status)
VALUES ($1,$2,$3,$4,$5,'active')
RETURNING id`,
		w.UserID, w.Name, w.Weekday, strings.Join(w.PreferredTimes, ","), w.IntervalSec,
	).Scan(&id)
	return id, db.WrapNotFound(err)
}

const watchColumns = `id, user_id, name, weekday, preferred_times, interval_seconds, status, last_attempt_at, booked_at, last_error, created_at, updated_at`

func scanWatch(row db.Row) (Watch, error) {
	var w Watch
	var preferred string
	if err := row.Scan(
		&w.ID, &w.UserID, &w.Name, &w.Weekday, &preferred, &w.IntervalSec,
		&w.Status, &w.LastAttemptAt, &w.BookedAt, &w.LastError, &w.CreatedAt, &w.UpdatedAt,
	); err != nil {
		return Watch{}, err
	}
	for _, p := range strings.Split(preferred, ",") {
		if p = strings.TrimSpace(p); p != "" {
			w.PreferredTimes = append(w.PreferredTimes, p)
		}
	}
	return w, nil
}

func (r *Watches) ListByUser(ctx context.Context, userID int64) ([]Watch, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+watchColumns+` FROM watches WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Watch
	for rows.Next() {
		w, err := scanWatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Active lists watches still hunting for a slot.
func (r *Watches) Active(ctx context.Context, limit int) ([]Watch, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+watchColumns+` FROM watches WHERE status='active' ORDER BY created_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Watch
	for rows.Next() {
		w, err := scanWatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *Watches) SetStatus(ctx context.Context, watchID int64, status string, lastErr *string) error {
	return r.db.Exec(ctx, `UPDATE watches SET status=$2, last_error=$3, updated_at=now() WHERE id=$1`, watchID, status, lastErr)
}

// MarkAttempt records one booking attempt; on success the watch is closed
// out as booked.
func (r *Watches) MarkAttempt(ctx context.Context, watchID int64, success bool, slotStart *time.Time, output string, lastErr *string) error {
	if err := r.db.Exec(ctx, `INSERT INTO watch_attempts(watch_id, success, slot_start, output) VALUES ($1,$2,$3,$4)`,
		watchID, success, slotStart, output); err != nil {
		return err
	}
	if success {
		return r.db.Exec(ctx, `UPDATE watches SET last_attempt_at=now(), booked_at=now(), status='booked', last_error=NULL, updated_at=now() WHERE id=$1`, watchID)
	}
	return r.db.Exec(ctx, `UPDATE watches SET last_attempt_at=now(), last_error=$2, updated_at=now() WHERE id=$1`, watchID, lastErr)
}
