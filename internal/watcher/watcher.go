// Package watcher polls the booking site and books slots for active
// watches as they become available.
package watcher

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/example/laundry-scheduler/internal/api"
	"github.com/example/laundry-scheduler/internal/booking"
	"github.com/example/laundry-scheduler/internal/store"
)

type Watcher struct {
	Watches *store.Watches
	Slots   *store.Slots
	Client  *api.Client

	Interval time.Duration
	// Weeks ahead to scan, 0 meaning only the current week.
	Weeks int

	wg sync.WaitGroup
}

func (w *Watcher) Run(ctx context.Context) error {
	t := time.NewTicker(w.Interval)
	defer t.Stop()

	// kick immediately
	w.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			return ctx.Err()
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *Watcher) tick(ctx context.Context) {
	watches, err := w.Watches.Active(ctx, 25)
	if err != nil {
		log.Printf("watcher: active watches query failed: %v", err)
		return
	}

	available, err := w.scanWeeks(ctx)
	if err != nil {
		log.Printf("watcher: week scan failed: %v", err)
		return
	}

	now := time.Now()
	for _, watch := range watches {
		if watch.NextAttemptAt().After(now) {
			continue
		}
		watch := watch
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.attempt(ctx, watch, available)
		}()
	}
}

// scanWeeks fetches the configured span of week pages, snapshots every
// slot, and returns the bookable ones.
func (w *Watcher) scanWeeks(ctx context.Context) ([]booking.TimeSlot, error) {
	var available []booking.TimeSlot
	for offset := 0; offset <= w.Weeks; offset++ {
		slots, err := w.Client.FetchWeek(ctx, offset)
		if err != nil {
			return nil, fmt.Errorf("fetch week %+d: %w", offset, err)
		}
		if err := w.Slots.UpsertWeek(ctx, slots); err != nil {
			return nil, err
		}
		for _, s := range slots {
			if s.Status == booking.StatusAvailable {
				available = append(available, s)
			}
		}
	}
	return available, nil
}

func (w *Watcher) attempt(ctx context.Context, watch store.Watch, available []booking.TimeSlot) {
	slot, ok := chooseSlot(watch, available)
	if !ok {
		msg := "no available slot matches the watch"
		_ = w.Watches.MarkAttempt(ctx, watch.ID, false, nil, "", &msg)
		return
	}

	res, err := w.Client.Book(ctx, slot)
	if err != nil {
		msg := fmt.Sprintf("book failed: %v", err)
		_ = w.Watches.MarkAttempt(ctx, watch.ID, false, &slot.Start, "", &msg)
		return
	}
	if !res.OK() {
		msg := res.Message
		_ = w.Watches.MarkAttempt(ctx, watch.ID, false, &slot.Start, res.Raw, &msg)
		return
	}
	log.Printf("watcher: booked %s for watch %d (%s)", slot.Start.Format(time.RFC3339), watch.ID, watch.Name)
	_ = w.Watches.MarkAttempt(ctx, watch.ID, true, &slot.Start, res.Raw, nil)
}

// chooseSlot picks the first available slot on the watch's weekday whose
// start matches the preferred times, in preference order.
func chooseSlot(watch store.Watch, available []booking.TimeSlot) (booking.TimeSlot, bool) {
	byStart := make(map[string]booking.TimeSlot)
	for _, s := range available {
		if mondayIndexed(s.Start.UTC().Weekday()) != watch.Weekday {
			continue
		}
		key := s.Start.UTC().Format("15:04")
		if existing, ok := byStart[key]; !ok || s.Start.Before(existing.Start) {
			byStart[key] = s
		}
	}
	for _, p := range watch.PreferredTimes {
		if s, ok := byStart[p]; ok {
			return s, true
		}
	}
	return booking.TimeSlot{}, false
}

// mondayIndexed converts Go's Sunday-first weekday to the calendar's
// Monday-first column index.
func mondayIndexed(d time.Weekday) int {
	return (int(d) + 6) % 7
}
