// Package api is the high-level client for the booking site: it owns a
// session and turns pages into domain records.
package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/example/laundry-scheduler/internal/booking"
	"github.com/example/laundry-scheduler/internal/config"
	"github.com/example/laundry-scheduler/internal/scrape"
	"github.com/example/laundry-scheduler/internal/session"
)

type Client struct {
	sess *session.Session
	cfg  config.Site
}

// New builds a Client with its own authenticated session.
func New(cfg config.Site) (*Client, error) {
	sess, err := session.New(session.Config{
		AuthURL:      cfg.AuthURL,
		HomepageHost: cfg.HomepageHost,
		HomepagePath: cfg.HomepagePath,
		Username:     cfg.Username,
		MaxRedirects: cfg.MaxRedirects,
	})
	if err != nil {
		return nil, err
	}
	return &Client{sess: sess, cfg: cfg}, nil
}

func (c *Client) Close() { c.sess.Close() }

func (c *Client) homepageURL() *url.URL {
	return &url.URL{Scheme: "https", Host: c.cfg.HomepageHost, Path: c.cfg.HomepagePath}
}

// FetchWeek loads the week calendar weekOffset weeks from now and returns
// every slot on it.
func (c *Client) FetchWeek(ctx context.Context, weekOffset int) ([]booking.TimeSlot, error) {
	u := c.homepageURL()
	q := u.Query()
	q.Set("weekOffset", strconv.Itoa(weekOffset))
	u.RawQuery = q.Encode()

	res, err := c.sess.Request(ctx, u.String(), session.Options{
		SessionParams: session.AllParams(),
	})
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch week: unexpected status %d", res.StatusCode)
	}
	if len(res.Body) == 0 {
		return nil, fmt.Errorf("fetch week: empty response body")
	}
	return scrape.Week(res.Body)
}

// Bookings lists the user's own booked times.
func (c *Client) Bookings(ctx context.Context) ([]booking.TimeSlot, error) {
	body, err := c.Command(ctx, "listBookings", nil)
	if err != nil {
		return nil, err
	}
	return scrape.BookedTimes(body)
}

// Book books the given slot and decodes the confirmation page.
func (c *Client) Book(ctx context.Context, slot booking.TimeSlot) (scrape.CommandResult, error) {
	return c.slotCommand(ctx, "book", slot)
}

// Unbook releases the given slot.
func (c *Client) Unbook(ctx context.Context, slot booking.TimeSlot) (scrape.CommandResult, error) {
	return c.slotCommand(ctx, "unbook", slot)
}

func (c *Client) slotCommand(ctx context.Context, name string, slot booking.TimeSlot) (scrape.CommandResult, error) {
	body, err := c.Command(ctx, name, map[string]string{
		"groupId":    strconv.Itoa(slot.GroupID),
		"date":       commandDate(slot),
		"passNumber": strconv.Itoa(slot.PassNumber),
	})
	if err != nil {
		return scrape.CommandResult{}, err
	}
	return scrape.CommandOutcome(body)
}

// Command issues a raw command request and returns the response body.
func (c *Client) Command(ctx context.Context, name string, args map[string]string) ([]byte, error) {
	u := &url.URL{Scheme: "https", Host: c.cfg.HomepageHost, Path: c.cfg.CommandPath}
	q := u.Query()
	q.Set("command", name)
	for k, v := range args {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	res, err := c.sess.Request(ctx, u.String(), session.Options{
		SessionParams: session.AllParams(),
	})
	if err != nil {
		return nil, err
	}
	if len(res.Body) == 0 {
		return nil, fmt.Errorf("command %s: empty response body", name)
	}
	return res.Body, nil
}

// commandDate renders the date argument the way the site expects:
// midnight of the slot's day.
func commandDate(slot booking.TimeSlot) string {
	s := slot.Start.UTC()
	return fmt.Sprintf("%d-%02d-%d 00:00:00", s.Year(), int(s.Month()), s.Day())
}
