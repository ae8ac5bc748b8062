package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/laundry-scheduler/internal/config"
	"github.com/example/laundry-scheduler/internal/db"
	"github.com/example/laundry-scheduler/internal/migrate"
	"github.com/example/laundry-scheduler/internal/store"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Manage slot watches (non-UI)",
	}
	cmd.AddCommand(newWatchCreateCmd())
	cmd.AddCommand(newWatchListCmd())
	return cmd
}

func newWatchCreateCmd() *cobra.Command {
	var (
		userID          int64
		name            string
		weekday         int
		preferredTimes  string
		intervalSeconds int
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Create a watch that books a slot once it opens",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.ServerFromEnv()
			if err != nil {
				return err
			}
			ctx := context.Background()
			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := migrate.Up(ctx, d); err != nil {
				return err
			}

			w := store.Watch{
				UserID:         userID,
				Name:           name,
				Weekday:        weekday,
				PreferredTimes: splitCSV(preferredTimes),
				IntervalSec:    intervalSeconds,
			}
			if err := w.Validate(); err != nil {
				return err
			}

			id, err := store.NewWatches(d).Create(ctx, w)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "created watch id=%d weekday=%d preferred=%s\n", id, weekday, preferredTimes)
			return nil
		},
	}

	c.Flags().Int64Var(&userID, "user-id", 0, "user id (from DB)")
	c.Flags().StringVar(&name, "name", "", "watch name")
	c.Flags().IntVar(&weekday, "weekday", 0, "weekday, 0=Monday..6=Sunday")
	c.Flags().StringVar(&preferredTimes, "preferred-times", "", "comma-separated HH:MM starts, in priority order")
	c.Flags().IntVar(&intervalSeconds, "interval-seconds", 300, "retry interval seconds")

	_ = c.MarkFlagRequired("user-id")
	_ = c.MarkFlagRequired("name")
	_ = c.MarkFlagRequired("preferred-times")
	return c
}

func newWatchListCmd() *cobra.Command {
	var userID int64
	c := &cobra.Command{
		Use:   "list",
		Short: "List watches for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.ServerFromEnv()
			if err != nil {
				return err
			}
			ctx := context.Background()
			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			ws, err := store.NewWatches(d).ListByUser(ctx, userID)
			if err != nil {
				return err
			}
			for _, w := range ws {
				booked := "-"
				if w.BookedAt != nil {
					booked = w.BookedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(os.Stdout, "id=%d name=%q weekday=%d status=%s preferred=%s booked=%s\n",
					w.ID, w.Name, w.Weekday, w.Status, strings.Join(w.PreferredTimes, ","), booked)
			}
			return nil
		},
	}
	c.Flags().Int64Var(&userID, "user-id", 0, "user id")
	_ = c.MarkFlagRequired("user-id")
	return c
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
