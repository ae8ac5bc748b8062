package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/laundry-scheduler/internal/api"
	"github.com/example/laundry-scheduler/internal/booking"
	"github.com/example/laundry-scheduler/internal/config"
	"github.com/example/laundry-scheduler/internal/scrape"
)

func newBookCmd() *cobra.Command {
	return newSlotCommandCmd("book", "Book a slot by group, pass number and date",
		func(ctx context.Context, client *api.Client, slot booking.TimeSlot) (scrape.CommandResult, error) {
			return client.Book(ctx, slot)
		})
}

func newUnbookCmd() *cobra.Command {
	return newSlotCommandCmd("unbook", "Release a booked slot",
		func(ctx context.Context, client *api.Client, slot booking.TimeSlot) (scrape.CommandResult, error) {
			return client.Unbook(ctx, slot)
		})
}

func newSlotCommandCmd(use, short string, run func(context.Context, *api.Client, booking.TimeSlot) (scrape.CommandResult, error)) *cobra.Command {
	var (
		groupID    int
		passNumber int
		date       string
	)

	c := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.SiteFromEnv()
			if err != nil {
				return err
			}

			day, err := time.ParseInLocation("2006-01-02", date, time.UTC)
			if err != nil {
				return fmt.Errorf("invalid --date (want YYYY-MM-DD)")
			}

			client, err := api.New(cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			res, err := run(context.Background(), client, booking.TimeSlot{
				GroupID:    groupID,
				PassNumber: passNumber,
				Start:      day,
			})
			if err != nil {
				return err
			}
			if !res.OK() {
				return fmt.Errorf("%s failed: %s", use, res.Message)
			}
			fmt.Fprintf(os.Stdout, "%s confirmed (%s)\n", res.Action, res.Raw)
			return nil
		},
	}

	c.Flags().IntVar(&groupID, "group-id", 0, "booking group id")
	c.Flags().IntVar(&passNumber, "pass-number", 0, "pass number within the day")
	c.Flags().StringVar(&date, "date", "", "slot date YYYY-MM-DD")

	_ = c.MarkFlagRequired("group-id")
	_ = c.MarkFlagRequired("date")
	return c
}
