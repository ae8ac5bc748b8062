package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/laundry-scheduler/internal/api"
	"github.com/example/laundry-scheduler/internal/config"
)

func newWeekCmd() *cobra.Command {
	var weekOffset int

	c := &cobra.Command{
		Use:   "week",
		Short: "Fetch a week calendar and print every slot on it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.SiteFromEnv()
			if err != nil {
				return err
			}
			client, err := api.New(cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			slots, err := client.FetchWeek(context.Background(), weekOffset)
			if err != nil {
				return err
			}
			for _, s := range slots {
				fmt.Fprintf(os.Stdout, "%s  %s - %s  group=%d pass=%d %s\n",
					s.WeekNum, s.Start.Format("Mon 2006-01-02 15:04"), s.End.Format("15:04"),
					s.GroupID, s.PassNumber, s.Status)
			}
			return nil
		},
	}

	c.Flags().IntVar(&weekOffset, "week-offset", 0, "weeks from the current week")
	return c
}

func newBookingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bookings",
		Short: "List your own booked times",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.SiteFromEnv()
			if err != nil {
				return err
			}
			client, err := api.New(cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			slots, err := client.Bookings(context.Background())
			if err != nil {
				return err
			}
			if len(slots) == 0 {
				fmt.Fprintln(os.Stdout, "no bookings")
				return nil
			}
			for _, s := range slots {
				fmt.Fprintf(os.Stdout, "%s  %s - %s  group=%d pass=%d\n",
					s.WeekNum, s.Start.Format(time.RFC3339), s.End.Format("15:04"),
					s.GroupID, s.PassNumber)
			}
			return nil
		},
	}
}
