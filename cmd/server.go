package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/laundry-scheduler/internal/api"
	"github.com/example/laundry-scheduler/internal/auth"
	"github.com/example/laundry-scheduler/internal/config"
	"github.com/example/laundry-scheduler/internal/db"
	"github.com/example/laundry-scheduler/internal/migrate"
	"github.com/example/laundry-scheduler/internal/store"
	"github.com/example/laundry-scheduler/internal/watcher"
	"github.com/example/laundry-scheduler/internal/web"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the dashboard + slot watcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.ServerFromEnv()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.Ping(ctx); err != nil {
				return fmt.Errorf("db ping: %w", err)
			}

			if migrateUp {
				if err := migrate.Up(ctx, d); err != nil {
					return err
				}
			}

			client, err := api.New(cfg.Site)
			if err != nil {
				return err
			}
			defer client.Close()

			authStore := auth.NewStore(d, cfg.CookieHashKey, cfg.CookieBlockKey)
			watches := store.NewWatches(d)
			slots := store.NewSlots(d)

			w := &watcher.Watcher{
				Watches:  watches,
				Slots:    slots,
				Client:   client,
				Interval: cfg.PollInterval,
				Weeks:    cfg.WatchWeeks,
			}
			go func() { _ = w.Run(ctx) }()

			ws := &web.Server{Auth: authStore, Watches: watches, Slots: slots, BaseURL: cfg.BaseURL}
			return web.Start(ctx, cfg.ListenAddr, ws.Routes())
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}
