package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "laundrysched",
		Short: "Client + watcher for a legacy laundry-booking site: scrapes slots, books them, serves a dashboard",
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newKeysCmd())
	root.AddCommand(newServerCmd())
	root.AddCommand(newUserCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newWeekCmd())
	root.AddCommand(newBookingsCmd())
	root.AddCommand(newBookCmd())
	root.AddCommand(newUnbookCmd())

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
