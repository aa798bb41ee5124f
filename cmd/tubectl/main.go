package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var version = "dev"

type globalFlags struct {
	server  string
	session string
	timeout time.Duration
}

func main() {
	var flags globalFlags

	root := &cobra.Command{
		Use:          "tubectl",
		Short:        "Query a TubeLytics server over its websocket API",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.server, "server", "ws://localhost:8080", "server base URL")
	root.PersistentFlags().StringVar(&flags.session, "session", "", "session to bind (a new one is created when empty)")
	root.PersistentFlags().DurationVar(&flags.timeout, "timeout", 30*time.Second, "overall request timeout")

	root.AddCommand(
		newSearchCmd(&flags),
		newRefreshCmd(&flags),
		newHistoryCmd(&flags),
		newStatsCmd(&flags),
		newVideoCmd(&flags),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
