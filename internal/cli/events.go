package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"validator-commission-alerts/internal/app"
)

var (
	eventsVote  string
	eventsClass string
	eventsLimit int
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Display recorded commission events",
	RunE: func(cmd *cobra.Command, args []string) error {
		if eventsLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.EventsOptions{
			VoteAccount:    eventsVote,
			Classification: eventsClass,
			Limit:          eventsLimit,
		}

		return getApp().Events(cmd.Context(), opts)
	},
}

func init() {
	eventsCmd.Flags().StringVar(&eventsVote, "vote-account", "", "Show the deduplicated history of one validator")
	eventsCmd.Flags().StringVar(&eventsClass, "classification", "", "Filter by classification (rug, caution, info)")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 20, "Number of events to display")
}
