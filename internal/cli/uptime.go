package cli

import (
	"github.com/spf13/cobra"

	"validator-commission-alerts/internal/app"
)

var (
	uptimeVote string
	uptimeDays int
)

var uptimeCmd = &cobra.Command{
	Use:   "uptime",
	Short: "Display per-day uptime for a validator",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.UptimeOptions{
			VoteAccount: uptimeVote,
			Days:        uptimeDays,
		}

		return getApp().Uptime(cmd.Context(), opts)
	},
}

func init() {
	uptimeCmd.Flags().StringVar(&uptimeVote, "vote-account", "", "Validator vote account")
	uptimeCmd.Flags().IntVar(&uptimeDays, "days", 30, "Number of days to display")
}
