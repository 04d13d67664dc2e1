package cli

import (
	"github.com/spf13/cobra"

	"validator-commission-alerts/internal/app"
)

var (
	unsubscribeEmail string
	unsubscribeVote  string
)

var unsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe",
	Short: "Remove alert subscriptions",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.SubscribeOptions{
			Email:       unsubscribeEmail,
			VoteAccount: unsubscribeVote,
		}

		return getApp().Unsubscribe(cmd.Context(), opts)
	},
}

func init() {
	unsubscribeCmd.Flags().StringVar(&unsubscribeEmail, "email", "", "Subscriber email address")
	unsubscribeCmd.Flags().StringVar(&unsubscribeVote, "vote-account", "", "Remove only this validator's subscription")
}
