package cli

import (
	"github.com/spf13/cobra"

	"validator-commission-alerts/internal/app"
)

var (
	subscribeEmail       string
	subscribePreference  string
	subscribeVote        string
	subscribeCommission  bool
	subscribeDelinquency bool
)

var subscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Create or update an alert subscription",
	Long: `Without --vote-account this manages the global subscription, whose
preference filters commission alerts by severity. With --vote-account it
manages a per-validator subscription instead; the two are independent.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.SubscribeOptions{
			Email:       subscribeEmail,
			Preference:  subscribePreference,
			VoteAccount: subscribeVote,
			Commission:  subscribeCommission,
			Delinquency: subscribeDelinquency,
		}

		return getApp().Subscribe(cmd.Context(), opts)
	},
}

func init() {
	subscribeCmd.Flags().StringVar(&subscribeEmail, "email", "", "Subscriber email address")
	subscribeCmd.Flags().StringVar(&subscribePreference, "preference", "", "Global severity filter (rugs_only, rugs_and_cautions, all)")
	subscribeCmd.Flags().StringVar(&subscribeVote, "vote-account", "", "Subscribe to a single validator")
	subscribeCmd.Flags().BoolVar(&subscribeCommission, "commission", false, "Receive the validator's commission alerts")
	subscribeCmd.Flags().BoolVar(&subscribeDelinquency, "delinquency", false, "Receive the validator's delinquency alerts")
}
