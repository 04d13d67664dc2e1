package cli

import (
	"github.com/spf13/cobra"

	"validator-commission-alerts/internal/app"
)

var (
	epochsFrom  uint64
	epochsTo    uint64
	epochsClass string
)

var epochsCmd = &cobra.Command{
	Use:   "epochs",
	Short: "Display the per-epoch offender report",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.EpochReportOptions{
			FromEpoch:      epochsFrom,
			ToEpoch:        epochsTo,
			Classification: epochsClass,
		}

		return getApp().EpochReport(cmd.Context(), opts)
	},
}

func init() {
	epochsCmd.Flags().Uint64Var(&epochsFrom, "from", 0, "First epoch of the window (defaults to the last ten)")
	epochsCmd.Flags().Uint64Var(&epochsTo, "to", 0, "Last epoch of the window (defaults to the latest observed)")
	epochsCmd.Flags().StringVar(&epochsClass, "classification", "rug", "Classification the report counts")
}
