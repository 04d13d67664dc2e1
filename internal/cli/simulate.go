package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"validator-commission-alerts/internal/app"
)

var (
	simulateVote       string
	simulateMetric     string
	simulateFrom       string
	simulateTo         string
	simulateDelinquent bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次佣金变更并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateFrom == "" || simulateTo == "" {
			return errors.New("--from 与 --to 必须提供")
		}

		opts := app.SimulateOptions{
			VoteAccount:    simulateVote,
			Metric:         simulateMetric,
			FromValue:      simulateFrom,
			ToValue:        simulateTo,
			MarkDelinquent: simulateDelinquent,
		}

		return getApp().SimulateAlert(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateVote, "vote-account", "", "被模拟的 vote account (默认使用占位账户)")
	simulateCmd.Flags().StringVar(&simulateMetric, "metric", "inflation", "被模拟的指标 (inflation 或 mev)")
	simulateCmd.Flags().StringVar(&simulateFrom, "from", "", "变更前取值 (数值, 或 disabled)")
	simulateCmd.Flags().StringVar(&simulateTo, "to", "", "变更后取值 (数值, 或 disabled)")
	simulateCmd.Flags().BoolVar(&simulateDelinquent, "delinquent", false, "同时把该验证者标记为掉线")
}
