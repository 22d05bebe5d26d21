package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/dev-bhaskar8/kekterminal/internal/engine"
)

var (
	simulateChatID    int64
	simulatePool      string
	simulatePrice     float64
	simulateTarget    float64
	simulateDirection string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Feed a synthetic price through the engine and the real notifier",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateChatID == 0 {
			return errors.New("--chat is required")
		}
		if simulatePrice <= 0 || simulateTarget <= 0 {
			return errors.New("--price and --target must be greater than 0")
		}
		direction := engine.Direction(simulateDirection)
		if !direction.Valid() {
			return errors.New("--direction must be above or below")
		}

		price := decimal.NewFromFloat(simulatePrice)
		target := decimal.NewFromFloat(simulateTarget)
		return getApp().SimulateAlert(cmd.Context(), simulateChatID, simulatePool, price, target, direction)
	},
}

func init() {
	simulateCmd.Flags().Int64Var(&simulateChatID, "chat", 0, "Chat id to notify")
	simulateCmd.Flags().StringVar(&simulatePool, "pool", "RON/USDC", "Pool label for the rendered message")
	simulateCmd.Flags().Float64Var(&simulatePrice, "price", 0, "Synthetic current price in USD")
	simulateCmd.Flags().Float64Var(&simulateTarget, "target", 0, "Target price in USD")
	simulateCmd.Flags().StringVar(&simulateDirection, "direction", "above", "above or below")
}
