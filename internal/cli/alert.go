package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/dev-bhaskar8/kekterminal/internal/app"
)

var (
	addChatID    int64
	addPool      string
	addLabel     string
	addTarget    string
	addDirection string

	removeID   string
	listChatID int64
)

var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Manage price alerts",
}

var alertAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a price alert for a pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		if addChatID == 0 {
			return errors.New("--chat is required")
		}
		if addPool == "" {
			return errors.New("--pool is required")
		}
		if addTarget == "" {
			return errors.New("--target is required")
		}

		return getApp().AddAlert(cmd.Context(), app.AddAlertOptions{
			ChatID:    addChatID,
			Pool:      addPool,
			Label:     addLabel,
			Target:    addTarget,
			Direction: addDirection,
		})
	},
}

var alertRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove an alert by id",
	RunE: func(cmd *cobra.Command, args []string) error {
		if removeID == "" {
			return errors.New("--id is required")
		}
		return getApp().RemoveAlert(cmd.Context(), removeID)
	},
}

var alertListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ListAlerts(cmd.Context(), listChatID)
	},
}

func init() {
	alertAddCmd.Flags().Int64Var(&addChatID, "chat", 0, "Chat id to notify")
	alertAddCmd.Flags().StringVar(&addPool, "pool", "", "Pool address to watch")
	alertAddCmd.Flags().StringVar(&addLabel, "label", "", "Human-readable pool label, e.g. RON/USDC")
	alertAddCmd.Flags().StringVar(&addTarget, "target", "", "Target price in USD")
	alertAddCmd.Flags().StringVar(&addDirection, "direction", "", "above or below (derived from current price when omitted)")

	alertRemoveCmd.Flags().StringVar(&removeID, "id", "", "Alert id")

	alertListCmd.Flags().Int64Var(&listChatID, "chat", 0, "Restrict to one chat id")

	alertCmd.AddCommand(alertAddCmd)
	alertCmd.AddCommand(alertRemoveCmd)
	alertCmd.AddCommand(alertListCmd)
}
