package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"transfer-core/pkg/config"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "连接钱包",
	Long:  `启动检查已授权账户，未授权时向钱包请求连接。授权会被记住，下次启动自动连接。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, config.Global)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.coordinator.Start(ctx); err != nil {
			return err
		}
		if a.coordinator.State().Snapshot().Account == "" {
			if err := a.coordinator.ConnectWallet(ctx); err != nil {
				return err
			}
		}

		snap := a.coordinator.State().Snapshot()
		fmt.Printf("✅ Connected: %s\n", snap.Account)
		fmt.Printf("Transactions: %d (recorded %d)\n", snap.TransactionCount, len(snap.Transactions))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)
}
