package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"transfer-core/pkg/config"
)

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "比较本地缓存和链上的交易数",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, config.Global)
		if err != nil {
			return err
		}
		defer a.Close()

		cached, found, err := a.counter.Load(ctx)
		if err != nil {
			return err
		}
		onChain, err := a.gateway.FetchTransactionCount(ctx)
		if err != nil {
			return err
		}

		if found {
			fmt.Printf("Cached:   %d\n", cached)
		} else {
			fmt.Println("Cached:   -")
		}
		fmt.Printf("On-chain: %d\n", onChain)
		if found && onChain != cached {
			fmt.Println("⚠️  本地缓存与链上不一致，下一次确认后会被覆盖")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(countCmd)
}
