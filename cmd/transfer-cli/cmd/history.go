package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"transfer-core/pkg/config"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "显示链上记录的全部转账",
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
		// 未连接时 Start 不会刷新，读合约不需要账户
		if err := a.coordinator.Refresh(ctx); err != nil {
			return err
		}

		snap := a.coordinator.State().Snapshot()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tFROM\tTO\tAMOUNT\tKEYWORD\tMESSAGE")
		for _, r := range snap.Transactions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.Timestamp.Format(time.RFC3339), r.Sender, r.Receiver, r.Amount.String(), r.Keyword, r.Message)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("\n%d records\n", len(snap.Transactions))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
