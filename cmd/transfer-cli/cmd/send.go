package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"transfer-core/internal/model"
	"transfer-core/internal/service/state"
	"transfer-core/pkg/config"
)

var (
	sendTo      string
	sendAmount  string
	sendKeyword string
	sendMessage string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "发送转账并写入链上记录",
	Long: `先发送原生币转账，再调用 addToBlockchain 记录元数据，阻塞直到记录交易被确认。
确认后更新本地缓存的交易数并刷新历史。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, config.Global)
		if err != nil {
			return err
		}
		defer a.Close()

		c := a.coordinator
		if err := c.Start(ctx); err != nil {
			return err
		}
		if c.State().Snapshot().Account == "" {
			if err := c.ConnectWallet(ctx); err != nil {
				return err
			}
		}

		fields := map[string]string{
			model.FieldAddressTo: sendTo,
			model.FieldAmount:    sendAmount,
			model.FieldKeyword:   sendKeyword,
			model.FieldMessage:   sendMessage,
		}
		for name, value := range fields {
			if err := c.UpdateFormField(name, value); err != nil {
				return err
			}
		}

		// 打印阶段变化
		last := c.State().Snapshot().Phase
		unsubscribe := c.State().Subscribe(func(s state.Snapshot) {
			if s.Phase == last {
				return
			}
			last = s.Phase
			switch s.Phase {
			case state.PhaseAwaitingConfirmation:
				fmt.Printf("⏳ Loading - %s\n", s.LastTxHash)
			case state.PhaseConfirmed:
				fmt.Printf("✅ Success - %s\n", s.LastTxHash)
			default:
				fmt.Printf("   %s\n", s.Phase)
			}
		})
		defer unsubscribe()

		if err := c.Submit(ctx); err != nil {
			fmt.Printf("❌ 提交失败: %v\n", err)
			return err
		}

		snap := c.State().Snapshot()
		fmt.Printf("Transaction count: %d\n", snap.TransactionCount)
		if snap.Notice != nil {
			fmt.Printf("⚠️  %s\n", snap.Notice.Message)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVar(&sendTo, "to", "", "收款地址")
	sendCmd.Flags().StringVar(&sendAmount, "amount", "", "金额 (ETH)")
	sendCmd.Flags().StringVar(&sendKeyword, "keyword", "", "关键字")
	sendCmd.Flags().StringVar(&sendMessage, "message", "", "附言")
	_ = sendCmd.MarkFlagRequired("to")
	_ = sendCmd.MarkFlagRequired("amount")
}
