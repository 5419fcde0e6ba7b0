package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"transfer-core/pkg/config"
	"transfer-core/pkg/logger"
)

var cfgFile string

// rootCmd 代表基础命令，没有子命令时直接调用
var rootCmd = &cobra.Command{
	Use:   "transfer-cli",
	Short: "链上转账记录命令行工具",
	Long: `连接钱包、发送原生币转账并把转账元数据写入 Transactions 合约。
同一套协调器也可以通过 serve 以 HTTP/SSE 的方式对外提供。`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(cfgFile); err != nil {
			return err
		}
		logger.Init(config.Global.App.Env)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// Execute 将所有子命令添加到根命令并设置标志
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置文件 (默认 ./config.yaml)")
}
