package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"transfer-core/internal/handler"
	"transfer-core/internal/server"
	"transfer-core/pkg/config"
	"transfer-core/pkg/logger"
	"transfer-core/pkg/monitor"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "以 HTTP/SSE 提供状态和操作",
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

		router := server.NewHTTPRouter(
			handler.NewTransferHandler(a.coordinator),
			monitor.NewHTTPMetrics(a.registry),
			a.registry,
		)

		port := servePort
		if port == "" {
			port = config.Global.App.HttpPort
		}
		runErr := server.New(server.Config{HttpPort: port}, router).Run(ctx)

		// 等待已受理的提交结束
		logger.Info("waiting for in-flight submissions")
		a.coordinator.Wait()
		if runErr != nil {
			logger.Error("server stopped", zap.Error(runErr))
		}
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "HTTP 端口 (默认 app.http_port)")
}
