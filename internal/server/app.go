package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"transfer-core/pkg/logger"
)

type Config struct {
	HttpPort string
	// ShutdownTimeout 优雅关闭等待时间，默认 5s
	ShutdownTimeout time.Duration
}

type App struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
}

func New(cfg Config, httpHandler http.Handler) *App {
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &App{
		httpServer: &http.Server{
			Addr:              ":" + cfg.HttpPort,
			Handler:           httpHandler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: timeout,
	}
}

func (a *App) Addr() string {
	return a.httpServer.Addr
}

// Run 启动服务并阻塞，直到收到关闭信号或 ctx 结束
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// SSE 等长连接随 baseCtx 结束，否则 Shutdown 会一直等待
	baseCtx, cancelBase := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelBase()
	a.httpServer.BaseContext = func(net.Listener) context.Context { return baseCtx }

	// 1. Start HTTP
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP Server", zap.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// 2. Signal Handling (Blocking)
	select {
	case err, ok := <-serveErr:
		if ok {
			logger.Error("HTTP Server failure", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("⚠️  Shutting down server...")

	// 3. Graceful Shutdown
	cancelBase()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP Server forced to shutdown", zap.Error(err))
		return err
	}
	logger.Info("Server exited properly")
	return nil
}
