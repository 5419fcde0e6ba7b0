package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"transfer-core/internal/handler"
	"transfer-core/internal/server/routes"
	"transfer-core/pkg/monitor"
	"transfer-core/pkg/validator"
)

// NewHTTPRouter 初始化并返回一个 Gin Engine
// gatherer 为 nil 时不暴露 /metrics
func NewHTTPRouter(h *handler.TransferHandler, metrics *monitor.HTTPMetrics, gatherer prometheus.Gatherer) *gin.Engine {
	// 0. 自定义校验规则
	validator.Init()

	// 1. 创建 Engine (使用默认中间件: Logger, Recovery)
	r := gin.Default()

	// 2. 注册通用中间件
	if metrics != nil {
		r.Use(metrics.PrometheusMiddleware())
	}

	// 3. 注册基础路由
	r.GET("/health", handler.HealthCheck)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	// 4. 注册 API 路由组
	api := r.Group("/api/v1")
	routes.RegisterTransferRoutes(api, h)

	return r
}
