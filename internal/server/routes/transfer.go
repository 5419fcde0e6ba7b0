package routes

import (
	"github.com/gin-gonic/gin"

	"transfer-core/internal/handler"
)

func RegisterTransferRoutes(rg *gin.RouterGroup, h *handler.TransferHandler) {
	rg.GET("/state", h.GetState)
	rg.GET("/state/stream", h.StreamState)

	walletGroup := rg.Group("/wallet")
	{
		walletGroup.POST("/connect", h.ConnectWallet)
	}

	formGroup := rg.Group("/form")
	{
		formGroup.PUT("", h.UpdateForm)
		formGroup.DELETE("", h.ResetForm)
	}

	txGroup := rg.Group("/transactions")
	{
		txGroup.POST("", h.Submit)
		txGroup.POST("/refresh", h.Refresh)
	}
}
