package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"transfer-core/internal/handler/request"
	"transfer-core/internal/handler/response"
	"transfer-core/internal/model"
	"transfer-core/internal/service/state"
	"transfer-core/pkg/errno"
	"transfer-core/pkg/logger"
	"transfer-core/pkg/validator"
)

// TransferService 协调器对 HTTP 层暴露的操作
type TransferService interface {
	State() *state.Store
	ConnectWallet(ctx context.Context) error
	SubmitAsync(ctx context.Context, overrides map[string]string) error
	Refresh(ctx context.Context) error
	UpdateFormField(name, value string) error
	ResetForm()
}

// streamBuffer 慢客户端最多落后的快照数，超过后丢弃中间状态
const streamBuffer = 16

type TransferHandler struct {
	svc TransferService
}

func NewTransferHandler(svc TransferService) *TransferHandler {
	return &TransferHandler{svc: svc}
}

// GetState 当前状态快照
// @Summary 获取状态
// @Tags Transfer
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/state [get]
func (h *TransferHandler) GetState(c *gin.Context) {
	response.Success(c, h.svc.State().Snapshot())
}

// StreamState 以 SSE 推送每次状态变化，连接建立时先推送一次当前快照
// @Router /api/v1/state/stream [get]
func (h *TransferHandler) StreamState(c *gin.Context) {
	updates := make(chan state.Snapshot, streamBuffer)
	unsubscribe := h.svc.State().Subscribe(func(s state.Snapshot) {
		select {
		case updates <- s:
		default:
		}
	})
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.SSEvent("state", h.svc.State().Snapshot())
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-updates:
			c.SSEvent("state", s)
			c.Writer.Flush()
		}
	}
}

// ConnectWallet 请求钱包授权
// @Summary 连接钱包
// @Tags Transfer
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/wallet/connect [post]
func (h *TransferHandler) ConnectWallet(c *gin.Context) {
	if err := h.svc.ConnectWallet(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, h.svc.State().Snapshot())
}

// UpdateForm 修改一个表单字段
// @Summary 修改表单
// @Tags Transfer
// @Accept json
// @Produce json
// @Param request body request.UpdateFormRequest true "字段和值"
// @Success 200 {object} response.Response
// @Router /api/v1/form [put]
func (h *TransferHandler) UpdateForm(c *gin.Context) {
	var req request.UpdateFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.New("updateForm", errno.ErrBind, "%s", validator.GetErrorMsg(err)))
		return
	}
	if err := h.svc.UpdateFormField(req.Name, req.Value); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, h.svc.State().Snapshot().Form)
}

// ResetForm 清空表单
// @Router /api/v1/form [delete]
func (h *TransferHandler) ResetForm(c *gin.Context) {
	h.svc.ResetForm()
	response.Success(c, h.svc.State().Snapshot().Form)
}

// Submit 发起转账，确认结果通过 /state 或 /state/stream 观察
// @Summary 提交转账
// @Tags Transfer
// @Accept json
// @Produce json
// @Param request body request.SubmitRequest false "覆盖表单字段"
// @Success 202 {object} response.Response
// @Router /api/v1/transactions [post]
func (h *TransferHandler) Submit(c *gin.Context) {
	// 1. 可选的表单覆盖
	var req request.SubmitRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, errno.New("submit", errno.ErrBind, "%s", validator.GetErrorMsg(err)))
			return
		}
	}
	overrides := make(map[string]string)
	for field, value := range map[string]*string{
		model.FieldAddressTo: req.AddressTo,
		model.FieldAmount:    req.Amount,
		model.FieldKeyword:   req.Keyword,
		model.FieldMessage:   req.Message,
	} {
		if value != nil {
			overrides[field] = *value
		}
	}

	// 2. 覆盖表单和 Busy 检查一起生效；后台执行，请求结束不会取消提交
	if err := h.svc.SubmitAsync(c.Request.Context(), overrides); err != nil {
		response.Error(c, err)
		return
	}

	snap := h.svc.State().Snapshot()
	logger.Info("submission accepted", zap.String("account", snap.Account), zap.Uint64("version", snap.Version))
	response.Accepted(c, snap)
}

// Refresh 重新读取链上交易历史
// @Router /api/v1/transactions/refresh [post]
func (h *TransferHandler) Refresh(c *gin.Context) {
	if err := h.svc.Refresh(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, h.svc.State().Snapshot().Transactions)
}
