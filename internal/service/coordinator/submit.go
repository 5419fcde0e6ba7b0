package coordinator

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"transfer-core/internal/event"
	"transfer-core/internal/model"
	"transfer-core/internal/service/state"
	"transfer-core/pkg/errno"
	"transfer-core/pkg/logger"
	"transfer-core/pkg/validator"
	wallettypes "transfer-core/pkg/wallet/types"
)

// submission 提交时表单的副本，之后的表单修改不影响它
type submission struct {
	form   model.FormState
	from   common.Address
	to     common.Address
	amount decimal.Decimal
	value  *big.Int

	lockKey    string
	prevTxHash string // 失败时恢复
}

// Submit 发送原生币转账并写入转账记录，阻塞直到确认或失败
func (c *Coordinator) Submit(ctx context.Context) error {
	sub, err := c.beginSubmit(ctx, nil)
	if err != nil {
		return err
	}
	return c.runSubmission(ctx, sub)
}

// SubmitAsync 同步完成校验并进入 Submitting，其余步骤在后台执行
// overrides 按字段名覆盖表单，与 Busy 检查在同一次提交中生效，被拒绝时表单不变
// 结果通过状态快照观察，Wait 等待后台提交结束
func (c *Coordinator) SubmitAsync(ctx context.Context, overrides map[string]string) error {
	sub, err := c.beginSubmit(ctx, overrides)
	if err != nil {
		return err
	}

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		_ = c.runSubmission(context.WithoutCancel(ctx), sub)
	}()
	return nil
}

// beginSubmit 拿锁、校验并进入 Submitting
// 校验失败只写 Notice，阶段和表单保持不变；Busy 不写任何状态
func (c *Coordinator) beginSubmit(ctx context.Context, overrides map[string]string) (*submission, error) {
	const op = "submit"

	sub := &submission{}
	if account := c.state.Snapshot().Account; account != "" && c.lock != nil {
		sub.lockKey = "submit:" + strings.ToLower(account)
		ok, err := c.lock.Acquire(ctx, sub.lockKey, defaultLockTTL)
		if err != nil {
			logger.Warn("acquire submit lock failed", zap.String("key", sub.lockKey), zap.Error(err))
			return nil, errno.Wrap(op, errno.ErrBusy, err)
		}
		if !ok {
			return nil, errno.New(op, errno.ErrBusy, "submission for %s already in progress", account)
		}
	}

	err := c.state.Update(func(s *state.Snapshot) error {
		if !s.Phase.Stable() {
			return errno.New(op, errno.ErrBusy, "phase %s", s.Phase)
		}
		for name, value := range overrides {
			form, ok := s.Form.WithField(name, value)
			if !ok {
				return errno.New(op, errno.ErrInvalidInput, "unknown form field %q", name)
			}
			s.Form = form
		}
		if !c.wallet.IsProviderAvailable() {
			return errno.New(op, errno.ErrProviderMissing, "no wallet provider configured")
		}
		if s.Account == "" {
			return errno.New(op, errno.ErrNotConnected, "connect a wallet first")
		}
		if err := validator.Struct(s.Form); err != nil {
			return errno.New(op, errno.ErrInvalidInput, "%s", validator.GetErrorMsg(err))
		}
		amount, value, err := model.ParseAmount(s.Form.Amount)
		if err != nil {
			return errno.Wrap(op, errno.ErrInvalidInput, err)
		}
		if !common.IsHexAddress(s.Form.Receiver) {
			return errno.New(op, errno.ErrChainRejected, "receiver %q is not an address", s.Form.Receiver)
		}
		from, err := c.wallet.Address()
		if err != nil {
			return err
		}

		sub.form = s.Form
		sub.from = from
		sub.to = common.HexToAddress(s.Form.Receiver)
		sub.amount = amount
		sub.value = value
		sub.prevTxHash = s.LastTxHash

		s.Phase = state.PhaseSubmitting
		s.Notice = nil
		return nil
	})
	if err != nil {
		c.releaseLock(ctx, sub)
		if !errors.Is(err, errno.ErrBusy) {
			c.notify(err)
		}
		return nil, err
	}
	return sub, nil
}

func (c *Coordinator) runSubmission(ctx context.Context, sub *submission) (err error) {
	ctx, span := c.startSpan(ctx, "submit")
	defer func() {
		endSpan(span, err)
		c.metrics.ObserveSubmission(err)
		c.releaseLock(ctx, sub)
	}()

	fields := []zap.Field{
		accountField(sub.from.Hex()),
		zap.String("to", sub.to.Hex()),
		zap.String("amount", sub.amount.String()),
	}

	// 1. 原生币转账，失败时不写合约
	nativeHash, err := c.wallet.SendTransaction(ctx, wallettypes.NewNativeTransfer(sub.from, sub.to, sub.value))
	if err != nil {
		logger.Warn("native transfer failed", append(fields, zap.Error(err))...)
		c.abortSubmission(err, sub)
		return err
	}
	fields = append(fields, zap.String("native_tx_hash", nativeHash.Hex()))

	// 2. 写入转账记录
	pending, err := c.gateway.SubmitTransactionRecord(ctx, sub.form.Receiver, sub.value, sub.form.Message, sub.form.Keyword)
	if err != nil {
		// 转账已发出但没有记录，只能人工核对
		logger.Warn("native transfer sent but record write failed", append(fields, zap.Error(err))...)
		c.abortSubmission(err, sub)
		return err
	}
	fields = append(fields, zap.String("tx_hash", pending.Hash.Hex()))

	_ = c.state.Update(func(s *state.Snapshot) error {
		s.Phase = state.PhaseAwaitingConfirmation
		s.IsLoading = true
		s.LastTxHash = pending.Hash.Hex()
		return nil
	})
	logger.Info("Loading", fields...)

	// 3. 等待确认
	waitCtx, cancel := ctx, context.CancelFunc(func() {})
	if c.confirmTimeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, c.confirmTimeout)
	}
	started := c.now()
	_, err = pending.Wait(waitCtx)
	cancel()
	if err != nil {
		logger.Warn("record confirmation failed", append(fields, zap.Error(err))...)
		c.abortSubmission(err, sub)
		return err
	}
	c.metrics.ObserveConfirmation(c.now().Sub(started))
	logger.Info("Success", fields...)

	// 4. 计数以链上为准
	count, err := c.gateway.FetchTransactionCount(ctx)
	if err != nil {
		logger.Warn("fetch transaction count failed", append(fields, zap.Error(err))...)
		c.abortSubmission(err, sub)
		return err
	}

	var persistNotice *state.Notice
	if saveErr := c.counter.Save(ctx, count); saveErr != nil {
		logger.Warn("persist transaction count failed", zap.Uint64("count", count), zap.Error(saveErr))
		persistNotice = c.noticeFor(saveErr)
	}

	_ = c.state.Update(func(s *state.Snapshot) error {
		s.Phase = state.PhaseConfirmed
		s.IsLoading = false
		s.TransactionCount = count
		s.Notice = persistNotice
		return nil
	})
	c.metrics.SetTransactionCount(count)

	_ = c.Refresh(ctx)
	c.publish(ctx, sub, nativeHash, pending.Hash, count)

	_ = c.state.Update(func(s *state.Snapshot) error {
		s.Phase = state.PhaseConnected
		// 刷新失败的 Notice 不能盖掉计数未保存的提示
		if persistNotice != nil {
			s.Notice = persistNotice
		}
		return nil
	})
	return nil
}

// abortSubmission 回到 Connected，并撤销本次提交写入的交易哈希
func (c *Coordinator) abortSubmission(err error, sub *submission) {
	c.abort(err, state.PhaseConnected, func(s *state.Snapshot) {
		s.LastTxHash = sub.prevTxHash
	})
}

func (c *Coordinator) publish(ctx context.Context, sub *submission, nativeHash, recordHash common.Hash, count uint64) {
	if c.producer == nil {
		return
	}
	topic := c.topic
	if topic == "" {
		topic = event.DefaultTopic
	}

	ev := event.NewTransferRecorded(
		recordHash.Hex(), nativeHash.Hex(),
		sub.from.Hex(), sub.to.Hex(), sub.amount.String(),
		sub.form.Keyword, sub.form.Message,
		count, c.now(),
	)
	payload, err := ev.Marshal()
	if err != nil {
		logger.Error("marshal transfer event failed", zap.Error(err))
		return
	}
	if err := c.producer.Publish(ctx, topic, ev.Key(), payload); err != nil {
		logger.Error("publish transfer event failed",
			zap.String("event_id", ev.EventID), zap.String("topic", topic), zap.Error(err))
		return
	}
	logger.Debug("transfer event published", zap.String("event_id", ev.EventID))
}

func (c *Coordinator) releaseLock(ctx context.Context, sub *submission) {
	if c.lock == nil || sub == nil || sub.lockKey == "" {
		return
	}
	if err := c.lock.Release(context.WithoutCancel(ctx), sub.lockKey); err != nil {
		logger.Warn("release submit lock failed", zap.String("key", sub.lockKey), zap.Error(err))
	}
	sub.lockKey = ""
}
