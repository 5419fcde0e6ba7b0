package coordinator

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"transfer-core/internal/model"
	"transfer-core/internal/service/state"
	"transfer-core/pkg/errno"
	"transfer-core/pkg/logger"
)

// Start 启动检查
// 已授权账户查询和计数缓存读取并发执行，两者互不影响
func (c *Coordinator) Start(ctx context.Context) (err error) {
	ctx, span := c.startSpan(ctx, "start")
	defer func() { endSpan(span, err) }()

	var (
		accounts    []string
		accountsErr error
		cached      uint64
		found       bool
		cacheErr    error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		accounts, accountsErr = c.wallet.GetAuthorizedAccounts(gctx)
		return nil
	})
	g.Go(func() error {
		cached, found, cacheErr = c.counter.Load(gctx)
		return nil
	})
	_ = g.Wait()

	// 1. 先展示缓存的计数
	if found {
		c.setCount(cached)
	}
	if cacheErr != nil {
		logger.Warn("load cached transaction count failed", zap.Error(cacheErr))
		c.notify(cacheErr)
	}

	// 2. 自动连接
	switch {
	case !c.wallet.IsProviderAvailable():
		c.notify(errno.New("autoConnect", errno.ErrProviderMissing, "no wallet provider configured"))
	case accountsErr != nil:
		logger.Warn("eth_accounts failed", zap.Error(accountsErr))
		c.notify(accountsErr)
	case len(accounts) > 0:
		c.wallet.Activate(accounts[0])
		_ = c.state.Update(func(s *state.Snapshot) error {
			s.Account = accounts[0]
			s.Phase = state.PhaseConnected
			return nil
		})
		logger.Info("wallet already authorized", accountField(accounts[0]))
		_ = c.Refresh(ctx)
	default:
		logger.Info("no authorized accounts found")
	}

	// 3. 与链上计数对齐，只更新内存
	chainCount, err := c.gateway.FetchTransactionCount(ctx)
	if err != nil {
		logger.Warn("fetch transaction count failed", zap.Error(err))
		c.notify(err)
		return nil
	}
	if found && chainCount > cached {
		logger.Info("transaction count ahead of cache",
			zap.Uint64("cached", cached), zap.Uint64("count", chainCount))
	}
	c.setCount(chainCount)
	return nil
}

// ConnectWallet 交互式连接钱包
func (c *Coordinator) ConnectWallet(ctx context.Context) (err error) {
	const op = "connectWallet"
	ctx, span := c.startSpan(ctx, op)
	defer func() { endSpan(span, err) }()

	var prior state.Phase
	err = c.state.Update(func(s *state.Snapshot) error {
		if !s.Phase.Stable() {
			return errno.New(op, errno.ErrBusy, "phase %s", s.Phase)
		}
		if !c.wallet.IsProviderAvailable() {
			return errno.New(op, errno.ErrProviderMissing, "no wallet provider configured")
		}
		prior = s.Phase
		s.Phase = state.PhaseWalletPending
		s.Notice = nil
		return nil
	})
	if err != nil {
		if !errors.Is(err, errno.ErrBusy) {
			c.notify(err)
		}
		return err
	}

	account, err := c.wallet.RequestConnection(ctx)
	if err != nil {
		logger.Warn("wallet connection failed", zap.String("op", op), zap.Error(err))
		c.abort(err, prior)
		return err
	}

	_ = c.state.Update(func(s *state.Snapshot) error {
		s.Account = account
		s.Phase = state.PhaseConnected
		return nil
	})
	logger.Info("wallet connected", accountField(account))

	// 刷新失败只记录 Notice，连接本身已经成功
	_ = c.Refresh(ctx)
	return nil
}

// Refresh 全量替换交易列表，不修改表单和账户
func (c *Coordinator) Refresh(ctx context.Context) (err error) {
	ctx, span := c.startSpan(ctx, "refresh")
	defer func() { endSpan(span, err) }()

	records, err := c.gateway.FetchAllTransactions(ctx)
	c.metrics.ObserveRefresh(err)
	if err != nil {
		logger.Warn("history refresh failed", zap.Error(err))
		c.notify(err)
		return err
	}
	if records == nil {
		records = []model.TransactionRecord{}
	}

	_ = c.state.Update(func(s *state.Snapshot) error {
		s.Transactions = records
		return nil
	})
	logger.Debug("history refreshed", zap.Int("records", len(records)))
	return nil
}

// UpdateFormField 修改一个表单字段 (receiver/addressTo, amount, keyword, message)
// 进行中的提交使用的是提交时的副本，不受影响
func (c *Coordinator) UpdateFormField(name, value string) error {
	err := c.state.Update(func(s *state.Snapshot) error {
		form, ok := s.Form.WithField(name, value)
		if !ok {
			return errno.New("updateFormField", errno.ErrInvalidInput, "unknown form field %q", name)
		}
		s.Form = form
		return nil
	})
	if err != nil {
		c.notify(err)
	}
	return err
}

// ResetForm 清空表单，提交成功后不会自动调用
func (c *Coordinator) ResetForm() {
	_ = c.state.Update(func(s *state.Snapshot) error {
		s.Form = model.FormState{}
		return nil
	})
}
