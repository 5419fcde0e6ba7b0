package wallet

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"transfer-core/pkg/errno"
	"transfer-core/pkg/logger"
	"transfer-core/pkg/monitor"
	"transfer-core/pkg/wallet/provider"
	wallettypes "transfer-core/pkg/wallet/types"
)

// Session 钱包会话：发现钱包、连接账户、持有当前激活账户
// provider 为 nil 表示宿主环境没有钱包
type Session struct {
	provider provider.Provider
	metrics  *monitor.BusinessMetrics

	mu      sync.RWMutex
	account string
}

func NewSession(p provider.Provider, metrics *monitor.BusinessMetrics) *Session {
	return &Session{provider: p, metrics: metrics}
}

// IsProviderAvailable 是否存在钱包
func (s *Session) IsProviderAvailable() bool {
	return s.provider != nil
}

// GetAuthorizedAccounts 不弹窗查询已授权账户，没有钱包时返回空
func (s *Session) GetAuthorizedAccounts(ctx context.Context) ([]string, error) {
	if s.provider == nil {
		return nil, nil
	}
	return s.requestAccounts(ctx, "eth_accounts")
}

// RequestConnection 请求用户授权，成功后第一个账户成为激活账户
func (s *Session) RequestConnection(ctx context.Context) (string, error) {
	const method = "eth_requestAccounts"
	if s.provider == nil {
		return "", errno.New(method, errno.ErrProviderMissing, "no wallet provider configured")
	}

	accounts, err := s.requestAccounts(ctx, method)
	if err != nil {
		return "", err
	}
	if len(accounts) == 0 {
		return "", errno.New(method, errno.ErrUserRejected, "wallet returned no accounts")
	}

	s.Activate(accounts[0])
	return accounts[0], nil
}

func (s *Session) requestAccounts(ctx context.Context, method string) ([]string, error) {
	raw, err := s.provider.Request(ctx, method)
	s.metrics.ObserveWalletRequest(method, err)
	if err != nil {
		return nil, classify(method, err)
	}

	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, errno.Wrap(method, errno.ErrChainRejected, err)
	}
	return accounts, nil
}

// Activate 设置激活账户，空字符串会被忽略
func (s *Session) Activate(account string) {
	account = strings.TrimSpace(account)
	if account == "" {
		return
	}
	s.mu.Lock()
	s.account = account
	s.mu.Unlock()
}

// Account 当前激活账户，未连接时为空
func (s *Session) Account() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account
}

// Address 当前签名账户
func (s *Session) Address() (common.Address, error) {
	account := s.Account()
	if account == "" {
		return common.Address{}, errno.New("signer", errno.ErrNotConnected, "no active account")
	}
	if !common.IsHexAddress(account) {
		return common.Address{}, errno.New("signer", errno.ErrChainRejected, "active account %q is not an address", account)
	}
	return common.HexToAddress(account), nil
}

// SendTransaction 通过钱包发送交易 (eth_sendTransaction)
func (s *Session) SendTransaction(ctx context.Context, params wallettypes.SendTransactionParams) (common.Hash, error) {
	const method = "eth_sendTransaction"
	if s.provider == nil {
		return common.Hash{}, errno.New(method, errno.ErrProviderMissing, "no wallet provider configured")
	}

	raw, err := s.provider.Request(ctx, method, params)
	s.metrics.ObserveWalletRequest(method, err)
	if err != nil {
		return common.Hash{}, classify(method, err)
	}

	var hash common.Hash
	if err := json.Unmarshal(raw, &hash); err != nil {
		return common.Hash{}, errno.Wrap(method, errno.ErrChainRejected, err)
	}
	logger.Debug("wallet accepted transaction", zap.String("tx_hash", hash.Hex()))
	return hash, nil
}

// classify 4001 为用户拒绝，其余都按链上拒绝处理
func classify(method string, err error) error {
	if provider.IsUserRejected(err) {
		return errno.Wrap(method, errno.ErrUserRejected, err)
	}
	return errno.Wrap(method, errno.ErrChainRejected, err)
}
