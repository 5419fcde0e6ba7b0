package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"transfer-core/internal/model"
	"transfer-core/pkg/errno"
	"transfer-core/pkg/logger"
	wallettypes "transfer-core/pkg/wallet/types"
)

// DefaultPollInterval 查询交易回执的默认间隔
const DefaultPollInterval = 2 * time.Second

// Backend 合约读调用和回执查询，*ethclient.Client 满足该接口
type Backend interface {
	ethereum.ContractCaller
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Signer 当前激活账户的签名能力 (钱包会话)
type Signer interface {
	Address() (common.Address, error)
	SendTransaction(ctx context.Context, params wallettypes.SendTransactionParams) (common.Hash, error)
}

// RawRecord getAllTransactions 返回的链上结构
type RawRecord struct {
	Sender    common.Address
	Receiver  common.Address
	Amount    *big.Int
	Message   string
	Timestamp *big.Int
	Keyword   string
}

// Gateway Transactions 合约的类型化访问层
// ABI 编解码只在这里出现，调用方只接触领域类型
type Gateway struct {
	contract     common.Address
	abi          abi.ABI
	backend      Backend
	signer       Signer
	pollInterval time.Duration
}

type Option func(*Gateway)

func WithABI(parsed abi.ABI) Option {
	return func(g *Gateway) {
		g.abi = parsed
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.pollInterval = d
		}
	}
}

func New(contract common.Address, backend Backend, signer Signer, opts ...Option) *Gateway {
	g := &Gateway{
		contract:     contract,
		abi:          DefaultABI(),
		backend:      backend,
		signer:       signer,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Contract 合约地址
func (g *Gateway) Contract() common.Address {
	return g.contract
}

func (g *Gateway) call(ctx context.Context, method string) ([]interface{}, error) {
	data, err := g.abi.Pack(method)
	if err != nil {
		return nil, err
	}
	out, err := g.backend.CallContract(ctx, ethereum.CallMsg{To: &g.contract, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	return g.abi.Unpack(method, out)
}

// FetchAllTransactions 读取全部转账记录，保持合约返回的顺序
func (g *Gateway) FetchAllTransactions(ctx context.Context) ([]model.TransactionRecord, error) {
	results, err := g.call(ctx, methodAll)
	if err != nil {
		return nil, errno.Wrap(methodAll, errno.ErrChainRejected, err)
	}
	if len(results) != 1 {
		return nil, errno.New(methodAll, errno.ErrChainRejected, "unexpected %d return values", len(results))
	}

	raw, ok := abi.ConvertType(results[0], new([]RawRecord)).(*[]RawRecord)
	if !ok {
		return nil, errno.New(methodAll, errno.ErrChainRejected, "unexpected return type %T", results[0])
	}

	records := make([]model.TransactionRecord, 0, len(*raw))
	for _, r := range *raw {
		records = append(records, ToRecord(r))
	}
	return records, nil
}

// ToRecord 金额除以 10^18，时间戳转为 UTC
func ToRecord(r RawRecord) model.TransactionRecord {
	return model.TransactionRecord{
		Sender:    r.Sender.Hex(),
		Receiver:  r.Receiver.Hex(),
		Amount:    model.FromMinorUnits(r.Amount),
		Message:   r.Message,
		Keyword:   r.Keyword,
		Timestamp: model.FromUnixSeconds(r.Timestamp),
	}
}

// FetchTransactionCount 读取链上记录总数
func (g *Gateway) FetchTransactionCount(ctx context.Context) (uint64, error) {
	results, err := g.call(ctx, methodCount)
	if err != nil {
		return 0, errno.Wrap(methodCount, errno.ErrChainRejected, err)
	}
	if len(results) != 1 {
		return 0, errno.New(methodCount, errno.ErrChainRejected, "unexpected %d return values", len(results))
	}
	count, ok := results[0].(*big.Int)
	if !ok || !count.IsUint64() {
		return 0, errno.New(methodCount, errno.ErrChainRejected, "unexpected count %v", results[0])
	}
	return count.Uint64(), nil
}

// SubmitTransactionRecord 通过当前签名账户调用 addToBlockchain
func (g *Gateway) SubmitTransactionRecord(ctx context.Context, receiver string, amount *big.Int, message, keyword string) (*PendingConfirmation, error) {
	if !common.IsHexAddress(receiver) {
		return nil, errno.New(methodAdd, errno.ErrChainRejected, "invalid receiver address %q", receiver)
	}
	data, err := g.abi.Pack(methodAdd, common.HexToAddress(receiver), amount, message, keyword)
	if err != nil {
		return nil, errno.Wrap(methodAdd, errno.ErrChainRejected, err)
	}

	from, err := g.signer.Address()
	if err != nil {
		return nil, errno.Wrap(methodAdd, errno.ErrNotConnected, err)
	}

	// 钱包返回的 UserRejected 保持原类别
	hash, err := g.signer.SendTransaction(ctx, wallettypes.NewContractCall(from, g.contract, data))
	if err != nil {
		return nil, errno.Wrap(methodAdd, errno.ErrChainRejected, err)
	}

	logger.Debug("addToBlockchain sent", zap.String("tx_hash", hash.Hex()), zap.String("contract", g.contract.Hex()))
	return &PendingConfirmation{Hash: hash, backend: g.backend, interval: g.pollInterval}, nil
}

// PendingConfirmation 已广播、等待上链的交易
type PendingConfirmation struct {
	Hash common.Hash

	backend  Backend
	interval time.Duration
}

// NewPendingConfirmation 为已知哈希构造等待句柄
func NewPendingConfirmation(hash common.Hash, backend Backend, interval time.Duration) *PendingConfirmation {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &PendingConfirmation{Hash: hash, backend: backend, interval: interval}
}

// Wait 等待交易被打包
// 回执 status=0 (revert) 视为 ChainRejected；ctx 取消或超时时返回 ctx 的错误
func (p *PendingConfirmation) Wait(ctx context.Context) (*types.Receipt, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		receipt, err := p.backend.TransactionReceipt(ctx, p.Hash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status == types.ReceiptStatusFailed {
				return receipt, errno.New("waitConfirmation", errno.ErrChainRejected, "transaction %s reverted", p.Hash.Hex())
			}
			return receipt, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			return nil, errno.Wrap("waitConfirmation", errno.ErrChainRejected, err)
		}

		select {
		case <-ctx.Done():
			return nil, errno.Wrap("waitConfirmation", errno.ErrChainRejected, fmt.Errorf("tx %s: %w", p.Hash.Hex(), ctx.Err()))
		case <-ticker.C:
		}
	}
}
