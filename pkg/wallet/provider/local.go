package provider

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"transfer-core/pkg/cache"
	"transfer-core/pkg/logger"
	wallettypes "transfer-core/pkg/wallet/types"
)

// DefaultGasPrice 节点无法给出建议 gas price 时使用 20 Gwei
var DefaultGasPrice = big.NewInt(20_000_000_000)

const permissionKeyPrefix = "wallet:permission:"

// Backend 本地钱包签名和广播所需的节点能力，*ethclient.Client 满足该接口
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
}

// LocalProvider 进程内钱包，持有单个私钥
// 连接授权和每笔交易都需要 Approver 确认
type LocalProvider struct {
	key      *ecdsa.PrivateKey
	address  common.Address
	backend  Backend
	approver Approver
	grants   cache.Cache

	mu         sync.Mutex
	authorized bool
}

type LocalOption func(*LocalProvider)

// WithPermissionStore 持久化连接授权，下次启动 eth_accounts 直接返回账户
func WithPermissionStore(c cache.Cache) LocalOption {
	return func(p *LocalProvider) {
		p.grants = c
	}
}

func NewLocalProvider(key *ecdsa.PrivateKey, backend Backend, approver Approver, opts ...LocalOption) *LocalProvider {
	p := &LocalProvider{
		key:      key,
		address:  crypto.PubkeyToAddress(key.PublicKey),
		backend:  backend,
		approver: approver,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Address 钱包持有的账户
func (p *LocalProvider) Address() common.Address {
	return p.address
}

func (p *LocalProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	switch method {
	case "eth_accounts":
		if p.isAuthorized(ctx) {
			return json.Marshal([]string{p.address.Hex()})
		}
		return json.Marshal([]string{})

	case "eth_requestAccounts":
		if err := p.requestAccounts(ctx); err != nil {
			return nil, err
		}
		return json.Marshal([]string{p.address.Hex()})

	case "eth_chainId":
		id, err := p.backend.ChainID(ctx)
		if err != nil {
			return nil, &Error{Code: CodeServerError, Message: err.Error()}
		}
		return json.Marshal((*hexutil.Big)(id))

	case "eth_sendTransaction":
		if len(params) != 1 {
			return nil, &Error{Code: CodeInvalidParams, Message: "expected a single transaction object"}
		}
		tx, err := decodeTxParams(params[0])
		if err != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
		}
		hash, err := p.sendTransaction(ctx, tx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(hash)

	default:
		return nil, &Error{Code: CodeUnsupportedMethod, Message: fmt.Sprintf("method %s not supported", method)}
	}
}

func (p *LocalProvider) grantKey() string {
	return permissionKeyPrefix + strings.ToLower(p.address.Hex())
}

func (p *LocalProvider) isAuthorized(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.authorized {
		return true
	}
	if p.grants == nil {
		return false
	}
	var granted bool
	if err := p.grants.Get(ctx, p.grantKey(), &granted); err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.Warn("read wallet permission failed", zap.Error(err))
		}
		return false
	}
	p.authorized = granted
	return granted
}

func (p *LocalProvider) requestAccounts(ctx context.Context) error {
	if p.isAuthorized(ctx) {
		return nil
	}

	ok, err := p.approver.ApproveConnection(ctx, p.address)
	if err != nil {
		return &Error{Code: CodeServerError, Message: err.Error()}
	}
	if !ok {
		return &Error{Code: CodeUserRejected, Message: "User rejected the request."}
	}

	p.mu.Lock()
	p.authorized = true
	p.mu.Unlock()

	if p.grants != nil {
		// 授权写入失败只影响下次启动的自动连接
		if err := p.grants.Set(ctx, p.grantKey(), true, 0); err != nil {
			logger.Warn("persist wallet permission failed", zap.Error(err))
		}
	}
	return nil
}

func (p *LocalProvider) sendTransaction(ctx context.Context, req wallettypes.SendTransactionParams) (common.Hash, error) {
	// 1. 授权与账户校验
	if !p.isAuthorized(ctx) {
		return common.Hash{}, &Error{Code: CodeUnauthorized, Message: "account not authorized, call eth_requestAccounts first"}
	}
	if req.From != p.address {
		return common.Hash{}, &Error{Code: CodeUnauthorized, Message: fmt.Sprintf("unknown account %s", req.From.Hex())}
	}

	// 2. 用户确认
	ok, err := p.approver.ApproveTransaction(ctx, req)
	if err != nil {
		return common.Hash{}, &Error{Code: CodeServerError, Message: err.Error()}
	}
	if !ok {
		return common.Hash{}, &Error{Code: CodeUserRejected, Message: "User denied transaction signature."}
	}

	// 3. 补齐 nonce / gasPrice / gasLimit
	nonce, err := p.backend.PendingNonceAt(ctx, p.address)
	if err != nil {
		return common.Hash{}, serverError("get nonce", err)
	}

	gasPrice := p.gasPrice(ctx, req)

	var gasLimit uint64
	if req.Gas != nil {
		gasLimit = uint64(*req.Gas)
	} else {
		gasLimit, err = p.backend.EstimateGas(ctx, ethereum.CallMsg{
			From:  p.address,
			To:    req.To,
			Value: req.ValueOrZero(),
			Data:  req.Data,
		})
		if err != nil {
			return common.Hash{}, serverError("estimate gas", err)
		}
	}

	chainID, err := p.backend.ChainID(ctx)
	if err != nil {
		return common.Hash{}, serverError("get chain id", err)
	}

	// 4. 签名
	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       req.To,
		Value:    req.ValueOrZero(),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     req.Data,
	})
	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(chainID), p.key)
	if err != nil {
		return common.Hash{}, serverError("sign tx", err)
	}

	// 5. 广播
	if err := p.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, serverError("broadcast", err)
	}

	logger.Info("transaction broadcast",
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas", gasLimit),
	)
	return signed.Hash(), nil
}

// gasPrice 请求指定 > 节点建议 > 默认 20 Gwei
func (p *LocalProvider) gasPrice(ctx context.Context, req wallettypes.SendTransactionParams) *big.Int {
	if req.GasPrice != nil {
		return req.GasPrice.ToInt()
	}
	suggested, err := p.backend.SuggestGasPrice(ctx)
	if err != nil || suggested == nil || suggested.Sign() <= 0 {
		logger.Warn("SuggestGasPrice unavailable, using default",
			zap.Error(err), zap.String("gas_price", DefaultGasPrice.String()))
		return DefaultGasPrice
	}
	return suggested
}

func serverError(step string, err error) *Error {
	return &Error{Code: CodeServerError, Message: fmt.Sprintf("%s: %v", step, err)}
}

// decodeTxParams 接受结构体或任意可 JSON 编码的对象
func decodeTxParams(v any) (wallettypes.SendTransactionParams, error) {
	switch tx := v.(type) {
	case wallettypes.SendTransactionParams:
		return tx, nil
	case *wallettypes.SendTransactionParams:
		return *tx, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return wallettypes.SendTransactionParams{}, err
	}
	var tx wallettypes.SendTransactionParams
	if err := json.Unmarshal(raw, &tx); err != nil {
		return wallettypes.SendTransactionParams{}, err
	}
	return tx, nil
}
