package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transfer-core/pkg/cache"
	wallettypes "transfer-core/pkg/wallet/types"
)

type fakeBackend struct {
	chainID     *big.Int
	nonce       uint64
	gasPrice    *big.Int
	gasPriceErr error
	estimate    uint64
	sent        []*ethtypes.Transaction
}

func (b *fakeBackend) ChainID(context.Context) (*big.Int, error) { return b.chainID, nil }

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return b.nonce, nil
}

func (b *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return b.gasPrice, b.gasPriceErr
}

func (b *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return b.estimate, nil
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *ethtypes.Transaction) error {
	b.sent = append(b.sent, tx)
	return nil
}

// stubApprover 按字段决定是否同意
type stubApprover struct {
	connect bool
	sign    bool
	asked   int
}

func (a *stubApprover) ApproveConnection(context.Context, common.Address) (bool, error) {
	a.asked++
	return a.connect, nil
}

func (a *stubApprover) ApproveTransaction(context.Context, wallettypes.SendTransactionParams) (bool, error) {
	a.asked++
	return a.sign, nil
}

func newTestLocal(t *testing.T, approver Approver, opts ...LocalOption) (*LocalProvider, *fakeBackend) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	backend := &fakeBackend{chainID: big.NewInt(31337), nonce: 5, gasPrice: big.NewInt(1_000_000_000), estimate: 90000}
	return NewLocalProvider(key, backend, approver, opts...), backend
}

func accounts(t *testing.T, raw json.RawMessage) []string {
	t.Helper()
	var out []string
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestLocalProviderConnect(t *testing.T) {
	ctx := context.Background()
	approver := &stubApprover{connect: true}
	p, _ := newTestLocal(t, approver)

	raw, err := p.Request(ctx, "eth_accounts")
	require.NoError(t, err)
	assert.Empty(t, accounts(t, raw), "未授权时不暴露账户")

	raw, err = p.Request(ctx, "eth_requestAccounts")
	require.NoError(t, err)
	assert.Equal(t, []string{p.Address().Hex()}, accounts(t, raw))

	raw, err = p.Request(ctx, "eth_accounts")
	require.NoError(t, err)
	assert.Equal(t, []string{p.Address().Hex()}, accounts(t, raw))

	// 已授权后不再询问
	_, err = p.Request(ctx, "eth_requestAccounts")
	require.NoError(t, err)
	assert.Equal(t, 1, approver.asked)
}

func TestLocalProviderConnectRejected(t *testing.T) {
	p, _ := newTestLocal(t, &stubApprover{connect: false})

	_, err := p.Request(context.Background(), "eth_requestAccounts")
	assert.True(t, IsUserRejected(err))
}

func TestLocalProviderPermissionPersisted(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryCache(time.Minute, time.Minute)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	backend := &fakeBackend{chainID: big.NewInt(1)}

	first := NewLocalProvider(key, backend, AutoApprover{}, WithPermissionStore(store))
	_, err = first.Request(ctx, "eth_requestAccounts")
	require.NoError(t, err)

	// 新进程：同一个 key，同一个授权存储
	second := NewLocalProvider(key, backend, &stubApprover{}, WithPermissionStore(store))
	raw, err := second.Request(ctx, "eth_accounts")
	require.NoError(t, err)
	assert.Equal(t, []string{second.Address().Hex()}, accounts(t, raw))
}

func TestLocalProviderSendNativeTransfer(t *testing.T) {
	ctx := context.Background()
	p, backend := newTestLocal(t, &stubApprover{connect: true, sign: true})
	_, err := p.Request(ctx, "eth_requestAccounts")
	require.NoError(t, err)

	to := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	value := big.NewInt(1_500_000_000_000_000_000)
	raw, err := p.Request(ctx, "eth_sendTransaction", wallettypes.NewNativeTransfer(p.Address(), to, value))
	require.NoError(t, err)

	var hash common.Hash
	require.NoError(t, json.Unmarshal(raw, &hash))
	require.Len(t, backend.sent, 1)

	tx := backend.sent[0]
	assert.Equal(t, hash, tx.Hash())
	assert.Equal(t, uint64(21000), tx.Gas())
	assert.Equal(t, uint64(5), tx.Nonce())
	assert.Equal(t, value, tx.Value())
	assert.Equal(t, big.NewInt(1_000_000_000), tx.GasPrice())

	sender, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(big.NewInt(31337)), tx)
	require.NoError(t, err)
	assert.Equal(t, p.Address(), sender)
}

func TestLocalProviderSendFromMap(t *testing.T) {
	ctx := context.Background()
	p, backend := newTestLocal(t, AutoApprover{})
	backend.gasPriceErr = errors.New("unsupported")
	_, err := p.Request(ctx, "eth_requestAccounts")
	require.NoError(t, err)

	_, err = p.Request(ctx, "eth_sendTransaction", map[string]any{
		"from": strings.ToLower(p.Address().Hex()),
		"to":   "0x5fbdb2315678afecb367f032d93f642f64180aa3",
		"data": "0xdeadbeef",
	})
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)

	tx := backend.sent[0]
	assert.Equal(t, uint64(90000), tx.Gas(), "gas 由 EstimateGas 提供")
	assert.Equal(t, DefaultGasPrice, tx.GasPrice(), "节点不支持时回退到 20 Gwei")
	assert.True(t, bytes.Equal([]byte{0xde, 0xad, 0xbe, 0xef}, tx.Data()))
}

func TestLocalProviderSendRejections(t *testing.T) {
	ctx := context.Background()
	approver := &stubApprover{connect: true, sign: false}
	p, backend := newTestLocal(t, approver)
	to := common.Address{9}
	params := wallettypes.NewNativeTransfer(p.Address(), to, big.NewInt(1))

	// 未连接
	_, err := p.Request(ctx, "eth_sendTransaction", params)
	code, _ := ErrorCode(err)
	assert.Equal(t, CodeUnauthorized, code)

	_, err = p.Request(ctx, "eth_requestAccounts")
	require.NoError(t, err)

	// 用户拒绝签名
	_, err = p.Request(ctx, "eth_sendTransaction", params)
	assert.True(t, IsUserRejected(err))

	// 非本钱包账户
	params.From = common.Address{1}
	_, err = p.Request(ctx, "eth_sendTransaction", params)
	code, _ = ErrorCode(err)
	assert.Equal(t, CodeUnauthorized, code)

	assert.Empty(t, backend.sent)
}

func TestLocalProviderUnsupportedMethod(t *testing.T) {
	p, _ := newTestLocal(t, AutoApprover{})

	_, err := p.Request(context.Background(), "eth_sign")
	code, ok := ErrorCode(err)
	assert.True(t, ok)
	assert.Equal(t, CodeUnsupportedMethod, code)

	raw, err := p.Request(context.Background(), "eth_chainId")
	require.NoError(t, err)
	assert.JSONEq(t, `"0x7a69"`, string(raw))
}

func TestTerminalApprover(t *testing.T) {
	var out bytes.Buffer
	a := NewTerminalApprover(strings.NewReader("y\nno\n"), &out)

	ok, err := a.ApproveConnection(context.Background(), common.Address{1})
	require.NoError(t, err)
	assert.True(t, ok)

	to := common.Address{2}
	ok, err = a.ApproveTransaction(context.Background(), wallettypes.NewNativeTransfer(common.Address{1}, to, big.NewInt(1e18)))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, out.String(), "value 1 ETH")

	// 输入结束视为拒绝
	ok, err = a.ApproveConnection(context.Background(), common.Address{1})
	require.NoError(t, err)
	assert.False(t, ok)
}
