package provider

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rejectError struct{}

func (rejectError) Error() string  { return "User rejected the request." }
func (rejectError) ErrorCode() int { return CodeUserRejected }

// ethService 模拟节点上的 eth_ 命名空间
type ethService struct {
	accounts []string
	reject   bool
}

func (s *ethService) Accounts() []string {
	return s.accounts
}

func (s *ethService) RequestAccounts() ([]string, error) {
	if s.reject {
		return nil, rejectError{}
	}
	return s.accounts, nil
}

func (s *ethService) Fail() error {
	return errors.New("boom")
}

func newInProcProvider(t *testing.T, svc *ethService) *RPCProvider {
	t.Helper()
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", svc))
	t.Cleanup(server.Stop)

	p := NewRPCProvider(rpc.DialInProc(server))
	t.Cleanup(p.Close)
	return p
}

func TestRPCProviderForwards(t *testing.T) {
	p := newInProcProvider(t, &ethService{accounts: []string{"0x9858EfFD232B4033E47d90003D41EC34EcaEda94"}})

	raw, err := p.Request(context.Background(), "eth_accounts")
	require.NoError(t, err)

	var accounts []string
	require.NoError(t, json.Unmarshal(raw, &accounts))
	assert.Equal(t, []string{"0x9858EfFD232B4033E47d90003D41EC34EcaEda94"}, accounts)
}

func TestRPCProviderKeepsErrorCode(t *testing.T) {
	p := newInProcProvider(t, &ethService{reject: true})

	_, err := p.Request(context.Background(), "eth_requestAccounts")
	require.Error(t, err)
	assert.True(t, IsUserRejected(err))

	_, err = p.Request(context.Background(), "eth_fail")
	require.Error(t, err)
	code, ok := ErrorCode(err)
	assert.True(t, ok)
	assert.NotEqual(t, CodeUserRejected, code)

	_, err = p.Request(context.Background(), "eth_unknown")
	require.Error(t, err)
	assert.False(t, IsUserRejected(err))
}
