package provider

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ethereum/go-ethereum/rpc"
)

// RPCProvider 把请求转发到 JSON-RPC 端点 (托管账户的节点、Clef、开发链)
type RPCProvider struct {
	client *rpc.Client
}

func DialRPC(ctx context.Context, url string) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return &RPCProvider{client: client}, nil
}

func NewRPCProvider(client *rpc.Client) *RPCProvider {
	return &RPCProvider{client: client}
}

func (p *RPCProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	var out json.RawMessage
	if err := p.client.CallContext(ctx, &out, method, params...); err != nil {
		// 保留节点返回的错误码，上层据此区分用户拒绝和链上失败
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			return nil, &Error{Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
		}
		return nil, err
	}
	return out, nil
}

func (p *RPCProvider) Close() {
	p.client.Close()
}
