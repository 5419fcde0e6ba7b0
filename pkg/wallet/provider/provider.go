package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// EIP-1193 / JSON-RPC 错误码
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeInvalidParams     = -32602
	CodeServerError       = -32000
)

// Provider 钱包提供方的请求接口
// 与浏览器注入钱包的 request({method, params}) 对应
type Provider interface {
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

// Error 钱包返回的带错误码的失败
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// ErrorCode 返回 err 链中第一个 *Error 的错误码
func ErrorCode(err error) (int, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return 0, false
}

// IsUserRejected 用户在钱包中拒绝了请求
func IsUserRejected(err error) bool {
	code, ok := ErrorCode(err)
	return ok && code == CodeUserRejected
}
