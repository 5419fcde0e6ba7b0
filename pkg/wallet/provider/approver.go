package provider

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	wallettypes "transfer-core/pkg/wallet/types"
)

// Approver 代替浏览器钱包弹窗，由用户确认连接和签名
type Approver interface {
	ApproveConnection(ctx context.Context, account common.Address) (bool, error)
	ApproveTransaction(ctx context.Context, tx wallettypes.SendTransactionParams) (bool, error)
}

// AutoApprover 无人值守模式 (wallet.auto_approve=true)
type AutoApprover struct{}

func (AutoApprover) ApproveConnection(context.Context, common.Address) (bool, error) {
	return true, nil
}

func (AutoApprover) ApproveTransaction(context.Context, wallettypes.SendTransactionParams) (bool, error) {
	return true, nil
}

// TerminalApprover 在终端提示 y/N
type TerminalApprover struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

func NewTerminalApprover(in io.Reader, out io.Writer) *TerminalApprover {
	return &TerminalApprover{in: bufio.NewReader(in), out: out}
}

func (a *TerminalApprover) ApproveConnection(ctx context.Context, account common.Address) (bool, error) {
	return a.confirm(ctx, fmt.Sprintf("Connect account %s to this application?", account.Hex()))
}

func (a *TerminalApprover) ApproveTransaction(ctx context.Context, tx wallettypes.SendTransactionParams) (bool, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Sign transaction from %s", tx.From.Hex())
	if tx.To != nil {
		fmt.Fprintf(&b, " to %s", tx.To.Hex())
	}
	fmt.Fprintf(&b, " value %s ETH", decimal.NewFromBigInt(tx.ValueOrZero(), -18).String())
	if len(tx.Data) > 0 {
		fmt.Fprintf(&b, " (contract call, %d bytes)", len(tx.Data))
	}
	b.WriteString("?")
	return a.confirm(ctx, b.String())
}

// confirm 读取一行输入，只有 y/yes 视为同意
// 读取本身不可取消，ctx 只在提示前检查
func (a *TerminalApprover) confirm(ctx context.Context, prompt string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(a.out, "%s [y/N]: ", prompt)
	line, err := a.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
