package coordinator

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"transfer-core/internal/model"
	"transfer-core/internal/service/gateway"
	"transfer-core/internal/service/mq"
	"transfer-core/internal/service/state"
	"transfer-core/pkg/monitor"
	"transfer-core/pkg/telemetry"
	"transfer-core/pkg/utils/lock"
	wallettypes "transfer-core/pkg/wallet/types"
)

// WalletSession 钱包会话
type WalletSession interface {
	IsProviderAvailable() bool
	GetAuthorizedAccounts(ctx context.Context) ([]string, error)
	RequestConnection(ctx context.Context) (string, error)
	Activate(account string)
	Account() string
	Address() (common.Address, error)
	SendTransaction(ctx context.Context, params wallettypes.SendTransactionParams) (common.Hash, error)
}

// ContractGateway Transactions 合约访问层
type ContractGateway interface {
	FetchAllTransactions(ctx context.Context) ([]model.TransactionRecord, error)
	FetchTransactionCount(ctx context.Context) (uint64, error)
	SubmitTransactionRecord(ctx context.Context, receiver string, amount *big.Int, message, keyword string) (*gateway.PendingConfirmation, error)
}

// CounterStore 持久化的交易计数
type CounterStore interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, count uint64) error
}

const defaultLockTTL = 10 * time.Minute

// Coordinator 交易生命周期状态机
// 状态只通过 state.Store 对外暴露，所有公开操作失败时写入 Notice (Busy 除外)
type Coordinator struct {
	state   *state.Store
	wallet  WalletSession
	gateway ContractGateway
	counter CounterStore

	lock           lock.DistributedLock
	producer       mq.Producer
	topic          string
	metrics        *monitor.BusinessMetrics
	confirmTimeout time.Duration
	now            func() time.Time

	// inflight 跟踪 SubmitAsync 启动的后台提交
	inflight sync.WaitGroup
}

type Option func(*Coordinator)

// WithLock 跨进程的提交锁，key 为 submit:<account>
func WithLock(l lock.DistributedLock) Option {
	return func(c *Coordinator) { c.lock = l }
}

// WithProducer 确认后发布 TransferRecordedEvent
func WithProducer(p mq.Producer, topic string) Option {
	return func(c *Coordinator) {
		c.producer = p
		c.topic = topic
	}
}

func WithMetrics(m *monitor.BusinessMetrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithConfirmTimeout 等待确认的最长时间，0 表示一直等待
func WithConfirmTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.confirmTimeout = d }
}

func New(st *state.Store, wallet WalletSession, gw ContractGateway, counter CounterStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		state:   st,
		wallet:  wallet,
		gateway: gw,
		counter: counter,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State 状态持有者 (只读使用 Snapshot / Subscribe)
func (c *Coordinator) State() *state.Store {
	return c.state
}

// Wait 等待所有后台提交结束
func (c *Coordinator) Wait() {
	c.inflight.Wait()
}

func (c *Coordinator) startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return telemetry.Tracer().Start(ctx, "coordinator."+op)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// notify 只记录 Notice，不改变阶段
func (c *Coordinator) notify(err error) {
	n := c.noticeFor(err)
	_ = c.state.Update(func(s *state.Snapshot) error {
		s.Notice = n
		return nil
	})
}

// abort 进入 Failed，随后回到稳定阶段
// IsLoading 强制为 false，undo 在同一次提交中撤销操作写入的字段
func (c *Coordinator) abort(err error, settle state.Phase, undo ...func(*state.Snapshot)) {
	n := c.noticeFor(err)
	_ = c.state.Update(func(s *state.Snapshot) error {
		s.Phase = state.PhaseFailed
		s.IsLoading = false
		s.Notice = n
		for _, fn := range undo {
			fn(s)
		}
		return nil
	})
	_ = c.state.Update(func(s *state.Snapshot) error {
		s.Phase = settle
		return nil
	})
}

func (c *Coordinator) setCount(count uint64) {
	c.metrics.SetTransactionCount(count)
	_ = c.state.Update(func(s *state.Snapshot) error {
		s.TransactionCount = count
		return nil
	})
}

func accountField(account string) zap.Field {
	return zap.String("account", account)
}
