package state

import (
	"sync"
	"time"

	"transfer-core/internal/model"
)

// Phase 协调器状态机的阶段
type Phase string

const (
	PhaseIdle                 Phase = "idle"
	PhaseWalletPending        Phase = "wallet_pending"
	PhaseConnected            Phase = "connected"
	PhaseSubmitting           Phase = "submitting"
	PhaseAwaitingConfirmation Phase = "awaiting_confirmation"
	PhaseConfirmed            Phase = "confirmed"
	PhaseFailed               Phase = "failed"
)

// InFlight 提交进行中 (包括确认后的收尾)，此时新的提交返回 Busy
func (p Phase) InFlight() bool {
	return p == PhaseSubmitting || p == PhaseAwaitingConfirmation || p == PhaseConfirmed
}

// Stable 可以开始新操作的阶段
func (p Phase) Stable() bool {
	return p == PhaseIdle || p == PhaseConnected
}

// Notice 面向用户的提示，记录最近一次失败
type Notice struct {
	Code    int       `json:"code"`
	Kind    string    `json:"kind"`
	Op      string    `json:"op"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Snapshot 对外可见的状态
type Snapshot struct {
	Version          uint64                    `json:"version"`
	Account          string                    `json:"account"`
	Phase            Phase                     `json:"phase"`
	IsLoading        bool                      `json:"isLoading"`
	Transactions     []model.TransactionRecord `json:"transactions"`
	Form             model.FormState           `json:"formData"`
	TransactionCount uint64                    `json:"transactionCount"`
	LastTxHash       string                    `json:"lastTxHash,omitempty"`
	Notice           *Notice                   `json:"notice,omitempty"`
}

func (s Snapshot) clone() Snapshot {
	if s.Transactions != nil {
		s.Transactions = append([]model.TransactionRecord(nil), s.Transactions...)
	}
	if s.Notice != nil {
		n := *s.Notice
		s.Notice = &n
	}
	return s
}

// Listener 在每次提交后收到新快照
// 回调内不能同步调用 Update
type Listener func(Snapshot)

// Store 状态持有者，所有修改通过 Update 原子提交
type Store struct {
	mu        sync.Mutex
	snap      Snapshot
	listeners map[uint64]Listener
	nextID    uint64

	// notifyMu 保证通知按提交顺序送达
	notifyMu sync.Mutex
}

func NewStore() *Store {
	return &Store{
		snap:      Snapshot{Phase: PhaseIdle, Transactions: []model.TransactionRecord{}},
		listeners: make(map[uint64]Listener),
	}
}

// Snapshot 返回当前状态的副本
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.clone()
}

// Update 在副本上执行 fn，fn 返回错误时丢弃修改且不通知
func (s *Store) Update(fn func(*Snapshot) error) error {
	s.mu.Lock()
	next := s.snap.clone()
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return err
	}
	next.Version = s.snap.Version + 1
	s.snap = next

	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	// 先拿 notifyMu 再放 mu，后提交的通知不会抢到前面
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, l := range listeners {
		l(next.clone())
	}
	return nil
}

// Subscribe 注册监听，返回取消函数
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}
