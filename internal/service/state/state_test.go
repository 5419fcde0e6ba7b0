package state

import (
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transfer-core/internal/model"
)

func TestUpdateAndSnapshot(t *testing.T) {
	s := NewStore()
	assert.Equal(t, PhaseIdle, s.Snapshot().Phase)
	assert.NotNil(t, s.Snapshot().Transactions)

	require.NoError(t, s.Update(func(snap *Snapshot) error {
		snap.Account = "0xabc"
		snap.Phase = PhaseConnected
		return nil
	}))

	got := s.Snapshot()
	assert.Equal(t, "0xabc", got.Account)
	assert.Equal(t, PhaseConnected, got.Phase)
	assert.Equal(t, uint64(1), got.Version)
}

func TestUpdateErrorDiscardsChanges(t *testing.T) {
	s := NewStore()
	var notified int
	s.Subscribe(func(Snapshot) { notified++ })

	boom := errors.New("boom")
	err := s.Update(func(snap *Snapshot) error {
		snap.Account = "0xabc"
		snap.TransactionCount = 99
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, s.Snapshot().Account)
	assert.Zero(t, s.Snapshot().TransactionCount)
	assert.Zero(t, notified)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Update(func(snap *Snapshot) error {
		snap.Transactions = []model.TransactionRecord{{Keyword: "a", Amount: decimal.NewFromInt(1)}}
		snap.Notice = &Notice{Message: "x"}
		return nil
	}))

	got := s.Snapshot()
	got.Transactions[0].Keyword = "mutated"
	got.Notice.Message = "mutated"

	again := s.Snapshot()
	assert.Equal(t, "a", again.Transactions[0].Keyword)
	assert.Equal(t, "x", again.Notice.Message)
}

func TestSubscribeOrderAndUnsubscribe(t *testing.T) {
	s := NewStore()

	var mu sync.Mutex
	var versions []uint64
	unsubscribe := s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		versions = append(versions, snap.Version)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update(func(snap *Snapshot) error {
				snap.TransactionCount++
				return nil
			})
		}()
	}
	wg.Wait()

	mu.Lock()
	require.Len(t, versions, 50)
	for i, v := range versions {
		assert.Equal(t, uint64(i+1), v, "通知必须按提交顺序送达")
	}
	mu.Unlock()
	assert.Equal(t, uint64(50), s.Snapshot().TransactionCount)

	unsubscribe()
	unsubscribe()
	require.NoError(t, s.Update(func(snap *Snapshot) error { return nil }))

	mu.Lock()
	assert.Len(t, versions, 50)
	mu.Unlock()
}

func TestPhaseInFlight(t *testing.T) {
	assert.True(t, PhaseSubmitting.InFlight())
	assert.True(t, PhaseAwaitingConfirmation.InFlight())
	assert.False(t, PhaseConnected.InFlight())
	assert.True(t, PhaseConfirmed.InFlight())
	assert.False(t, PhaseWalletPending.InFlight())

	assert.True(t, PhaseIdle.Stable())
	assert.True(t, PhaseConnected.Stable())
	assert.False(t, PhaseFailed.Stable())
	assert.False(t, PhaseWalletPending.Stable())
}
