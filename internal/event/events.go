package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DefaultTopic 转账记录事件的默认主题
const DefaultTopic = "wallet_events_transfer"

// TransferRecordedEvent 转账及元数据写入均已确认
// Topic: wallet_events_transfer
type TransferRecordedEvent struct {
	EventID          string    `json:"event_id"`
	TxHash           string    `json:"tx_hash"`        // addToBlockchain 交易
	NativeTxHash     string    `json:"native_tx_hash"` // 原生币转账交易
	From             string    `json:"from"`
	To               string    `json:"to"`
	Amount           string    `json:"amount"` // Decimal string
	Keyword          string    `json:"keyword"`
	Message          string    `json:"message"`
	TransactionCount uint64    `json:"transaction_count"`
	ConfirmedAt      time.Time `json:"confirmed_at"`
}

// NewTransferRecorded 生成带唯一 EventID 的事件
func NewTransferRecorded(txHash, nativeTxHash, from, to, amount, keyword, message string, count uint64, at time.Time) TransferRecordedEvent {
	return TransferRecordedEvent{
		EventID:          uuid.NewString(),
		TxHash:           txHash,
		NativeTxHash:     nativeTxHash,
		From:             from,
		To:               to,
		Amount:           amount,
		Keyword:          keyword,
		Message:          message,
		TransactionCount: count,
		ConfirmedAt:      at.UTC(),
	}
}

// Key 分区键，同一发送方的事件保持有序
func (e TransferRecordedEvent) Key() string {
	return e.From
}

func (e TransferRecordedEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
