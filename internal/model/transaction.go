package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRecord 合约中记录的一笔转账
// 只由 Contract Gateway 映射链上数据生成，构造后不再修改
type TransactionRecord struct {
	Sender    string          `json:"sender"`
	Receiver  string          `json:"receiver"`
	Amount    decimal.Decimal `json:"amount"` // 显示单位 (wei / 10^18)
	Message   string          `json:"message"`
	Keyword   string          `json:"keyword"`
	Timestamp time.Time       `json:"timestamp"` // UTC
}

// FormState 待提交的表单草稿，提交后不会自动清空
type FormState struct {
	Receiver string `json:"receiver" validate:"required"`
	Amount   string `json:"amount" validate:"required,positive_decimal"`
	Keyword  string `json:"keyword"`
	Message  string `json:"message"`
}

// 表单字段名
const (
	FieldReceiver  = "receiver"
	FieldAddressTo = "addressTo" // receiver 的别名
	FieldAmount    = "amount"
	FieldKeyword   = "keyword"
	FieldMessage   = "message"
)

// WithField 返回修改了一个字段的副本，未知字段返回 false
func (f FormState) WithField(name, value string) (FormState, bool) {
	switch name {
	case FieldReceiver, FieldAddressTo:
		f.Receiver = value
	case FieldAmount:
		f.Amount = value
	case FieldKeyword:
		f.Keyword = value
	case FieldMessage:
		f.Message = value
	default:
		return f, false
	}
	return f, true
}
