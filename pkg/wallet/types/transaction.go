package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// NativeTransferGas 原生转账固定 gas 上限 (0x5208)
const NativeTransferGas uint64 = 21000

// SendTransactionParams eth_sendTransaction 的参数
// 数值字段使用 0x 前缀的十六进制编码
type SendTransactionParams struct {
	From     common.Address  `json:"from"`
	To       *common.Address `json:"to,omitempty"`
	Gas      *hexutil.Uint64 `json:"gas,omitempty"`
	GasPrice *hexutil.Big    `json:"gasPrice,omitempty"`
	Value    *hexutil.Big    `json:"value,omitempty"`
	Data     hexutil.Bytes   `json:"data,omitempty"`
}

// NewNativeTransfer 构造固定 gas 的原生币转账
func NewNativeTransfer(from, to common.Address, value *big.Int) SendTransactionParams {
	gas := hexutil.Uint64(NativeTransferGas)
	return SendTransactionParams{
		From:  from,
		To:    &to,
		Gas:   &gas,
		Value: (*hexutil.Big)(value),
	}
}

// NewContractCall 构造合约写调用，gas 由钱包估算
func NewContractCall(from, contract common.Address, data []byte) SendTransactionParams {
	return SendTransactionParams{
		From: from,
		To:   &contract,
		Data: data,
	}
}

// ValueOrZero 返回转账金额，未设置时为 0
func (p SendTransactionParams) ValueOrZero() *big.Int {
	if p.Value == nil {
		return new(big.Int)
	}
	return p.Value.ToInt()
}
