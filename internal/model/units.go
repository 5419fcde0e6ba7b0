package model

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"transfer-core/pkg/validator"
)

// Decimals 原生币精度
const Decimals = 18

// ParseAmount 把表单金额转换为最小单位 (wei)
func ParseAmount(s string) (decimal.Decimal, *big.Int, error) {
	d, err := validator.ParsePositiveDecimal(s)
	if err != nil {
		return decimal.Zero, nil, err
	}
	return d, d.Shift(Decimals).BigInt(), nil
}

// FromMinorUnits wei -> 显示单位
func FromMinorUnits(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -Decimals)
}

// FromUnixSeconds 链上秒级时间戳 -> UTC 时间
func FromUnixSeconds(v *big.Int) time.Time {
	if v == nil {
		return time.Unix(0, 0).UTC()
	}
	return time.Unix(v.Int64(), 0).UTC()
}
