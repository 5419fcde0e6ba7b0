package gateway

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

//go:embed transactions.abi.json
var defaultABI string

const (
	methodAdd   = "addToBlockchain"
	methodAll   = "getAllTransactions"
	methodCount = "getTransactionCount"
)

// DefaultABI 内置的 Transactions 合约 ABI
func DefaultABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(defaultABI))
	if err != nil {
		panic(fmt.Sprintf("embedded abi: %v", err))
	}
	return parsed
}

// LoadABI 读取 path 指定的 ABI 文件，path 为空时使用内置 ABI
// 文件中必须包含网关用到的三个方法
func LoadABI(path string) (abi.ABI, error) {
	if path == "" {
		return DefaultABI(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return abi.ABI{}, err
	}
	defer f.Close()

	parsed, err := abi.JSON(f)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse abi %s: %w", path, err)
	}
	for _, name := range []string{methodAdd, methodAll, methodCount} {
		if _, ok := parsed.Methods[name]; !ok {
			return abi.ABI{}, fmt.Errorf("abi %s: missing method %s", path, name)
		}
	}
	return parsed, nil
}
