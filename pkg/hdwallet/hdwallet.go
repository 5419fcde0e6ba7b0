package hdwallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

// DefaultPath BIP-44 以太坊第一个外部账户
const DefaultPath = "m/44'/60'/0'/0/0"

var (
	ErrInvalidMnemonic = errors.New("无效的助记词")
	ErrInvalidPath     = errors.New("无效的派生路径")
)

// NewMnemonic 生成一个新的随机助记词 (BIP-39)
// bitSize: 熵的位数，128 (12个单词) 或 256 (24个单词)
func NewMnemonic(bitSize int) (string, error) {
	entropy, err := bip39.NewEntropy(bitSize)
	if err != nil {
		return "", fmt.Errorf("生成熵失败: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("生成助记词失败: %w", err)
	}
	return mnemonic, nil
}

// Wallet 由种子派生的 HD 钱包
type Wallet struct {
	master *hdkeychain.ExtendedKey
}

// FromMnemonic 校验助记词并生成主密钥
// passphrase: 可选密码，不需要时传 ""
func FromMnemonic(mnemonic, passphrase string) (*Wallet, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
	}
	return FromSeed(seed)
}

// FromSeed 使用 BIP-39 种子生成主密钥
func FromSeed(seed []byte) (*Wallet, error) {
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("生成主密钥失败: %w", err)
	}
	return &Wallet{master: master}, nil
}

// DerivePath 解析路径并派生扩展密钥
// 支持格式: m/44'/60'/0'/0/0 或 m/44h/60h/0h/0/0
func (w *Wallet) DerivePath(path string) (*hdkeychain.ExtendedKey, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "m" {
		return w.master, nil
	}
	if !strings.HasPrefix(path, "m/") {
		return nil, fmt.Errorf("%w: %q 必须以 m/ 开头", ErrInvalidPath, path)
	}

	current := w.master
	for _, segment := range strings.Split(path[2:], "/") {
		hardened := false
		if strings.HasSuffix(segment, "'") || strings.HasSuffix(segment, "h") {
			hardened = true
			segment = segment[:len(segment)-1]
		}

		val, err := strconv.ParseUint(segment, 10, 31)
		if err != nil {
			return nil, fmt.Errorf("%w: 路径段 '%s': %v", ErrInvalidPath, segment, err)
		}
		index := uint32(val)
		if hardened {
			index += hdkeychain.HardenedKeyStart
		}

		next, err := current.Derive(index)
		if err != nil {
			return nil, fmt.Errorf("派生子密钥失败: %w", err)
		}
		current = next
	}
	return current, nil
}

// PrivateKey 派生 path 对应的以太坊私钥
func (w *Wallet) PrivateKey(path string) (*ecdsa.PrivateKey, error) {
	key, err := w.DerivePath(path)
	if err != nil {
		return nil, err
	}
	ecPriv, err := key.ECPrivKey()
	if err != nil {
		return nil, err
	}
	return crypto.ToECDSA(ecPriv.Serialize())
}

// Address 派生 path 对应的以太坊地址
func (w *Wallet) Address(path string) (common.Address, error) {
	priv, err := w.PrivateKey(path)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(priv.PublicKey), nil
}
