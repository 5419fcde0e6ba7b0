package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/crypto/scrypt"
)

// ErrDecrypt 密码错误或文件被篡改
var ErrDecrypt = errors.New("invalid password or corrupted data (MAC mismatch)")

// EncryptedKeyJSON 参照 Ethereum Keystore V3 的结构
// 存储的是助记词而不是单个私钥，账户由派生路径决定
type EncryptedKeyJSON struct {
	Crypto  CryptoJSON `json:"crypto"`
	Id      string     `json:"id"`
	Version int        `json:"version"`
	Address string     `json:"address,omitempty"` // 派生出的默认账户，仅用于展示
}

type CryptoJSON struct {
	Cipher       string       `json:"cipher"`
	CipherText   string       `json:"ciphertext"`
	CipherParams CipherParams `json:"cipherparams"`
	KDF          string       `json:"kdf"`
	KDFParams    KDFParams    `json:"kdfparams"`
	MAC          string       `json:"mac"`
}

type CipherParams struct {
	IV string `json:"iv"`
}

type KDFParams struct {
	DKLen int    `json:"dklen"`
	N     int    `json:"n"`
	R     int    `json:"r"`
	P     int    `json:"p"`
	Salt  string `json:"salt"`
}

// scrypt 参数，Light 用于测试和开发环境
const (
	StandardScryptN = 1 << 18
	StandardScryptP = 1
	LightScryptN    = 1 << 12
	LightScryptP    = 6

	scryptR     = 8
	scryptDKLen = 32
)

// EncryptMnemonic 使用标准 scrypt 参数加密助记词
func EncryptMnemonic(mnemonic, password string) (*EncryptedKeyJSON, error) {
	return EncryptMnemonicWithParams(mnemonic, password, StandardScryptN, StandardScryptP)
}

// EncryptMnemonicWithParams 将助记词使用密码加密为 JSON 结构
func EncryptMnemonicWithParams(mnemonic, password string, n, p int) (*EncryptedKeyJSON, error) {
	// 1. 生成随机 Salt
	salt := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}

	// 2. 使用 Scrypt 派生密钥，直接用作 AES-256-GCM 的 Key
	derivedKey, err := scrypt.Key([]byte(password), salt, n, scryptR, p, scryptDKLen)
	if err != nil {
		return nil, err
	}

	// 3. 使用 AES-256-GCM 加密
	gcm, err := newGCM(derivedKey)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	ciphertext := gcm.Seal(nil, nonce, []byte(mnemonic), nil)

	// 4. MAC = SHA256(derivedKey + ciphertext)，解密前先校验密码
	mac := computeMAC(derivedKey, ciphertext)

	return &EncryptedKeyJSON{
		Version: 3,
		Id:      uuid.NewString(),
		Crypto: CryptoJSON{
			Cipher:       "aes-256-gcm",
			CipherText:   hex.EncodeToString(ciphertext),
			CipherParams: CipherParams{IV: hex.EncodeToString(nonce)},
			KDF:          "scrypt",
			KDFParams: KDFParams{
				DKLen: scryptDKLen,
				N:     n,
				R:     scryptR,
				P:     p,
				Salt:  hex.EncodeToString(salt),
			},
			MAC: hex.EncodeToString(mac),
		},
	}, nil
}

// DecryptMnemonic 解密 Keystore JSON 获取助记词
func DecryptMnemonic(keyJSON *EncryptedKeyJSON, password string) (string, error) {
	if keyJSON.Crypto.KDF != "scrypt" || keyJSON.Crypto.Cipher != "aes-256-gcm" {
		return "", fmt.Errorf("unsupported keystore: kdf=%s cipher=%s", keyJSON.Crypto.KDF, keyJSON.Crypto.Cipher)
	}

	// 1. 解析 Hex 参数
	salt, err := hex.DecodeString(keyJSON.Crypto.KDFParams.Salt)
	if err != nil {
		return "", fmt.Errorf("invalid salt: %w", err)
	}
	nonce, err := hex.DecodeString(keyJSON.Crypto.CipherParams.IV)
	if err != nil {
		return "", fmt.Errorf("invalid iv: %w", err)
	}
	ciphertext, err := hex.DecodeString(keyJSON.Crypto.CipherText)
	if err != nil {
		return "", fmt.Errorf("invalid ciphertext: %w", err)
	}
	mac, err := hex.DecodeString(keyJSON.Crypto.MAC)
	if err != nil {
		return "", fmt.Errorf("invalid mac: %w", err)
	}

	// 2. 重新派生密钥
	params := keyJSON.Crypto.KDFParams
	derivedKey, err := scrypt.Key([]byte(password), salt, params.N, params.R, params.P, params.DKLen)
	if err != nil {
		return "", err
	}

	// 3. 验证 MAC
	if subtle.ConstantTimeCompare(mac, computeMAC(derivedKey, ciphertext)) != 1 {
		return "", ErrDecrypt
	}

	// 4. 解密
	gcm, err := newGCM(derivedKey)
	if err != nil {
		return "", err
	}
	if len(nonce) != gcm.NonceSize() {
		return "", fmt.Errorf("invalid iv length %d", len(nonce))
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decryption failed: %w", err)
	}
	return string(plaintext), nil
}

// SaveToFile 保存到文件，权限 0600
func (k *EncryptedKeyJSON) SaveToFile(filename string) error {
	data, err := json.MarshalIndent(k, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(filename, data, 0o600)
}

// LoadFromFile 从文件加载
func LoadFromFile(filename string) (*EncryptedKeyJSON, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var k EncryptedKeyJSON
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("parse keystore %s: %w", filename, err)
	}
	return &k, nil
}

// Unlock 读取并解密 keystore 文件
func Unlock(filename, password string) (string, error) {
	k, err := LoadFromFile(filename)
	if err != nil {
		return "", err
	}
	return DecryptMnemonic(k, password)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func computeMAC(derivedKey, ciphertext []byte) []byte {
	h := sha256.New()
	h.Write(derivedKey)
	h.Write(ciphertext)
	return h.Sum(nil)
}
