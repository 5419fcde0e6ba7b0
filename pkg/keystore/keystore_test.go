package keystore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestEncryptDecryptMnemonic(t *testing.T) {
	password := "secure-password"

	// 1. Encrypt
	keyJSON, err := EncryptMnemonicWithParams(testMnemonic, password, LightScryptN, LightScryptP)
	require.NoError(t, err)
	assert.Equal(t, "aes-256-gcm", keyJSON.Crypto.Cipher)
	assert.Equal(t, 3, keyJSON.Version)
	assert.Len(t, keyJSON.Id, 36)

	// 2. Decrypt with correct password
	plaintext, err := DecryptMnemonic(keyJSON, password)
	require.NoError(t, err)
	assert.Equal(t, testMnemonic, plaintext)

	// 3. Decrypt with wrong password
	_, err = DecryptMnemonic(keyJSON, "wrong-password")
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestDecryptTampered(t *testing.T) {
	keyJSON, err := EncryptMnemonicWithParams(testMnemonic, "pw", LightScryptN, LightScryptP)
	require.NoError(t, err)

	keyJSON.Crypto.CipherText = "00" + keyJSON.Crypto.CipherText[2:]
	_, err = DecryptMnemonic(keyJSON, "pw")
	assert.ErrorIs(t, err, ErrDecrypt)

	keyJSON.Crypto.KDF = "pbkdf2"
	_, err = DecryptMnemonic(keyJSON, "pw")
	assert.Error(t, err)
}

func TestFileSaveLoad(t *testing.T) {
	password := "123456"
	filename := filepath.Join(t.TempDir(), "keys", "wallet.json")

	keyJSON, err := EncryptMnemonicWithParams(testMnemonic, password, LightScryptN, LightScryptP)
	require.NoError(t, err)
	keyJSON.Address = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"

	require.NoError(t, keyJSON.SaveToFile(filename))

	loaded, err := LoadFromFile(filename)
	require.NoError(t, err)
	assert.Equal(t, keyJSON.Id, loaded.Id)
	assert.Equal(t, keyJSON.Address, loaded.Address)

	decrypted, err := Unlock(filename, password)
	require.NoError(t, err)
	assert.Equal(t, testMnemonic, decrypted)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
