// internal/utils/crypto.go
package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// secretPrefix 标记已加密的配置值
const secretPrefix = "enc:v1:"

var keyInfo = []byte("scenescribe config secret")

// ErrUndecryptable 密文损坏或加密密钥已更换
var ErrUndecryptable = errors.New("secret cannot be decrypted with the current key")

func newGCM(key string) (cipher.AEAD, error) {
	derived := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(key), nil, keyInfo), derived); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// IsEncrypted 值是否由 Encrypt 产生
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, secretPrefix)
}

// Encrypt 使用 AES-GCM 加密，key 经 HKDF-SHA256 派生为 32 字节
func Encrypt(plaintext, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("encryption key must not be empty")
	}
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return secretPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt 解密 Encrypt 的输出；没有前缀的值视为明文原样返回
func Decrypt(value, key string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, secretPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUndecryptable, err)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrUndecryptable)
	}

	plaintext, err := gcm.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUndecryptable, err)
	}
	return string(plaintext), nil
}
