package utils

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

// EncryptedPrefix 配置项以此开头时表示密文
const EncryptedPrefix = "enc:"

const nonceSize = 24

var (
	ErrKeyNotSet     = errors.New("encryption key is not set")
	ErrDecryptFailed = errors.New("decryption failed")
)

// LoadEncryptionKey 从环境变量中加载加密密钥，必须是 32 个字符
func LoadEncryptionKey(env string) (*[32]byte, error) {
	return ParseKey(os.Getenv(env))
}

func ParseKey(keyStr string) (*[32]byte, error) {
	if keyStr == "" {
		return nil, ErrKeyNotSet
	}
	if len(keyStr) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 characters long, but got %d characters", len(keyStr))
	}
	var key [32]byte
	copy(key[:], keyStr)
	return &key, nil
}

// Encrypt 返回 base64(nonce + 密文)
func Encrypt(originStr string, key *[32]byte) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	encrypted := secretbox.Seal(nonce[:], []byte(originStr), &nonce, key)
	return base64.StdEncoding.EncodeToString(encrypted), nil
}

func Decrypt(encoded string, key *[32]byte) (string, error) {
	encrypted, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	if len(encrypted) < nonceSize+secretbox.Overhead {
		return "", ErrDecryptFailed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], encrypted[:nonceSize])

	decrypted, ok := secretbox.Open(nil, encrypted[nonceSize:], &nonce, key)
	if !ok {
		return "", ErrDecryptFailed
	}
	return string(decrypted), nil
}

func IsEncrypted(s string) bool {
	return strings.HasPrefix(s, EncryptedPrefix)
}

// Reveal 明文原样返回，带 enc: 前缀的用 key 解密。key 为 nil 且遇到密文时返回 ErrKeyNotSet
func Reveal(s string, key *[32]byte) (string, error) {
	if !IsEncrypted(s) {
		return s, nil
	}
	if key == nil {
		return "", ErrKeyNotSet
	}
	return Decrypt(strings.TrimPrefix(s, EncryptedPrefix), key)
}
