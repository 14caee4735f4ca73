// Package vault seals stored values with AES-GCM so a shared daemon or database only ever holds
// ciphertext. Keys are left in the clear because the store looks collections up by name.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/propertydex/propertydex-store/pkg/kv"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// ErrDecrypt is returned for a wrong key or tampered data.
var ErrDecrypt = errors.New("decryption failed (wrong key or tampered data)")

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt takes a plaintext string and a 32-byte key, returning nonce+ciphertext as hex.
func Encrypt(plaintext string, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt.
func Decrypt(cipherHex string, key []byte) (string, error) {
	ciphertext, err := hex.DecodeString(cipherHex)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	nonce, actualCiphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, actualCiphertext, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}

// Ensure sealed satisfies the kv.Storage interface at compile time.
var _ kv.Storage = (*sealed)(nil)

type sealed struct {
	kv.Storage
	key []byte
}

// Seal wraps s so values are encrypted on SetItem and decrypted on GetItem.
func Seal(s kv.Storage, key []byte) (kv.Storage, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("vault key must be %d bytes, got %d", KeySize, len(key))
	}
	return &sealed{Storage: s, key: append([]byte(nil), key...)}, nil
}

func (s *sealed) GetItem(key string) (string, error) {
	raw, err := s.Storage.GetItem(key)
	if err != nil {
		return "", err
	}
	return Decrypt(raw, s.key)
}

func (s *sealed) SetItem(key, value string) error {
	ciphertext, err := Encrypt(value, s.key)
	if err != nil {
		return err
	}
	return s.Storage.SetItem(key, ciphertext)
}
