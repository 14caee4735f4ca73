package vault

import (
	"errors"
	"testing"

	"github.com/propertydex/propertydex-store/internal/engine"
	"github.com/propertydex/propertydex-store/pkg/kv"
)

var testKey = []byte("thisis32byteslongsecretkey123456")

func TestEncryptDecrypt(t *testing.T) {
	plaintext := `[{"id":"ord-1"}]`

	ciphertext, err := Encrypt(plaintext, testKey)
	if err != nil {
		t.Fatalf("Encryption failed: %v", err)
	}
	if ciphertext == plaintext {
		t.Fatal("Ciphertext should not be equal to plaintext")
	}

	decrypted, err := Decrypt(ciphertext, testKey)
	if err != nil {
		t.Fatalf("Decryption failed: %v", err)
	}
	if decrypted != plaintext {
		t.Errorf("Expected %s, got %s", plaintext, decrypted)
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	other := []byte("another32byteslongsecretkey65432")
	ciphertext, _ := Encrypt("Secret message", testKey)

	if _, err := Decrypt(ciphertext, other); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("Expected ErrDecrypt, got %v", err)
	}
	if _, err := Decrypt("not-hex", testKey); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Expected ErrDecrypt for bad hex, got %v", err)
	}
	if _, err := Decrypt("abcd", testKey); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Expected ErrDecrypt for short input, got %v", err)
	}
}

func TestInvalidKeySize(t *testing.T) {
	if _, err := Encrypt("test", []byte("shortkey")); err == nil {
		t.Fatal("Encryption should fail with invalid key size")
	}
	if _, err := Seal(engine.NewMemStore(nil, nil), []byte("shortkey")); err == nil {
		t.Fatal("Seal should reject a short key")
	}
}

func TestSeal(t *testing.T) {
	mem := engine.NewMemStore(nil, nil)
	s, err := Seal(mem, testKey)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	if err := s.SetItem("propertydex-db-orders", `[]`); err != nil {
		t.Fatalf("SetItem failed: %v", err)
	}
	raw, _ := mem.GetItem("propertydex-db-orders")
	if raw == `[]` {
		t.Error("Underlying storage should hold ciphertext")
	}

	got, err := s.GetItem("propertydex-db-orders")
	if err != nil || got != `[]` {
		t.Errorf("Expected [] back, got %q (%v)", got, err)
	}

	if _, err := s.GetItem("missing"); !errors.Is(err, kv.ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}

	keys, _ := s.Keys()
	if len(keys) != 1 || keys[0] != "propertydex-db-orders" {
		t.Errorf("Keys should pass through, got %v", keys)
	}
}
