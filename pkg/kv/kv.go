// Package kv defines the key-value storage contract shared by every backend of the PropertyDex store.
// Keys are flat strings and values are JSON documents kept as strings, the same shape a browser's
// local storage offers.
package kv

import "errors"

var (
	// ErrKeyNotFound is returned when a requested key does not exist.
	ErrKeyNotFound = errors.New("key not found")
	// ErrInvalidKey is returned for keys that cannot travel over the wire protocol.
	ErrInvalidKey = errors.New("invalid key")
)

// --- Functional Interfaces (Interface Segregation) ---

// Reader defines the read operations for the store.
type Reader interface {
	GetItem(key string) (string, error)
}

// Writer defines the write and remove operations for the store.
// Removing an absent key is not an error.
type Writer interface {
	SetItem(key, value string) error
	RemoveItem(key string) error
}

// Enumerator allows discovering every stored key.
type Enumerator interface {
	Keys() ([]string, error)
}

// Storage is the complete contract implemented by the embedded engine, the Postgres
// backend and the remote network client.
type Storage interface {
	Reader
	Writer
	Enumerator
}

// ValidKey reports whether key is non-empty and free of whitespace.
func ValidKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return false
		}
	}
	return true
}
