package engine

import (
	"fmt"

	"github.com/propertydex/propertydex-store/pkg/kv"
)

// Migrate copies every key from a source store into a destination store and returns the number
// of keys copied. This works for:
// - Embedded -> Postgres (going "real")
// - Remote -> Embedded (backup/offline)
func Migrate(src, dst kv.Storage) (int, error) {
	keys, err := src.Keys()
	if err != nil {
		return 0, fmt.Errorf("failed to list keys: %w", err)
	}

	copied := 0
	for _, k := range keys {
		val, err := src.GetItem(k)
		if err != nil {
			return copied, fmt.Errorf("failed to read key %s: %w", k, err)
		}
		if err := dst.SetItem(k, val); err != nil {
			return copied, fmt.Errorf("failed to set key %s in destination: %w", k, err)
		}
		copied++
	}
	return copied, nil
}
