// Package engine implements the embedded key-value engine of the PropertyDex store.
package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Persistence handles the disk I/O for the MemStore.
// All keys of a namespace live in a single JSON file.
type Persistence struct {
	DataDir   string
	Namespace string
	logger    *slog.Logger
	mu        sync.Mutex // Protects concurrent writes to the filesystem
	lastSeq   uint64
}

// NewPersistence initializes a persistence handler.
func NewPersistence(dir, namespace string, logger *slog.Logger) (*Persistence, error) {
	if namespace == "" {
		return nil, errors.New("persistence namespace is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Persistence{DataDir: dir, Namespace: namespace, logger: logger}, nil
}

// Path returns the file holding the namespace.
func (p *Persistence) Path() string {
	return filepath.Join(p.DataDir, p.Namespace+".json")
}

// Save writes the namespace atomically. Snapshots older than the last one written are dropped,
// so out-of-order background saves never roll the file back.
func (p *Persistence) Save(seq uint64, data map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if seq != 0 && seq <= p.lastSeq {
		return nil
	}

	if err := p.write(data); err != nil {
		p.logger.Error("persist namespace", "namespace", p.Namespace, "error", err)
		return err
	}
	if seq != 0 {
		p.lastSeq = seq
	}
	return nil
}

func (p *Persistence) write(data map[string]string) error {
	filePath := p.Path()
	tempPath := filePath + ".tmp"

	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(tempPath, bytes, 0644); err != nil {
		return err
	}

	// Either the old file or the new one survives a crash, never a torn write.
	return os.Rename(tempPath, filePath)
}

// Load returns the stored namespace. A missing file yields an empty map; an unreadable or
// unparsable file is logged and also yields an empty map.
func (p *Persistence) Load() (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data := make(map[string]string)

	content, err := os.ReadFile(p.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return data, nil
	}
	if err != nil {
		p.logger.Warn("could not read namespace file", "path", p.Path(), "error", err)
		return data, nil
	}

	if err := json.Unmarshal(content, &data); err != nil {
		p.logger.Warn("could not unmarshal namespace file", "path", p.Path(), "error", err)
		return make(map[string]string), nil
	}
	return data, nil
}
