package sdk

import (
	"context"
	"log/slog"

	"github.com/propertydex/propertydex-store/internal/config"
	"github.com/propertydex/propertydex-store/internal/engine"
	"github.com/propertydex/propertydex-store/internal/postgres"
	"github.com/propertydex/propertydex-store/internal/vault"
	"github.com/propertydex/propertydex-store/pkg/kv"
)

// Mode names the backend Open selected.
type Mode string

const (
	ModeRemote   Mode = "remote"
	ModePostgres Mode = "postgres"
	ModeEmbedded Mode = "embedded"
)

// Backend is an opened kv.Storage plus its release hook.
type Backend struct {
	kv.Storage
	Mode  Mode
	close func() error
}

// Close flushes and releases the backend.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// Open initializes the storage based on the configuration.
// It returns the interface, so the app doesn't care if it's local or remote.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// 1. A running daemon wins so several processes share one store.
	if cfg.RemoteAddr != "" {
		client, err := Connect(cfg.RemoteAddr, cfg.DialTimeout)
		if err == nil {
			client.logger = logger
			logger.Info("using remote store", "addr", cfg.RemoteAddr)
			return seal(&Backend{Storage: client, Mode: ModeRemote, close: client.Close}, cfg.SealKey, logger)
		}
		logger.Warn("remote store unreachable, falling back", "addr", cfg.RemoteAddr, "error", err)
	}

	// 2. Real database.
	if cfg.DatabaseURL != "" {
		store, err := postgres.NewStore(ctx, cfg.DatabaseURL, cfg.Namespace)
		if err != nil {
			return nil, err
		}
		logger.Info("using postgres store", "namespace", cfg.Namespace)
		return seal(&Backend{Storage: store, Mode: ModePostgres, close: func() error {
			store.Close()
			return nil
		}}, cfg.SealKey, logger)
	}

	// 3. Embedded mode: the same engine the daemon uses, inside the app process.
	p, err := engine.NewPersistence(cfg.DataDir, cfg.Namespace, logger)
	if err != nil {
		return nil, err
	}
	initial, err := p.Load()
	if err != nil {
		return nil, err
	}
	mem := engine.NewMemStore(initial, p)
	logger.Info("using embedded store", "path", p.Path(), "keys", len(initial))
	return seal(&Backend{Storage: mem, Mode: ModeEmbedded, close: func() error {
		mem.Wait()
		return nil
	}}, cfg.SealKey, logger)
}

// seal encrypts values client-side when a vault key is configured.
func seal(b *Backend, key []byte, logger *slog.Logger) (*Backend, error) {
	if len(key) == 0 {
		return b, nil
	}
	s, err := vault.Seal(b.Storage, key)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.Storage = s
	logger.Info("store values sealed", "mode", b.Mode)
	return b, nil
}
