// Package client is the query facade applications talk to. It mirrors a hosted
// backend's call shape: table handlers with Select and Insert plus an auth surface, every call
// answering with a {data, error} envelope instead of a Go error.
package client

import (
	"context"
	"log/slog"

	"github.com/propertydex/propertydex-store/internal/auth"
	"github.com/propertydex/propertydex-store/internal/config"
	"github.com/propertydex/propertydex-store/internal/ledger"
	"github.com/propertydex/propertydex-store/internal/notify"
	"github.com/propertydex/propertydex-store/internal/store"
	"github.com/propertydex/propertydex-store/pkg/kv"
	"github.com/propertydex/propertydex-store/pkg/sdk"
)

// Error is the envelope's error member.
type Error struct {
	Message string `json:"message"`
}

// Result is the {data, error} envelope every facade call returns.
type Result[T any] struct {
	Data  T      `json:"data"`
	Error *Error `json:"error"`
}

func ok[T any](data T) Result[T] {
	return Result[T]{Data: data}
}

func fail[T any](data T, err error) Result[T] {
	return Result[T]{Data: data, Error: &Error{Message: err.Error()}}
}

// Client wires storage, notifications, the settlement engine and the session provider.
type Client struct {
	storage kv.Storage
	bus     *notify.Bus
	store   *store.Store
	ledger  *ledger.Engine
	auth    *auth.Provider
	logger  *slog.Logger
	closer  func() error
}

// New opens the backend selected by cfg.Store and builds a client over it.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Client, error) {
	backend, err := sdk.Open(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	c := NewWithStorage(backend, cfg, logger)
	c.closer = backend.Close
	return c, nil
}

// NewWithStorage builds a client over an already opened storage. The caller keeps ownership of s.
func NewWithStorage(s kv.Storage, cfg config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	bus := notify.NewBus()
	watched := notify.Watch(s, bus)
	st := store.New(watched, logger)

	opts := ledger.Options{
		RecomputeAveragePrice: cfg.Ledger.RecomputeAveragePrice,
		RecordTransactions:    cfg.Ledger.RecordTransactions,
		DefaultCurrency:       cfg.Ledger.DefaultCurrency,
	}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.SessionTTL)

	return &Client{
		storage: watched,
		bus:     bus,
		store:   st,
		ledger:  ledger.NewEngine(st, opts, ledger.WithLogger(logger)),
		auth:    auth.NewProvider(st, bus, tokens, logger),
		logger:  logger,
	}
}

// Storage returns the notifying storage underneath the client. Writes made through it reach
// OnAuthStateChange subscribers like the client's own writes.
func (c *Client) Storage() kv.Storage {
	return c.storage
}

// Bus returns the change notification channel shared by the store and the session provider.
func (c *Client) Bus() *notify.Bus {
	return c.bus
}

// Ledger exposes the settlement engine.
func (c *Client) Ledger() *ledger.Engine {
	return c.ledger
}

// Close releases the backend opened by New. It is a no-op for NewWithStorage clients.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}
