package ledger

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/propertydex/propertydex-store/internal/ids"
	"github.com/propertydex/propertydex-store/internal/store"
	"github.com/propertydex/propertydex-store/pkg/schema"
)

// Engine runs Apply as a read-modify-write cycle against a Store.
//
// Settle goes through Store.Update, so it is serialized with every other Update on the same
// Store, sign-ups included. Engines over different Stores sharing a storage are not
// coordinated: the last snapshot written wins.
type Engine struct {
	store  *store.Store
	opts   Options
	now    func() time.Time
	newID  IDFunc
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the settlement clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDs overrides identifier minting.
func WithIDs(fn IDFunc) Option {
	return func(e *Engine) { e.newID = fn }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine returns an Engine settling against st.
func NewEngine(st *store.Store, opts Options, options ...Option) *Engine {
	e := &Engine{
		store:  st,
		opts:   opts,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		newID:  ids.New,
		logger: slog.Default(),
	}
	for _, o := range options {
		o(e)
	}
	return e
}

// Settle records the order and applies it to the caller's position.
// When the current state cannot be read nothing is written and the zero Order is returned with
// the error. A failed write returns the settled order with the error.
func (e *Engine) Settle(in schema.OrderInput) (schema.Order, error) {
	var order schema.Order
	err := e.store.Update(func(snap store.Snapshot) (store.Snapshot, error) {
		var next store.Snapshot
		next, order = Apply(snap, in, e.now(), e.newID, e.opts)
		return next, nil
	})
	if err != nil {
		e.logger.Error("settlement failed", "order_id", order.ID, "error", err)
		if order.ID == "" {
			return order, fmt.Errorf("settle order: %w", err)
		}
		return order, fmt.Errorf("settle order %s: %w", order.ID, err)
	}

	e.logger.Info("order settled",
		"order_id", order.ID,
		"user_id", order.UserID,
		"property_id", order.PropertyID,
		"tx_type", order.TxType,
		"tokens", order.Tokens,
	)
	return order, nil
}

// Position returns the current investment of userID in propertyID, if any.
func (e *Engine) Position(userID, propertyID string) (schema.Investment, bool) {
	investments := e.store.Read().Investments
	if idx := findPosition(investments, userID, propertyID); idx >= 0 {
		return investments[idx], true
	}
	return schema.Investment{}, false
}
