// Package store reads and writes the five PropertyDex collections as typed snapshots.
//
// Each collection is a JSON array under its own key. A missing or unparsable blob reads as an
// empty collection. Update serializes read-modify-write cycles within one Store and refuses to
// write after a failed read; separate Stores sharing a storage are last-writer-wins.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/propertydex/propertydex-store/pkg/kv"
	"github.com/propertydex/propertydex-store/pkg/schema"
)

// Prefix namespaces every key written by the store.
const Prefix = "propertydex-"

// Storage keys.
const (
	KeySession      = Prefix + "session"
	KeyProfiles     = Prefix + "db-profiles"
	KeyRoles        = Prefix + "db-roles"
	KeyInvestments  = Prefix + "db-investments"
	KeyOrders       = Prefix + "db-orders"
	KeyTransactions = Prefix + "db-transactions"
)

// Snapshot is the full in-memory copy of every collection.
type Snapshot struct {
	Profiles     []schema.UserProfile
	Roles        []schema.UserRole
	Investments  []schema.Investment
	Orders       []schema.Order
	Transactions []schema.Transaction
}

// Clone returns a snapshot whose slices share no backing arrays with s.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Profiles:     append([]schema.UserProfile{}, s.Profiles...),
		Roles:        append([]schema.UserRole{}, s.Roles...),
		Investments:  append([]schema.Investment{}, s.Investments...),
		Orders:       append([]schema.Order{}, s.Orders...),
		Transactions: append([]schema.Transaction{}, s.Transactions...),
	}
}

// Store is the Persistent Store over any kv.Storage.
type Store struct {
	mu     sync.Mutex // serializes Update cycles
	kv     kv.Storage
	logger *slog.Logger
}

// New returns a Store over s. A nil logger uses slog.Default.
func New(s kv.Storage, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: s, logger: logger}
}

// Storage exposes the underlying key-value storage.
func (s *Store) Storage() kv.Storage {
	return s.kv
}

// Read returns the current snapshot. Every collection is non-nil; storage failures are logged
// and read as empty.
func (s *Store) Read() Snapshot {
	snap, err := s.ReadStrict()
	if err != nil {
		s.logger.Warn("read snapshot failed, using what was readable", "error", err)
	}
	return snap
}

// ReadStrict is Read for callers that write the snapshot back. A storage error other than a
// missing key is returned; unparsable JSON still reads as an empty collection.
func (s *Store) ReadStrict() (Snapshot, error) {
	var snap Snapshot
	errs := []error{
		readCollection(s, KeyProfiles, &snap.Profiles),
		readCollection(s, KeyRoles, &snap.Roles),
		readCollection(s, KeyInvestments, &snap.Investments),
		readCollection(s, KeyOrders, &snap.Orders),
		readCollection(s, KeyTransactions, &snap.Transactions),
	}
	return snap, errors.Join(errs...)
}

func readCollection[T any](s *Store, key string, dst *[]T) error {
	*dst = []T{}
	raw, err := s.kv.GetItem(key)
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	var out []T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		s.logger.Warn("unparsable collection, using empty", "key", key, "error", err)
		return nil
	}
	if out != nil {
		*dst = out
	}
	return nil
}

// Update runs one read-modify-write cycle under the store lock. fn receives a snapshot it may
// modify and return. Nothing is written when the read fails or fn returns an error.
//
// A snapshot whose investments went from non-empty to empty is written with the empty
// collection, so selling the last position is persisted despite Write's skip policy.
func (s *Store) Update(fn func(Snapshot) (Snapshot, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.ReadStrict()
	if err != nil {
		return err
	}
	next, err := fn(prev.Clone())
	if err != nil {
		return err
	}
	if err := s.Write(next); err != nil {
		return err
	}
	if len(next.Investments) == 0 && len(prev.Investments) > 0 {
		return s.WriteInvestments(next.Investments)
	}
	return nil
}

// Write persists a snapshot. Profiles and roles are always written. Investments, orders and
// transactions are skipped when empty, keeping whatever was stored before. Write does not take
// the Update lock.
func (s *Store) Write(snap Snapshot) error {
	if err := writeCollection(s, KeyProfiles, snap.Profiles, true); err != nil {
		return err
	}
	if err := writeCollection(s, KeyRoles, snap.Roles, true); err != nil {
		return err
	}
	if err := writeCollection(s, KeyInvestments, snap.Investments, false); err != nil {
		return err
	}
	if err := writeCollection(s, KeyOrders, snap.Orders, false); err != nil {
		return err
	}
	return writeCollection(s, KeyTransactions, snap.Transactions, false)
}

// WriteInvestments replaces the investments collection even when items is empty.
func (s *Store) WriteInvestments(items []schema.Investment) error {
	return writeCollection(s, KeyInvestments, items, true)
}

func writeCollection[T any](s *Store, key string, items []T, always bool) error {
	if !always && len(items) == 0 {
		return nil
	}
	if items == nil {
		items = []T{}
	}
	bytes, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.SetItem(key, string(bytes)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// ReadSession returns the stored session, or nil when absent or unparsable.
func (s *Store) ReadSession() *schema.Session {
	raw, err := s.kv.GetItem(KeySession)
	if err != nil {
		if !errors.Is(err, kv.ErrKeyNotFound) {
			s.logger.Warn("read session failed", "error", err)
		}
		return nil
	}
	var session schema.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		s.logger.Warn("unparsable session, treating as signed out", "error", err)
		return nil
	}
	return &session
}

// WriteSession replaces the stored session.
func (s *Store) WriteSession(session schema.Session) error {
	bytes, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.kv.SetItem(KeySession, string(bytes)); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// ClearSession removes the stored session.
func (s *Store) ClearSession() error {
	if err := s.kv.RemoveItem(KeySession); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
