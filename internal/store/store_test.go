package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/propertydex/propertydex-store/internal/engine"
	"github.com/propertydex/propertydex-store/pkg/kv"
	"github.com/propertydex/propertydex-store/pkg/schema"
)

func TestRead_EmptyDefaults(t *testing.T) {
	s := New(engine.NewMemStore(nil, nil), nil)

	snap := s.Read()
	if snap.Profiles == nil || snap.Roles == nil || snap.Investments == nil || snap.Orders == nil || snap.Transactions == nil {
		t.Fatalf("Expected non-nil collections, got %+v", snap)
	}
	if len(snap.Profiles)+len(snap.Roles)+len(snap.Investments)+len(snap.Orders)+len(snap.Transactions) != 0 {
		t.Errorf("Expected empty collections, got %+v", snap)
	}
	if s.ReadSession() != nil {
		t.Error("Expected no session")
	}
}

func TestRead_MalformedCollections(t *testing.T) {
	mem := engine.NewMemStore(map[string]string{
		KeyProfiles:    "{broken",
		KeyOrders:      `{"not":"an array"}`,
		KeyInvestments: `null`,
		KeySession:     `[]`,
		KeyRoles:       `[{"user_id":"u1","role":"user","kyc_status":"pending","accreditation_status":"none","updated_at":"2026-01-01T00:00:00Z"}]`,
	}, nil)
	s := New(mem, nil)

	snap := s.Read()
	if len(snap.Profiles) != 0 || len(snap.Orders) != 0 {
		t.Errorf("Expected malformed collections to read as empty, got %+v", snap)
	}
	if snap.Investments == nil {
		t.Error("Expected null collection to read as empty slice")
	}
	if len(snap.Roles) != 1 || snap.Roles[0].UserID != "u1" {
		t.Errorf("Expected intact roles collection, got %+v", snap.Roles)
	}
	if s.ReadSession() != nil {
		t.Error("Expected unparsable session to read as nil")
	}
}

func TestWrite_SkipsEmptyOptionalCollections(t *testing.T) {
	mem := engine.NewMemStore(nil, nil)
	s := New(mem, nil)

	first := Snapshot{
		Orders:      []schema.Order{{ID: "ord-1"}},
		Investments: []schema.Investment{{ID: "inv-1", TokensOwned: 10}},
	}
	if err := s.Write(first); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// An accidentally-empty batch must not clobber history.
	if err := s.Write(Snapshot{}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	snap := s.Read()
	if len(snap.Orders) != 1 || len(snap.Investments) != 1 {
		t.Errorf("Expected orders and investments retained, got %+v", snap)
	}
	if raw, err := mem.GetItem(KeyProfiles); err != nil || raw != "[]" {
		t.Errorf("Expected profiles always written, got %q, %v", raw, err)
	}
	if _, err := mem.GetItem(KeyTransactions); err != kv.ErrKeyNotFound {
		t.Errorf("Expected transactions never written, got %v", err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	s := New(engine.NewMemStore(nil, nil), nil)

	session := schema.Session{
		User:        schema.SessionUser{ID: "user-1", Email: "a@example.com", Aud: schema.Audience},
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(time.Hour).Unix(),
	}
	if err := s.WriteSession(session); err != nil {
		t.Fatalf("WriteSession failed: %v", err)
	}
	got := s.ReadSession()
	if got == nil || got.User.ID != "user-1" || got.AccessToken != "tok" {
		t.Fatalf("Session mismatch: %+v", got)
	}
	if err := s.ClearSession(); err != nil {
		t.Fatalf("ClearSession failed: %v", err)
	}
	if s.ReadSession() != nil {
		t.Error("Expected session cleared")
	}
}

func TestSnapshotClone(t *testing.T) {
	snap := Snapshot{Orders: []schema.Order{{ID: "ord-1"}}}
	c := snap.Clone()
	c.Orders[0].ID = "changed"
	if snap.Orders[0].ID != "ord-1" {
		t.Error("Clone must not share backing arrays")
	}
}

func TestWriteInvestments_WritesEmpty(t *testing.T) {
	s := New(engine.NewMemStore(nil, nil), nil)
	s.Write(Snapshot{Investments: []schema.Investment{{ID: "inv-1", UserID: "U", PropertyID: "P", TokensOwned: 1}}})

	if err := s.WriteInvestments(nil); err != nil {
		t.Fatalf("WriteInvestments failed: %v", err)
	}
	if got := s.Read().Investments; len(got) != 0 {
		t.Errorf("Expected investments cleared, got %+v", got)
	}
	if raw, _ := s.Storage().GetItem(KeyInvestments); raw != "[]" {
		t.Errorf("Expected an empty array stored, got %q", raw)
	}
}

// failingReads fails GetItem for one key until cleared.
type failingReads struct {
	kv.Storage
	key string
}

func (f *failingReads) GetItem(key string) (string, error) {
	if key == f.key {
		return "", errors.New("connection reset")
	}
	return f.Storage.GetItem(key)
}

func TestUpdate_ReadFailureWritesNothing(t *testing.T) {
	mem := engine.NewMemStore(nil, nil)
	seed := New(mem, nil)
	seed.Write(Snapshot{
		Profiles: []schema.UserProfile{{ID: "u1", Email: "a@example.com"}},
		Roles:    []schema.UserRole{{UserID: "u1", Role: schema.RoleUser}},
	})

	s := New(&failingReads{Storage: mem, key: KeyProfiles}, nil)
	called := false
	err := s.Update(func(snap Snapshot) (Snapshot, error) {
		called = true
		return snap, nil
	})
	if err == nil {
		t.Fatal("Expected the read failure to be returned")
	}
	if called {
		t.Error("fn must not run after a failed read")
	}
	if got := seed.Read().Profiles; len(got) != 1 {
		t.Errorf("Expected profiles untouched, got %+v", got)
	}

	// Lenient reads still degrade to empty.
	if got := s.Read(); len(got.Profiles) != 0 || len(got.Roles) != 1 {
		t.Errorf("Expected only the failing collection empty, got %+v", got)
	}
}

func TestUpdate_UnparsableStillEmpty(t *testing.T) {
	s := New(engine.NewMemStore(map[string]string{KeyOrders: "{broken"}, nil), nil)
	err := s.Update(func(snap Snapshot) (Snapshot, error) {
		if len(snap.Orders) != 0 {
			t.Errorf("Expected unparsable orders to read as empty, got %+v", snap.Orders)
		}
		return snap, nil
	})
	if err != nil {
		t.Errorf("Unparsable JSON must not fail Update: %v", err)
	}
}

func TestUpdate_FnErrorWritesNothing(t *testing.T) {
	s := New(engine.NewMemStore(nil, nil), nil)
	boom := errors.New("boom")
	err := s.Update(func(snap Snapshot) (Snapshot, error) {
		snap.Profiles = append(snap.Profiles, schema.UserProfile{ID: "u1"})
		return snap, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected fn error, got %v", err)
	}
	if _, err := s.Storage().GetItem(KeyProfiles); !errors.Is(err, kv.ErrKeyNotFound) {
		t.Errorf("Expected nothing written, got %v", err)
	}
}

func TestUpdate_PersistsLiquidation(t *testing.T) {
	s := New(engine.NewMemStore(nil, nil), nil)
	s.Write(Snapshot{Investments: []schema.Investment{{ID: "inv-1", UserID: "U", PropertyID: "P", TokensOwned: 3}}})

	err := s.Update(func(snap Snapshot) (Snapshot, error) {
		snap.Investments = snap.Investments[:0]
		return snap, nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got := s.Read().Investments; len(got) != 0 {
		t.Errorf("Expected the last position removed, got %+v", got)
	}
}

func TestUpdate_Serialized(t *testing.T) {
	s := New(engine.NewMemStore(nil, nil), nil)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Update(func(snap Snapshot) (Snapshot, error) {
				snap.Profiles = append(snap.Profiles, schema.UserProfile{ID: fmt.Sprintf("u%d", i)})
				return snap, nil
			})
		}(i)
	}
	wg.Wait()

	if got := len(s.Read().Profiles); got != 40 {
		t.Errorf("Expected 40 profiles, got %d", got)
	}
}
