package ledger

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/propertydex/propertydex-store/internal/engine"
	"github.com/propertydex/propertydex-store/internal/store"
	"github.com/propertydex/propertydex-store/pkg/schema"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sequentialIDs() IDFunc {
	var mu sync.Mutex
	n := 0
	return func(prefix string) string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

func newTestEngine(opts Options) (*Engine, *store.Store) {
	st := store.New(engine.NewMemStore(nil, nil), nil)
	e := NewEngine(st, opts, WithClock(func() time.Time { return fixedNow }), WithIDs(sequentialIDs()))
	return e, st
}

func buy(tokens, unitCents, grossCents int64) schema.OrderInput {
	return schema.OrderInput{
		UserID: "U", PropertyID: "P", Tokens: tokens,
		UnitPriceCents: unitCents, GrossAmountCents: grossCents,
		Status: schema.OrderPaid, TxType: schema.TxBuy,
	}
}

func sell(tokens int64) schema.OrderInput {
	return schema.OrderInput{
		UserID: "U", PropertyID: "P", Tokens: tokens,
		Status: schema.OrderPaid, TxType: schema.TxSell,
	}
}

func mustSettle(t *testing.T, e *Engine, in schema.OrderInput) schema.Order {
	t.Helper()
	order, err := e.Settle(in)
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	return order
}

func TestSettle_Scenarios(t *testing.T) {
	e, st := newTestEngine(Options{})

	// Scenario 1: first buy opens the position.
	order := mustSettle(t, e, buy(100, 500, 50000))
	if order.ID != "ord-1" || !order.CreatedAt.Equal(fixedNow) {
		t.Errorf("Unexpected settled order identity: %+v", order)
	}
	inv, ok := e.Position("U", "P")
	if !ok {
		t.Fatal("Expected a position after the first buy")
	}
	if inv.TokensOwned != 100 || inv.InvestmentAmount != 500 || inv.AvgPurchasePrice != 5 {
		t.Errorf("Scenario 1 mismatch: %+v", inv)
	}
	if !inv.PurchaseDate.Equal(fixedNow) {
		t.Errorf("Expected purchase date %s, got %s", fixedNow, inv.PurchaseDate)
	}

	// Scenario 2: second buy merges.
	mustSettle(t, e, buy(50, 500, 25000))
	inv, _ = e.Position("U", "P")
	if inv.TokensOwned != 150 || inv.InvestmentAmount != 750 {
		t.Errorf("Scenario 2 mismatch: %+v", inv)
	}

	// Scenario 3: selling everything liquidates.
	mustSettle(t, e, sell(150))
	if _, ok := e.Position("U", "P"); ok {
		t.Error("Scenario 3: expected the position to be removed")
	}

	snap := st.Read()
	if len(snap.Orders) != 3 {
		t.Errorf("Expected 3 recorded orders, got %d", len(snap.Orders))
	}
}

func TestSettle_PositionConsistency(t *testing.T) {
	e, _ := newTestEngine(Options{})

	quantities := []int64{3, 17, 1, 250, 42}
	var wantTokens int64
	var wantAmount float64
	for i, q := range quantities {
		gross := q * int64(1000+i*37)
		mustSettle(t, e, buy(q, int64(1000+i*37), gross))
		wantTokens += q
		wantAmount += float64(gross) / 100
	}

	inv, _ := e.Position("U", "P")
	if inv.TokensOwned != wantTokens {
		t.Errorf("Expected %d tokens, got %d", wantTokens, inv.TokensOwned)
	}
	if diff := inv.InvestmentAmount - wantAmount; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Expected amount %v, got %v", wantAmount, inv.InvestmentAmount)
	}
	if inv.AvgPurchasePrice != 10 {
		t.Errorf("Average price must stay at the first buy's price, got %v", inv.AvgPurchasePrice)
	}
}

func TestSettle_Sells(t *testing.T) {
	cases := []struct {
		name       string
		sellTokens int64
		wantExists bool
		wantTokens int64
	}{
		{"partial", 40, true, 60},
		{"exact liquidation", 100, false, 0},
		{"over-sell", 130, false, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, _ := newTestEngine(Options{})
			mustSettle(t, e, buy(100, 500, 50000))
			mustSettle(t, e, sell(tc.sellTokens))

			inv, ok := e.Position("U", "P")
			if ok != tc.wantExists {
				t.Fatalf("Expected exists=%v, got %v (%+v)", tc.wantExists, ok, inv)
			}
			if !ok {
				return
			}
			if inv.TokensOwned != tc.wantTokens {
				t.Errorf("Expected %d tokens, got %d", tc.wantTokens, inv.TokensOwned)
			}
			if inv.InvestmentAmount != 500 || inv.AvgPurchasePrice != 5 {
				t.Errorf("Partial sell must not touch cost basis: %+v", inv)
			}
		})
	}
}

func TestSettle_NoPositionSellIsRecorded(t *testing.T) {
	e, st := newTestEngine(Options{RecordTransactions: true})
	mustSettle(t, e, sell(10))

	snap := st.Read()
	if len(snap.Orders) != 1 {
		t.Errorf("Expected the order recorded, got %d orders", len(snap.Orders))
	}
	if len(snap.Investments) != 0 || len(snap.Transactions) != 0 {
		t.Errorf("Expected no position or transaction, got %+v", snap)
	}
}

func TestSettle_UnsettleableOrders(t *testing.T) {
	cases := map[string]schema.OrderInput{
		"unknown type":   {UserID: "U", PropertyID: "P", Tokens: 5, TxType: "swap"},
		"missing type":   {UserID: "U", PropertyID: "P", Tokens: 5},
		"zero tokens":    {UserID: "U", PropertyID: "P", Tokens: 0, TxType: schema.TxBuy},
		"negative":       {UserID: "U", PropertyID: "P", Tokens: -5, TxType: schema.TxBuy},
		"missing user":   {PropertyID: "P", Tokens: 5, TxType: schema.TxBuy},
		"missing target": {UserID: "U", Tokens: 5, TxType: schema.TxBuy},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			e, st := newTestEngine(Options{RecordTransactions: true})
			order := mustSettle(t, e, in)
			if order.ID == "" {
				t.Error("Expected an id even for unsettleable orders")
			}
			snap := st.Read()
			if len(snap.Orders) != 1 || len(snap.Investments) != 0 || len(snap.Transactions) != 0 {
				t.Errorf("Expected only the order recorded, got %+v", snap)
			}
		})
	}
}

func TestSettle_RecomputeAveragePrice(t *testing.T) {
	e, _ := newTestEngine(Options{RecomputeAveragePrice: true})
	mustSettle(t, e, buy(100, 500, 50000))
	mustSettle(t, e, buy(100, 700, 70000))

	inv, _ := e.Position("U", "P")
	if inv.AvgPurchasePrice != 6 {
		t.Errorf("Expected recomputed average 6, got %v", inv.AvgPurchasePrice)
	}
}

func TestSettle_RecordsTransactions(t *testing.T) {
	e, st := newTestEngine(Options{RecordTransactions: true, DefaultCurrency: "USD"})
	bought := mustSettle(t, e, buy(10, 500, 5000))
	in := sell(4)
	in.Currency = "EUR"
	mustSettle(t, e, in)

	txs := st.Read().Transactions
	if len(txs) != 2 {
		t.Fatalf("Expected 2 transactions, got %d", len(txs))
	}
	if txs[0].OrderID != bought.ID || txs[0].TxType != schema.TxBuy || txs[0].AmountCents != 5000 || txs[0].Currency != "USD" {
		t.Errorf("Unexpected buy transaction: %+v", txs[0])
	}
	if txs[1].TxType != schema.TxSell || txs[1].Tokens != 4 || txs[1].Currency != "EUR" {
		t.Errorf("Unexpected sell transaction: %+v", txs[1])
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	snap := store.Snapshot{Investments: []schema.Investment{{ID: "inv-0", UserID: "U", PropertyID: "P", TokensOwned: 10}}}
	next, _ := Apply(snap, sell(3), fixedNow, sequentialIDs(), Options{})

	if snap.Investments[0].TokensOwned != 10 || len(snap.Orders) != 0 {
		t.Errorf("Input snapshot was modified: %+v", snap)
	}
	if next.Investments[0].TokensOwned != 7 {
		t.Errorf("Expected 7 tokens in next snapshot, got %d", next.Investments[0].TokensOwned)
	}
}

func TestApply_DuplicatePositionsActOnFirst(t *testing.T) {
	snap := store.Snapshot{Investments: []schema.Investment{
		{ID: "inv-a", UserID: "U", PropertyID: "P", TokensOwned: 10},
		{ID: "inv-b", UserID: "U", PropertyID: "P", TokensOwned: 99},
	}}
	next, _ := Apply(snap, buy(5, 100, 500), fixedNow, sequentialIDs(), Options{})
	if next.Investments[0].TokensOwned != 15 || next.Investments[1].TokensOwned != 99 {
		t.Errorf("Expected only the first duplicate updated, got %+v", next.Investments)
	}
}

func TestSettle_Serialized(t *testing.T) {
	e, _ := newTestEngine(Options{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Settle(buy(2, 100, 200))
		}()
	}
	wg.Wait()

	inv, _ := e.Position("U", "P")
	if inv.TokensOwned != 100 {
		t.Errorf("Expected 100 tokens after 50 concurrent buys, got %d", inv.TokensOwned)
	}
}

// Two writers sharing one storage with interleaved read-modify-write cycles lose an update.
func TestSettle_CrossWriterLastWriterWins(t *testing.T) {
	shared := engine.NewMemStore(nil, nil)
	tabA := store.New(shared, nil)
	tabB := store.New(shared, nil)
	ids := sequentialIDs()

	snapA := tabA.Read()
	snapB := tabB.Read()
	nextA, _ := Apply(snapA, buy(10, 100, 1000), fixedNow, ids, Options{})
	nextB, _ := Apply(snapB, buy(20, 100, 2000), fixedNow, ids, Options{})
	tabA.Write(nextA)
	tabB.Write(nextB)

	snap := tabA.Read()
	if len(snap.Investments) != 1 || snap.Investments[0].TokensOwned != 20 {
		t.Errorf("Expected last writer's position only, got %+v", snap.Investments)
	}
	if len(snap.Orders) != 1 {
		t.Errorf("Expected the first writer's order lost, got %d orders", len(snap.Orders))
	}
}
