// Package ledger settles buy and sell orders against investment positions.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/propertydex/propertydex-store/internal/store"
	"github.com/propertydex/propertydex-store/pkg/schema"
)

// ID prefixes of the rows minted by settlement.
const (
	OrderPrefix       = "ord-"
	InvestmentPrefix  = "inv-"
	TransactionPrefix = "tx-"
)

var centsPerUnit = decimal.NewFromInt(100)

// IDFunc mints an identifier with the given prefix.
type IDFunc func(prefix string) string

// Options toggles settlement behaviours.
type Options struct {
	// RecomputeAveragePrice sets avg_purchase_price to investment_amount / tokens_owned when a buy
	// merges into an existing position. Off keeps the price of the first buy.
	RecomputeAveragePrice bool
	// RecordTransactions appends one Transaction per order that changed a position.
	RecordTransactions bool
	// DefaultCurrency is used on transactions whose order names no currency.
	DefaultCurrency string
}

// Apply settles in against snap and returns the next snapshot and the recorded order.
// snap is not modified. The order is always appended; positions change only for well-formed
// buy and sell orders.
func Apply(snap store.Snapshot, in schema.OrderInput, now time.Time, newID IDFunc, opts Options) (store.Snapshot, schema.Order) {
	next := snap.Clone()
	order := schema.Order{
		ID:         newID(OrderPrefix),
		OrderInput: in,
		CreatedAt:  now,
	}
	next.Orders = append(next.Orders, order)

	if !settleable(in) {
		return next, order
	}

	var changed bool
	switch in.TxType {
	case schema.TxBuy:
		next.Investments = applyBuy(next.Investments, order, now, newID, opts)
		changed = true
	case schema.TxSell:
		next.Investments, changed = applySell(next.Investments, order)
	}

	if changed && opts.RecordTransactions {
		next.Transactions = append(next.Transactions, transactionFor(order, now, newID, opts))
	}
	return next, order
}

// settleable reports whether an order may touch a position.
func settleable(in schema.OrderInput) bool {
	return in.UserID != "" && in.PropertyID != "" && in.Tokens > 0
}

// findPosition returns the index of the first position for (userID, propertyID), or -1.
func findPosition(investments []schema.Investment, userID, propertyID string) int {
	for i, inv := range investments {
		if inv.UserID == userID && inv.PropertyID == propertyID {
			return i
		}
	}
	return -1
}

func applyBuy(investments []schema.Investment, order schema.Order, now time.Time, newID IDFunc, opts Options) []schema.Investment {
	gross := decimal.NewFromInt(order.GrossAmountCents).Div(centsPerUnit)

	idx := findPosition(investments, order.UserID, order.PropertyID)
	if idx < 0 {
		return append(investments, schema.Investment{
			ID:               newID(InvestmentPrefix),
			UserID:           order.UserID,
			PropertyID:       order.PropertyID,
			TokensOwned:      order.Tokens,
			InvestmentAmount: gross.InexactFloat64(),
			AvgPurchasePrice: decimal.NewFromInt(order.UnitPriceCents).Div(centsPerUnit).InexactFloat64(),
			PurchaseDate:     now,
		})
	}

	existing := investments[idx]
	amount := decimal.NewFromFloat(existing.InvestmentAmount).Add(gross)
	existing.TokensOwned += order.Tokens
	existing.InvestmentAmount = amount.InexactFloat64()
	if opts.RecomputeAveragePrice {
		existing.AvgPurchasePrice = amount.Div(decimal.NewFromInt(existing.TokensOwned)).InexactFloat64()
	}
	investments[idx] = existing
	return investments
}

// applySell reduces or liquidates a position. It reports false when no position exists.
func applySell(investments []schema.Investment, order schema.Order) ([]schema.Investment, bool) {
	idx := findPosition(investments, order.UserID, order.PropertyID)
	if idx < 0 {
		return investments, false
	}

	remaining := investments[idx].TokensOwned - order.Tokens
	if remaining <= 0 {
		return append(investments[:idx], investments[idx+1:]...), true
	}
	investments[idx].TokensOwned = remaining
	return investments, true
}

func transactionFor(order schema.Order, now time.Time, newID IDFunc, opts Options) schema.Transaction {
	currency := order.Currency
	if currency == "" {
		currency = opts.DefaultCurrency
	}
	return schema.Transaction{
		ID:          newID(TransactionPrefix),
		UserID:      order.UserID,
		PropertyID:  order.PropertyID,
		OrderID:     order.ID,
		TxType:      order.TxType,
		Tokens:      order.Tokens,
		AmountCents: order.GrossAmountCents,
		Currency:    currency,
		OccurredAt:  now,
	}
}
