package schema

import "time"

// TxType is the direction of an order or ledger entry.
type TxType string

const (
	TxBuy      TxType = "buy"
	TxSell     TxType = "sell"
	TxDividend TxType = "dividend"
	TxFee      TxType = "fee"
	TxRefund   TxType = "refund"
)

// OrderStatus is the payment lifecycle of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderPaid       OrderStatus = "paid"
	OrderFailed     OrderStatus = "failed"
	OrderCancelled  OrderStatus = "cancelled"
)

// OrderInput is a buy or sell request as submitted by a caller.
type OrderInput struct {
	UserID           string      `json:"user_id"`
	PropertyID       string      `json:"property_id"`
	TierID           string      `json:"tier_id,omitempty"`
	Tokens           int64       `json:"tokens"`
	UnitPriceCents   int64       `json:"unit_price_cents"`
	GrossAmountCents int64       `json:"gross_amount_cents"`
	FeesCents        *int64      `json:"fees_cents,omitempty"`
	NetAmountCents   *int64      `json:"net_amount_cents,omitempty"`
	Currency         string      `json:"currency,omitempty"`
	Status           OrderStatus `json:"status"`
	PaymentMethod    string      `json:"payment_method,omitempty"`
	TxType           TxType      `json:"tx_type,omitempty"`
	PaidAt           *time.Time  `json:"paid_at,omitempty"`
}

// Order is an OrderInput after settlement assigned it an identity. Orders are append-only.
type Order struct {
	ID string `json:"id"`
	OrderInput
	CreatedAt time.Time `json:"created_at"`
}

// Investment is the position of one user in one property.
// There is at most one Investment per (UserID, PropertyID).
type Investment struct {
	ID                     string    `json:"id"`
	UserID                 string    `json:"user_id"`
	PropertyID             string    `json:"property_id"`
	TokensOwned            int64     `json:"tokens_owned"`
	InvestmentAmount       float64   `json:"investment_amount"`
	AvgPurchasePrice       float64   `json:"avg_purchase_price"`
	ROIRealized            *float64  `json:"roi_realized,omitempty"`
	TotalDividendsReceived *float64  `json:"total_dividends_received,omitempty"`
	DaysHeld               *int      `json:"days_held,omitempty"`
	PurchaseDate           time.Time `json:"purchase_date"`
}

// Transaction is a ledger entry mirroring a settled order.
type Transaction struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	PropertyID       string    `json:"property_id"`
	OrderID          string    `json:"order_id"`
	TxType           TxType    `json:"tx_type"`
	Tokens           int64     `json:"tokens"`
	AmountCents      int64     `json:"amount_cents"`
	Currency         string    `json:"currency"`
	BlockchainTxHash string    `json:"blockchain_tx_hash,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}
