package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/propertydex/propertydex-store/pkg/schema"
)

// Table names accepted by From.
const (
	TableProfiles     = "profiles"
	TableRoles        = "user_roles"
	TableInvestments  = "investments"
	TableOrders       = "orders"
	TableTransactions = "transactions"
)

// ErrInvalidBody is returned by Table.Insert when the payload is not an object or array.
var ErrInvalidBody = errors.New("invalid insert body")

// ReadTable is a read-only collection handler. Select ignores its query arguments and returns the
// whole collection.
type ReadTable[T any] struct {
	read func() []T
}

// Select returns the whole collection.
func (t ReadTable[T]) Select(query ...string) Result[[]T] {
	return ok(t.read())
}

// OrdersTable is the only handler with an insert path; inserts settle through the ledger.
type OrdersTable struct {
	ReadTable[schema.Order]
	c *Client
}

// InsertOne settles in and returns {data:[order]}. A failed write still returns the order with
// the error in the envelope; when the state could not be read the data is [null].
func (t OrdersTable) InsertOne(in schema.OrderInput) Result[[]*schema.Order] {
	order, err := t.c.ledger.Settle(in)
	if err != nil {
		if order.ID == "" {
			return fail([]*schema.Order{nil}, err)
		}
		return fail([]*schema.Order{&order}, err)
	}
	return ok([]*schema.Order{&order})
}

// Insert settles the first element of rows. An empty slice inserts nothing and yields {data:[null]}.
func (t OrdersTable) Insert(rows []schema.OrderInput) Result[[]*schema.Order] {
	if len(rows) == 0 {
		return ok([]*schema.Order{nil})
	}
	return t.InsertOne(rows[0])
}

// Profiles returns the profiles handler.
func (c *Client) Profiles() ReadTable[schema.UserProfile] {
	return ReadTable[schema.UserProfile]{read: func() []schema.UserProfile { return c.store.Read().Profiles }}
}

// Roles returns the user_roles handler.
func (c *Client) Roles() ReadTable[schema.UserRole] {
	return ReadTable[schema.UserRole]{read: func() []schema.UserRole { return c.store.Read().Roles }}
}

// Investments returns the investments handler.
func (c *Client) Investments() ReadTable[schema.Investment] {
	return ReadTable[schema.Investment]{read: func() []schema.Investment { return c.store.Read().Investments }}
}

// Transactions returns the transactions handler.
func (c *Client) Transactions() ReadTable[schema.Transaction] {
	return ReadTable[schema.Transaction]{read: func() []schema.Transaction { return c.store.Read().Transactions }}
}

// Orders returns the orders handler, the only one that inserts.
func (c *Client) Orders() OrdersTable {
	return OrdersTable{
		ReadTable: ReadTable[schema.Order]{read: func() []schema.Order { return c.store.Read().Orders }},
		c:         c,
	}
}

// Table is the untyped handler returned by From, used by wire callers that only know a name.
type Table struct {
	name string
	c    *Client
}

// From returns the handler for name. Unknown names are valid and behave as empty tables.
func (c *Client) From(name string) Table {
	return Table{name: name, c: c}
}

// Name returns the table name.
func (t Table) Name() string {
	return t.name
}

// Select returns the named collection, or an empty array for an unknown name.
func (t Table) Select(query ...string) Result[any] {
	switch t.name {
	case TableProfiles:
		return ok[any](t.c.Profiles().Select(query...).Data)
	case TableRoles:
		return ok[any](t.c.Roles().Select(query...).Data)
	case TableInvestments:
		return ok[any](t.c.Investments().Select(query...).Data)
	case TableOrders:
		return ok[any](t.c.Orders().Select(query...).Data)
	case TableTransactions:
		return ok[any](t.c.Transactions().Select(query...).Data)
	default:
		return ok[any]([]any{})
	}
}

// Insert accepts a JSON object or array. Only the orders table stores anything; every other name
// answers {data:[null], error:null}.
func (t Table) Insert(raw json.RawMessage) (Result[any], error) {
	if t.name != TableOrders {
		return ok[any]([]any{nil}), nil
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var rows []schema.OrderInput
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return Result[any]{}, fmt.Errorf("%w: %v", ErrInvalidBody, err)
		}
		res := t.c.Orders().Insert(rows)
		return Result[any]{Data: res.Data, Error: res.Error}, nil
	}

	var in schema.OrderInput
	if err := json.Unmarshal(trimmed, &in); err != nil {
		return Result[any]{}, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	res := t.c.Orders().InsertOne(in)
	return Result[any]{Data: res.Data, Error: res.Error}, nil
}
