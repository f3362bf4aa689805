package orders

import (
	"context"
	"errors"
)

var ErrProductNotFound = errors.New("product not found")

// Tx is the unit of work used to fulfil one checkout session. Everything done
// through a Tx commits or rolls back together.
type Tx interface {
	// ClaimSession records sessionID in the processed-session ledger. It
	// returns false when the session was already claimed by an earlier event.
	ClaimSession(ctx context.Context, sessionID, eventID string) (bool, error)
	// LockStock reads stock_quantity and holds the row until the Tx ends.
	LockStock(ctx context.Context, productID string) (int, error)
	SetStock(ctx context.Context, productID string, qty int) error
	// InsertOrder assigns ID and CreatedAt on o.
	InsertOrder(ctx context.Context, o *Order) error
}

type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	ListBySession(ctx context.Context, sessionID string) ([]Order, error)
}

// DecrementStock returns the new stock after selling qty units, floored at zero.
func DecrementStock(current, qty int) int {
	if n := current - qty; n > 0 {
		return n
	}
	return 0
}
