package testutil

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noxcraft/storefront/internal/orders"
)

// MemStore is an in-memory orders.Store. InTx works on a copy and only
// publishes it when fn returns nil, so a failing fn leaves no trace.
type MemStore struct {
	mu        sync.Mutex
	Stock     map[string]int
	Orders    []orders.Order
	Processed map[string]string // session id -> event id

	// FailInsertFor makes InsertOrder fail for that product id.
	FailInsertFor string
}

func NewMemStore(stock map[string]int) *MemStore {
	return &MemStore{Stock: stock, Processed: map[string]string{}}
}

func (m *MemStore) InTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{
		stock:     maps.Clone(m.Stock),
		processed: maps.Clone(m.Processed),
		failFor:   m.FailInsertFor,
	}
	if err := fn(tx); err != nil {
		return err
	}
	m.Stock = tx.stock
	m.Processed = tx.processed
	m.Orders = append(m.Orders, tx.orders...)
	return nil
}

func (m *MemStore) ListBySession(ctx context.Context, sessionID string) ([]orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []orders.Order
	for _, o := range m.Orders {
		if o.StripePaymentID == sessionID {
			out = append(out, o)
		}
	}
	return out, nil
}

// StockOf reads committed stock.
func (m *MemStore) StockOf(productID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Stock[productID]
}

// OrderCount reads committed orders.
func (m *MemStore) OrderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Orders)
}

type memTx struct {
	stock     map[string]int
	processed map[string]string
	orders    []orders.Order
	failFor   string
}

func (t *memTx) ClaimSession(ctx context.Context, sessionID, eventID string) (bool, error) {
	if _, ok := t.processed[sessionID]; ok {
		return false, nil
	}
	t.processed[sessionID] = eventID
	return true, nil
}

func (t *memTx) LockStock(ctx context.Context, productID string) (int, error) {
	n, ok := t.stock[productID]
	if !ok {
		return 0, orders.ErrProductNotFound
	}
	return n, nil
}

func (t *memTx) SetStock(ctx context.Context, productID string, qty int) error {
	if _, ok := t.stock[productID]; !ok {
		return orders.ErrProductNotFound
	}
	t.stock[productID] = qty
	return nil
}

func (t *memTx) InsertOrder(ctx context.Context, o *orders.Order) error {
	if o.ProductID == t.failFor {
		return fmt.Errorf("insert order: constraint violation on %s", o.ProductID)
	}
	o.ID = uuid.NewString()
	o.CreatedAt = time.Now().UTC()
	t.orders = append(t.orders, *o)
	return nil
}
