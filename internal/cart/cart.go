// Package cart holds a shopper's in-memory cart: product id -> quantity, kept in
// insertion order, with totals derived from the catalog prices it was filled from.
package cart

import (
	"github.com/shopspring/decimal"

	"github.com/noxcraft/storefront/internal/catalog"
	"github.com/noxcraft/storefront/internal/orders"
)

type line struct {
	product  catalog.Product
	quantity int
}

// Cart is not safe for concurrent use.
type Cart struct {
	order []string
	lines map[string]*line
}

func New() *Cart {
	return &Cart{lines: map[string]*line{}}
}

// Add adds qty units of p. The resulting quantity is capped at p's stock.
// Returns the quantity now in the cart.
func (c *Cart) Add(p catalog.Product, qty int) int {
	if qty <= 0 {
		return c.Quantity(p.ID)
	}
	l, ok := c.lines[p.ID]
	if !ok {
		l = &line{}
		c.lines[p.ID] = l
		c.order = append(c.order, p.ID)
	}
	l.product = p
	l.quantity = min(l.quantity+qty, p.StockQuantity)
	if l.quantity <= 0 {
		c.Remove(p.ID)
		return 0
	}
	return l.quantity
}

// SetQuantity overwrites the quantity of a product already in the cart.
// qty <= 0 removes it.
func (c *Cart) SetQuantity(productID string, qty int) {
	l, ok := c.lines[productID]
	if !ok {
		return
	}
	if qty <= 0 {
		c.Remove(productID)
		return
	}
	l.quantity = min(qty, l.product.StockQuantity)
}

func (c *Cart) Remove(productID string) {
	if _, ok := c.lines[productID]; !ok {
		return
	}
	delete(c.lines, productID)
	for i, id := range c.order {
		if id == productID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *Cart) Clear() {
	c.order = nil
	c.lines = map[string]*line{}
}

func (c *Cart) Quantity(productID string) int {
	if l, ok := c.lines[productID]; ok {
		return l.quantity
	}
	return 0
}

func (c *Cart) Empty() bool { return len(c.order) == 0 }

func (c *Cart) TotalItems() int {
	n := 0
	for _, l := range c.lines {
		n += l.quantity
	}
	return n
}

func (c *Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.product.Price.Mul(decimal.NewFromInt(int64(l.quantity))))
	}
	return total
}

// Items returns the checkout line items in the order products were first added.
func (c *Cart) Items() []orders.LineItem {
	out := make([]orders.LineItem, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, orders.LineItem{ProductID: id, Quantity: c.lines[id].quantity})
	}
	return out
}
