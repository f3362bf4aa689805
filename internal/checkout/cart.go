package checkout

import (
	"encoding/json"

	"github.com/noxcraft/storefront/internal/cart"
	"github.com/noxcraft/storefront/internal/orders"
)

// RequestFromCart builds the checkout body a client submits for c.
func RequestFromCart(c *cart.Cart, email, name string, addr orders.ShippingAddress) (Request, error) {
	items, err := json.Marshal(c.Items())
	if err != nil {
		return Request{}, err
	}
	a, err := json.Marshal(addr)
	if err != nil {
		return Request{}, err
	}
	return Request{
		CustomerEmail:   email,
		CustomerName:    name,
		ShippingAddress: a,
		Items:           items,
	}, nil
}
