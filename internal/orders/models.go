package orders

import "time"

// LineItem is one product-and-quantity pair of a checkout.
type LineItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// ShippingAddress is the free-form address object submitted at checkout and
// stored verbatim as jsonb.
type ShippingAddress map[string]any

// Order is one row per purchased product line; rows of the same checkout share
// StripePaymentID.
type Order struct {
	ID              string          `json:"id"`
	ProductID       string          `json:"product_id"`
	Quantity        int             `json:"quantity"`
	CustomerEmail   string          `json:"customer_email"`
	CustomerName    string          `json:"customer_name,omitempty"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	StripePaymentID string          `json:"stripe_payment_id"`
	Status          Status          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
}
