package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (p Product) InStock() bool { return p.StockQuantity > 0 }

// UnitAmount is the price in minor currency units (cents), rounded half away from zero.
func (p Product) UnitAmount() int64 {
	return p.Price.Shift(2).Round(0).IntPart()
}
