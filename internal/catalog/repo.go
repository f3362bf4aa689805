package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/noxcraft/storefront/internal/postgres"
)

var ErrNotFound = errors.New("product not found")

const productColumns = `id, name, COALESCE(description, ''), price::text, stock_quantity, created_at`

type Repo struct{ DB postgres.DB }

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p     Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &price, &p.StockQuantity, &p.CreatedAt); err != nil {
		return Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return Product{}, fmt.Errorf("product %s: bad price %q: %w", p.ID, price, err)
	}
	p.Price = d
	return p, nil
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) GetProduct(ctx context.Context, id string) (Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

// GetProductsByIDs reads all requested products in one query, keyed by id.
// Ids absent from the table are simply missing from the map.
func (r *Repo) GetProductsByIDs(ctx context.Context, ids []string) (map[string]Product, error) {
	out := make(map[string]Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, 0, len(ids))
	var params strings.Builder
	for i, id := range ids {
		if i > 0 {
			params.WriteString(",")
		}
		fmt.Fprintf(&params, "$%d", i+1)
		args = append(args, id)
	}

	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id IN (`+params.String()+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// SetStock overwrites stock_quantity; used by admin tooling only.
func (r *Repo) SetStock(ctx context.Context, id string, qty int) error {
	if qty < 0 {
		return fmt.Errorf("stock must be >= 0, got %d", qty)
	}
	ct, err := r.DB.Exec(ctx, `UPDATE products SET stock_quantity=$2 WHERE id=$1`, id, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}
