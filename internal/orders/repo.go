package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noxcraft/storefront/internal/postgres"
)

// PgStore implements Store on postgres.
type PgStore struct{ DB postgres.DB }

var _ Store = (*PgStore)(nil)

func (s *PgStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(&pgTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	return tx.Commit(ctx)
}

func (s *PgStore) ListBySession(ctx context.Context, sessionID string) ([]Order, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, product_id, quantity, customer_email, COALESCE(customer_name, ''),
		       shipping_address, COALESCE(stripe_payment_id, ''), status, created_at
		FROM orders WHERE stripe_payment_id=$1 ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var (
			o      Order
			addr   []byte
			status string
		)
		if err := rows.Scan(&o.ID, &o.ProductID, &o.Quantity, &o.CustomerEmail, &o.CustomerName,
			&addr, &o.StripePaymentID, &status, &o.CreatedAt); err != nil {
			return nil, err
		}
		if len(addr) > 0 {
			if err := json.Unmarshal(addr, &o.ShippingAddress); err != nil {
				return nil, fmt.Errorf("order %s: decode shipping_address: %w", o.ID, err)
			}
		}
		o.Status = Status(status)
		out = append(out, o)
	}
	return out, rows.Err()
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) ClaimSession(ctx context.Context, sessionID, eventID string) (bool, error) {
	ct, err := t.tx.Exec(ctx, `
		INSERT INTO processed_sessions(session_id, event_id)
		VALUES ($1, $2)
		ON CONFLICT (session_id) DO NOTHING`, sessionID, eventID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (t *pgTx) LockStock(ctx context.Context, productID string) (int, error) {
	var stock int
	err := t.tx.QueryRow(ctx, `SELECT stock_quantity FROM products WHERE id=$1 FOR UPDATE`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	return stock, err
}

func (t *pgTx) SetStock(ctx context.Context, productID string, qty int) error {
	ct, err := t.tx.Exec(ctx, `UPDATE products SET stock_quantity=$2 WHERE id=$1`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	return nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	addr := o.ShippingAddress
	if addr == nil {
		addr = ShippingAddress{}
	}
	b, err := json.Marshal(addr)
	if err != nil {
		return fmt.Errorf("encode shipping_address: %w", err)
	}
	var name *string
	if o.CustomerName != "" {
		name = &o.CustomerName
	}
	return t.tx.QueryRow(ctx, `
		INSERT INTO orders(id, product_id, quantity, customer_email, customer_name,
		                   shipping_address, stripe_payment_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		o.ID, o.ProductID, o.Quantity, o.CustomerEmail, name, b, o.StripePaymentID, string(o.Status),
	).Scan(&o.CreatedAt)
}
