package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var productCols = []string{"id", "name", "description", "price", "stock_quantity", "created_at"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestGetProductsByIDs(t *testing.T) {
	mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery("FROM products WHERE id IN").
		WithArgs("desk-1", "desk-2").
		WillReturnRows(pgxmock.NewRows(productCols).
			AddRow("desk-1", "Sunfall Desk", "", "499.95", 3, now))

	repo := &Repo{DB: mock}
	got, err := repo.GetProductsByIDs(context.Background(), []string{"desk-1", "desk-2"})
	require.NoError(t, err)

	require.Len(t, got, 1)
	p := got["desk-1"]
	assert.Equal(t, "Sunfall Desk", p.Name)
	assert.True(t, decimal.RequireFromString("499.95").Equal(p.Price))
	assert.Equal(t, 3, p.StockQuantity)
	_, ok := got["desk-2"]
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProductsByIDsEmptySkipsQuery(t *testing.T) {
	mock := newMock(t)
	repo := &Repo{DB: mock}

	got, err := repo.GetProductsByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProductNotFound(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("FROM products WHERE id=").
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	repo := &Repo{DB: mock}
	_, err := repo.GetProduct(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListProductsBadPrice(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("FROM products ORDER BY").
		WillReturnRows(pgxmock.NewRows(productCols).
			AddRow("desk-1", "Sunfall Desk", "", "abc", 3, time.Now()))

	repo := &Repo{DB: mock}
	_, err := repo.ListProducts(context.Background())
	assert.ErrorContains(t, err, "bad price")
}

func TestSetStock(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("UPDATE products SET stock_quantity").
		WithArgs("desk-1", 7).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE products SET stock_quantity").
		WithArgs("ghost", 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := &Repo{DB: mock}
	require.NoError(t, repo.SetStock(context.Background(), "desk-1", 7))
	assert.ErrorIs(t, repo.SetStock(context.Background(), "ghost", 1), ErrNotFound)
	assert.Error(t, repo.SetStock(context.Background(), "desk-1", -1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitAmount(t *testing.T) {
	cases := map[string]int64{
		"499.95": 49995,
		"10":     1000,
		"0.005":  1,
		"12.344": 1234,
	}
	for price, want := range cases {
		p := Product{Price: decimal.RequireFromString(price)}
		assert.Equal(t, want, p.UnitAmount(), price)
	}
}
