package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/noxcraft/storefront/internal/cart"
	"github.com/noxcraft/storefront/internal/catalog"
	"github.com/noxcraft/storefront/internal/orders"
	"github.com/noxcraft/storefront/internal/payments"
)

type mockCatalog struct{ mock.Mock }

func (m *mockCatalog) GetProductsByIDs(ctx context.Context, ids []string) (map[string]catalog.Product, error) {
	args := m.Called(ctx, ids)
	if p, ok := args.Get(0).(map[string]catalog.Product); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockGateway struct{ mock.Mock }

func (m *mockGateway) CreateCheckoutSession(ctx context.Context, req payments.SessionRequest) (payments.Session, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(payments.Session), args.Error(1)
}

func (m *mockGateway) VerifyWebhook(payload []byte, signature string) (payments.Event, error) {
	args := m.Called(payload, signature)
	return args.Get(0).(payments.Event), args.Error(1)
}

var desk = catalog.Product{ID: "desk-1", Name: "Sunfall Desk", Price: decimal.RequireFromString("499.95"), StockQuantity: 3}

func newService(c *mockCatalog, gw *mockGateway) *Service {
	return NewService(c, gw, "aud", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func validRequest() Request {
	return Request{
		CustomerEmail:   "ada@example.com",
		CustomerName:    "Ada",
		ShippingAddress: json.RawMessage(`{"address":"1 Loop St"}`),
		Items:           json.RawMessage(`[{"product_id":"desk-1","quantity":2}]`),
	}
}

func TestStartCreatesSession(t *testing.T) {
	c, gw := new(mockCatalog), new(mockGateway)
	c.On("GetProductsByIDs", mock.Anything, []string{"desk-1"}).
		Return(map[string]catalog.Product{"desk-1": desk}, nil)

	var got payments.SessionRequest
	gw.On("CreateCheckoutSession", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(payments.SessionRequest) }).
		Return(payments.Session{ID: "cs_1", URL: "https://pay.example/cs_1"}, nil)

	res, err := newService(c, gw).Start(context.Background(), validRequest(), "https://shop.example.com")
	require.NoError(t, err)

	assert.Equal(t, "https://pay.example/cs_1", res.URL)
	assert.Equal(t, "cs_1", res.SessionID)
	assert.Equal(t, "aud", got.Currency)
	assert.Equal(t, "ada@example.com", got.CustomerEmail)
	assert.Equal(t, []payments.LineItem{{Name: "Sunfall Desk", UnitAmount: 49995, Quantity: 2}}, got.LineItems)
	assert.Equal(t, "https://shop.example.com/success?session_id={CHECKOUT_SESSION_ID}", got.SuccessURL)
	assert.Equal(t, "https://shop.example.com/cart", got.CancelURL)
	assert.Equal(t, "Ada", got.Metadata[orders.MetaCustomerName])
	assert.JSONEq(t, `{"address":"1 Loop St"}`, got.Metadata[orders.MetaShippingAddress])
	assert.JSONEq(t, `[{"product_id":"desk-1","quantity":2}]`, got.Metadata[orders.MetaItems])
	c.AssertExpectations(t)
	gw.AssertExpectations(t)
}

func TestStartLegacyProductID(t *testing.T) {
	c, gw := new(mockCatalog), new(mockGateway)
	c.On("GetProductsByIDs", mock.Anything, []string{"desk-1"}).
		Return(map[string]catalog.Product{"desk-1": desk}, nil)

	var got payments.SessionRequest
	gw.On("CreateCheckoutSession", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(payments.SessionRequest) }).
		Return(payments.Session{ID: "cs_2", URL: "https://pay.example/cs_2"}, nil)

	req := validRequest()
	req.Items = nil
	req.ProductID = "desk-1"

	_, err := newService(c, gw).Start(context.Background(), req, "https://shop.example.com")
	require.NoError(t, err)

	assert.Equal(t, int64(1), got.LineItems[0].Quantity)
	assert.Equal(t, "desk-1", got.Metadata[orders.MetaProductID])
	_, hasItems := got.Metadata[orders.MetaItems]
	assert.False(t, hasItems)
}

func TestStartMergesDuplicateLines(t *testing.T) {
	c, gw := new(mockCatalog), new(mockGateway)
	c.On("GetProductsByIDs", mock.Anything, []string{"desk-1"}).
		Return(map[string]catalog.Product{"desk-1": desk}, nil)

	req := validRequest()
	req.Items = json.RawMessage(`[{"product_id":"desk-1","quantity":2},{"product_id":"desk-1","quantity":2}]`)

	_, err := newService(c, gw).Start(context.Background(), req, "https://shop.example.com")
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.EqualError(t, err, "Insufficient stock for Sunfall Desk. Available: 3, Requested: 4")
	gw.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
}

func TestStartRejectsOverflowingMerge(t *testing.T) {
	big := strconv.Itoa(math.MaxInt)
	tests := []struct {
		name  string
		items string
	}{
		{"two max lines", `[{"product_id":"desk-1","quantity":` + big + `},{"product_id":"desk-1","quantity":` + big + `}]`},
		{"max plus one", `[{"product_id":"desk-1","quantity":` + big + `},{"product_id":"desk-1","quantity":1}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, gw := new(mockCatalog), new(mockGateway)
			req := validRequest()
			req.Items = json.RawMessage(tt.items)

			_, err := newService(c, gw).Start(context.Background(), req, "https://shop.example.com")

			assert.ErrorIs(t, err, ErrInvalidItem)
			c.AssertNotCalled(t, "GetProductsByIDs", mock.Anything, mock.Anything)
			gw.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
		})
	}
}

func TestMergeItems(t *testing.T) {
	got, err := mergeItems([]orders.LineItem{{ProductID: "a", Quantity: 1}, {ProductID: "b", Quantity: 2}, {ProductID: "a", Quantity: 3}})
	require.NoError(t, err)
	assert.Equal(t, []orders.LineItem{{ProductID: "a", Quantity: 4}, {ProductID: "b", Quantity: 2}}, got)

	_, err = mergeItems([]orders.LineItem{{ProductID: "a", Quantity: math.MaxInt}, {ProductID: "a", Quantity: math.MaxInt}})
	assert.ErrorIs(t, err, ErrInvalidItem)

	_, err = mergeItems([]orders.LineItem{{ProductID: "a", Quantity: -1}})
	assert.ErrorIs(t, err, ErrInvalidItem)
}

func TestStartRejectsBeforeAnyCall(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *Request)
		wantErr error
	}{
		{"no items and no product id", func(r *Request) { r.Items = nil }, ErrMissingItems},
		{"items not an array", func(r *Request) { r.Items = json.RawMessage(`{"product_id":"desk-1"}`) }, ErrMissingItems},
		{"empty items", func(r *Request) { r.Items = json.RawMessage(`[]`) }, ErrEmptyCart},
		{"zero quantity", func(r *Request) { r.Items = json.RawMessage(`[{"product_id":"desk-1","quantity":0}]`) }, ErrInvalidItem},
		{"blank product id", func(r *Request) { r.Items = json.RawMessage(`[{"product_id":" ","quantity":1}]`) }, ErrInvalidItem},
		{"missing email", func(r *Request) { r.CustomerEmail = "" }, ErrMissingFields},
		{"missing name", func(r *Request) { r.CustomerName = "  " }, ErrMissingFields},
		{"missing address", func(r *Request) { r.ShippingAddress = nil }, ErrMissingFields},
		{"null address", func(r *Request) { r.ShippingAddress = json.RawMessage(`null`) }, ErrMissingFields},
		{"string address", func(r *Request) { r.ShippingAddress = json.RawMessage(`"1 Loop St"`) }, ErrInvalidShippingAddress},
		{"array address", func(r *Request) { r.ShippingAddress = json.RawMessage(`["1 Loop St"]`) }, ErrInvalidShippingAddress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, gw := new(mockCatalog), new(mockGateway)
			req := validRequest()
			tt.mutate(&req)

			_, err := newService(c, gw).Start(context.Background(), req, "https://shop.example.com")

			assert.ErrorIs(t, err, tt.wantErr)
			c.AssertNotCalled(t, "GetProductsByIDs", mock.Anything, mock.Anything)
			gw.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
		})
	}
}

func TestStartCatalogRejections(t *testing.T) {
	t.Run("unknown product", func(t *testing.T) {
		c, gw := new(mockCatalog), new(mockGateway)
		c.On("GetProductsByIDs", mock.Anything, []string{"desk-1"}).
			Return(map[string]catalog.Product{}, nil)

		_, err := newService(c, gw).Start(context.Background(), validRequest(), "")
		assert.ErrorIs(t, err, ErrProductNotFound)
		assert.EqualError(t, err, "Product desk-1 not found")
		gw.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
	})

	t.Run("insufficient stock names product", func(t *testing.T) {
		c, gw := new(mockCatalog), new(mockGateway)
		low := desk
		low.StockQuantity = 1
		c.On("GetProductsByIDs", mock.Anything, []string{"desk-1"}).
			Return(map[string]catalog.Product{"desk-1": low}, nil)

		_, err := newService(c, gw).Start(context.Background(), validRequest(), "")
		assert.ErrorIs(t, err, ErrInsufficientStock)
		assert.EqualError(t, err, "Insufficient stock for Sunfall Desk. Available: 1, Requested: 2")
		gw.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
	})

	t.Run("catalog failure is a server error", func(t *testing.T) {
		c, gw := new(mockCatalog), new(mockGateway)
		c.On("GetProductsByIDs", mock.Anything, []string{"desk-1"}).
			Return(nil, errors.New("connection refused"))

		_, err := newService(c, gw).Start(context.Background(), validRequest(), "")
		require.Error(t, err)
		var ce *Error
		assert.False(t, errors.As(err, &ce))
	})
}

func TestStartGatewayFailure(t *testing.T) {
	c, gw := new(mockCatalog), new(mockGateway)
	c.On("GetProductsByIDs", mock.Anything, []string{"desk-1"}).
		Return(map[string]catalog.Product{"desk-1": desk}, nil)
	gw.On("CreateCheckoutSession", mock.Anything, mock.Anything).
		Return(payments.Session{}, errors.New("stripe down"))

	_, err := newService(c, gw).Start(context.Background(), validRequest(), "")
	require.Error(t, err)
	var ce *Error
	assert.False(t, errors.As(err, &ce))
}

func TestStartFromCart(t *testing.T) {
	c, gw := new(mockCatalog), new(mockGateway)
	lamp := catalog.Product{ID: "lamp-1", Name: "Dune Lamp", Price: decimal.RequireFromString("89.5"), StockQuantity: 10}
	c.On("GetProductsByIDs", mock.Anything, []string{"desk-1", "lamp-1"}).
		Return(map[string]catalog.Product{"desk-1": desk, "lamp-1": lamp}, nil)

	var got payments.SessionRequest
	gw.On("CreateCheckoutSession", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(payments.SessionRequest) }).
		Return(payments.Session{ID: "cs_3", URL: "https://pay.example/cs_3"}, nil)

	sc := cart.New()
	sc.Add(desk, 5) // capped at stock 3
	sc.Add(lamp, 2)
	req, err := RequestFromCart(sc, "ada@example.com", "Ada", orders.ShippingAddress{"address": "1 Loop St"})
	require.NoError(t, err)

	_, err = newService(c, gw).Start(context.Background(), req, "https://shop.example.com")
	require.NoError(t, err)
	assert.Equal(t, []payments.LineItem{
		{Name: "Sunfall Desk", UnitAmount: 49995, Quantity: 3},
		{Name: "Dune Lamp", UnitAmount: 8950, Quantity: 2},
	}, got.LineItems)
}

func TestRequestFromEmptyCart(t *testing.T) {
	req, err := RequestFromCart(cart.New(), "ada@example.com", "Ada", orders.ShippingAddress{"address": "x"})
	require.NoError(t, err)

	_, err = newService(new(mockCatalog), new(mockGateway)).Start(context.Background(), req, "")
	assert.ErrorIs(t, err, ErrEmptyCart)
}
