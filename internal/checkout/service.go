// Package checkout validates an order request against the catalog and opens a
// hosted payment session for it. It never writes to the catalog: stock is only
// checked here, and decremented once payment is confirmed.
package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/noxcraft/storefront/internal/catalog"
	"github.com/noxcraft/storefront/internal/orders"
	"github.com/noxcraft/storefront/internal/payments"
	"github.com/noxcraft/storefront/internal/telemetry"
)

// Client-side rejections. Every one of them happens before the payment processor is called.
var (
	ErrMissingItems           = errors.New("missing required fields: items (array of {product_id, quantity}) or product_id")
	ErrEmptyCart              = errors.New("cart is empty")
	ErrInvalidItem            = errors.New("invalid cart item")
	ErrMissingFields          = errors.New("missing required fields: customer_email, customer_name, shipping_address")
	ErrInvalidShippingAddress = errors.New("shipping_address must be an object")
	ErrProductNotFound        = errors.New("product not found")
	ErrInsufficientStock      = errors.New("insufficient stock")
)

// Error carries a caller-facing message for one of the sentinel errors above.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Kind }

func reject(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Request is the checkout body. Items wins over the legacy ProductID.
type Request struct {
	CustomerEmail   string          `json:"customer_email"`
	CustomerName    string          `json:"customer_name"`
	ShippingAddress json.RawMessage `json:"shipping_address"`
	Items           json.RawMessage `json:"items,omitempty"`
	ProductID       string          `json:"product_id,omitempty"`
}

type Result struct {
	SessionID string `json:"-"`
	URL       string `json:"url"`
}

type Catalog interface {
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]catalog.Product, error)
}

type Service struct {
	catalog  Catalog
	payments payments.Gateway
	currency string
	log      *slog.Logger

	created  metric.Int64Counter
	rejected metric.Int64Counter
}

func NewService(c Catalog, gw payments.Gateway, currency string, log *slog.Logger) *Service {
	meter := otel.Meter(telemetry.InstrumentationName)
	created, _ := meter.Int64Counter("checkout.sessions.created")
	rejected, _ := meter.Int64Counter("checkout.rejected")
	return &Service{
		catalog:  c,
		payments: gw,
		currency: currency,
		log:      log,
		created:  created,
		rejected: rejected,
	}
}

// Start validates req and creates a hosted payment session. baseURL is the
// public origin the processor redirects back to.
func (s *Service) Start(ctx context.Context, req Request, baseURL string) (Result, error) {
	ctx, span := otel.Tracer(telemetry.InstrumentationName).Start(ctx, "checkout.start")
	defer span.End()

	res, err := s.start(ctx, req, baseURL)
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", ce.Kind.Error())))
			s.log.InfoContext(ctx, "checkout rejected", "reason", ce.Msg)
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.log.ErrorContext(ctx, "checkout failed", "err", err)
		}
		return Result{}, err
	}
	span.SetAttributes(attribute.String("checkout.session_id", res.SessionID))
	s.created.Add(ctx, 1)
	s.log.InfoContext(ctx, "checkout session created", "session_id", res.SessionID)
	return res, nil
}

func (s *Service) start(ctx context.Context, req Request, baseURL string) (Result, error) {
	// 1) resolve items
	src, err := resolveItems(req)
	if err != nil {
		return Result{}, err
	}

	// 2) required fields
	email := strings.TrimSpace(req.CustomerEmail)
	name := strings.TrimSpace(req.CustomerName)
	if email == "" || name == "" || isAbsent(req.ShippingAddress) {
		return Result{}, reject(ErrMissingFields, "Missing required fields: customer_email, customer_name, shipping_address")
	}

	// 3) shipping address harus object
	if !orders.IsJSONObject(req.ShippingAddress) {
		return Result{}, reject(ErrInvalidShippingAddress, "shipping_address must be an object")
	}
	var addr orders.ShippingAddress
	if err := json.Unmarshal(req.ShippingAddress, &addr); err != nil {
		return Result{}, reject(ErrInvalidShippingAddress, "shipping_address must be an object")
	}

	// 4) stock check, satu query untuk semua product (tanpa reservasi)
	items, err := mergeItems(src.Items())
	if err != nil {
		return Result{}, err
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.catalog.GetProductsByIDs(ctx, ids)
	if err != nil {
		return Result{}, fmt.Errorf("fetch products: %w", err)
	}

	lineItems := make([]payments.LineItem, 0, len(items))
	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok {
			return Result{}, reject(ErrProductNotFound, "Product %s not found", it.ProductID)
		}
		if p.StockQuantity < it.Quantity {
			return Result{}, reject(ErrInsufficientStock, "Insufficient stock for %s. Available: %d, Requested: %d",
				p.Name, p.StockQuantity, it.Quantity)
		}
		lineItems = append(lineItems, payments.LineItem{
			Name:       p.Name,
			UnitAmount: p.UnitAmount(),
			Quantity:   int64(it.Quantity),
		})
	}

	// 5) hosted session
	if _, legacy := src.(orders.LegacySingleItem); !legacy {
		src = orders.ItemList(items)
	}
	md, err := orders.Intent{CustomerName: name, ShippingAddress: addr, Source: src}.Encode()
	if err != nil {
		return Result{}, err
	}
	sess, err := s.payments.CreateCheckoutSession(ctx, payments.SessionRequest{
		Currency:      s.currency,
		CustomerEmail: email,
		LineItems:     lineItems,
		SuccessURL:    baseURL + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     baseURL + "/cart",
		Metadata:      md,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{SessionID: sess.ID, URL: sess.URL}, nil
}

func resolveItems(req Request) (orders.ItemSource, error) {
	raw := bytes.TrimSpace(req.Items)
	if len(raw) > 0 && raw[0] == '[' {
		var list []orders.LineItem
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, reject(ErrInvalidItem, "items must be an array of {product_id, quantity}")
		}
		if len(list) == 0 {
			return nil, reject(ErrEmptyCart, "Cart is empty")
		}
		for _, it := range list {
			if strings.TrimSpace(it.ProductID) == "" {
				return nil, reject(ErrInvalidItem, "Every item needs a product_id")
			}
			if it.Quantity <= 0 {
				return nil, reject(ErrInvalidItem, "Invalid quantity %d for product %s", it.Quantity, it.ProductID)
			}
		}
		return orders.ItemList(list), nil
	}
	if pid := strings.TrimSpace(req.ProductID); pid != "" {
		return orders.LegacySingleItem{ProductID: pid}, nil
	}
	return nil, reject(ErrMissingItems, "Missing required fields: items (array of {product_id, quantity}) or product_id")
}

// mergeItems sums quantities of repeated product ids, keeping first-seen order.
// A sum that would overflow int is rejected as an invalid item.
func mergeItems(items []orders.LineItem) ([]orders.LineItem, error) {
	idx := make(map[string]int, len(items))
	out := make([]orders.LineItem, 0, len(items))
	for _, it := range items {
		if i, ok := idx[it.ProductID]; ok {
			if out[i].Quantity > math.MaxInt-it.Quantity {
				return nil, reject(ErrInvalidItem, "Invalid quantity for product %s", it.ProductID)
			}
			out[i].Quantity += it.Quantity
			continue
		}
		idx[it.ProductID] = len(out)
		out = append(out, it)
	}
	for _, it := range out {
		if it.Quantity <= 0 {
			return nil, reject(ErrInvalidItem, "Invalid quantity %d for product %s", it.Quantity, it.ProductID)
		}
	}
	return out, nil
}

func isAbsent(raw json.RawMessage) bool {
	b := bytes.TrimSpace(raw)
	return len(b) == 0 || bytes.Equal(b, []byte("null")) || bytes.Equal(b, []byte(`""`))
}
