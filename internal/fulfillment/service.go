// Package fulfillment receives payment confirmations from the processor and turns
// each completed checkout session into stock decrements and order rows.
//
// A session is applied in one transaction together with its entry in the
// processed-session ledger, so a redelivered event is acknowledged without
// touching stock again and a failure part way leaves nothing behind.
// Once the signature is verified the sender always gets an acknowledgement;
// processing problems are reported in the log and in Ack.Error only.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	kafkax "github.com/noxcraft/storefront/internal/kafka"
	"github.com/noxcraft/storefront/internal/orders"
	"github.com/noxcraft/storefront/internal/payments"
	"github.com/noxcraft/storefront/internal/telemetry"
)

var (
	ErrMissingSignature = errors.New("missing stripe-signature header")
	ErrMissingEmail     = errors.New("missing customer_email")
)

// Ack is the body returned to the sender once the event is authentic.
type Ack struct {
	Received bool   `json:"received"`
	Error    string `json:"error,omitempty"`
}

// Dedup is the fast-path memory of applied sessions in front of the ledger.
type Dedup interface {
	Seen(ctx context.Context, sessionID string) (bool, error)
	Mark(ctx context.Context, sessionID string) error
}

type Service struct {
	Store     orders.Store
	Payments  payments.Gateway
	Dedup     Dedup            // optional
	Publisher kafkax.Publisher // optional
	Producer  string           // envelope producer name
	Log       *slog.Logger

	events  metric.Int64Counter
	created metric.Int64Counter
}

func (s *Service) init() {
	if s.events != nil {
		return
	}
	meter := otel.Meter(telemetry.InstrumentationName)
	s.events, _ = meter.Int64Counter("webhook.events")
	s.created, _ = meter.Int64Counter("fulfillment.orders.created")
}

// Receive authenticates and processes one webhook delivery. A non-nil error
// means the delivery was rejected before verification succeeded.
func (s *Service) Receive(ctx context.Context, payload []byte, signature string) (Ack, error) {
	s.init()
	if signature == "" {
		s.Log.ErrorContext(ctx, "missing stripe-signature header")
		return Ack{}, ErrMissingSignature
	}
	ev, err := s.Payments.VerifyWebhook(payload, signature)
	if err != nil {
		s.Log.ErrorContext(ctx, "webhook rejected", "err", err)
		return Ack{}, err
	}
	s.Log.InfoContext(ctx, "webhook verified", "event_type", ev.Type, "event_id", ev.ID)
	s.events.Add(ctx, 1, metric.WithAttributes(attribute.String("type", ev.Type)))

	if ev.Type != payments.EventCheckoutSessionCompleted {
		s.Log.InfoContext(ctx, "unhandled event type", "event_type", ev.Type, "event_id", ev.ID)
		return Ack{Received: true}, nil
	}

	if err := s.handleCompleted(ctx, ev); err != nil {
		level := slog.LevelError
		if isSoft(err) {
			level = slog.LevelWarn
		}
		s.Log.Log(ctx, level, "checkout.session.completed not applied", "event_id", ev.ID, "err", err)
		return Ack{Received: true, Error: err.Error()}, nil
	}
	return Ack{Received: true}, nil
}

// soft failures: nothing to apply, nothing went wrong on our side.
func isSoft(err error) bool {
	return errors.Is(err, ErrMissingEmail) ||
		errors.Is(err, orders.ErrMissingItems) ||
		errors.Is(err, orders.ErrEmptyItems)
}

func (s *Service) handleCompleted(ctx context.Context, ev payments.Event) error {
	ctx, span := otel.Tracer(telemetry.InstrumentationName).Start(ctx, "fulfillment.session_completed",
		trace.WithAttributes(attribute.String("webhook.event_id", ev.ID)))
	defer span.End()

	err := s.apply(ctx, ev)
	if err != nil && !isSoft(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *Service) apply(ctx context.Context, ev payments.Event) error {
	// 1) decode session + metadata
	cs, err := payments.DecodeCheckoutSession(ev.Data)
	if err != nil {
		return err
	}
	log := s.Log.With("session_id", cs.ID, "event_id", ev.ID)
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("checkout.session_id", cs.ID))

	if cs.CustomerEmail == "" {
		return ErrMissingEmail
	}
	addr, degraded := orders.DecodeShippingAddress(cs.Metadata[orders.MetaShippingAddress])
	if degraded {
		log.WarnContext(ctx, "shipping_address is not a JSON object, stored as plain address")
	}
	src, err := orders.DecodeItems(cs.Metadata)
	if err != nil {
		return err
	}
	items := src.Items()

	// 2) dedup via Redis (fast path, ledger di DB tetap jadi kebenaran)
	if s.Dedup != nil {
		if seen, err := s.Dedup.Seen(ctx, cs.ID); err != nil {
			log.WarnContext(ctx, "dedup lookup failed", "err", err)
		} else if seen {
			log.InfoContext(ctx, "session already fulfilled")
			return nil
		}
	}

	// 3) apply atomik: ledger + stok + order
	var (
		created   []orders.Order
		duplicate bool
	)
	err = s.Store.InTx(ctx, func(tx orders.Tx) error {
		created = created[:0]
		claimed, err := tx.ClaimSession(ctx, cs.ID, ev.ID)
		if err != nil {
			return fmt.Errorf("claim session: %w", err)
		}
		if !claimed {
			duplicate = true
			return nil
		}
		for _, it := range items {
			stock, err := tx.LockStock(ctx, it.ProductID)
			if err != nil {
				return fmt.Errorf("fetch product %s: %w", it.ProductID, err)
			}
			next := orders.DecrementStock(stock, it.Quantity)
			if err := tx.SetStock(ctx, it.ProductID, next); err != nil {
				return fmt.Errorf("decrement stock for product %s: %w", it.ProductID, err)
			}
			log.DebugContext(ctx, "stock decremented", "product_id", it.ProductID, "from", stock, "to", next, "quantity", it.Quantity)

			o := orders.Order{
				ProductID:       it.ProductID,
				Quantity:        it.Quantity,
				CustomerEmail:   cs.CustomerEmail,
				CustomerName:    cs.Metadata[orders.MetaCustomerName],
				ShippingAddress: addr,
				StripePaymentID: cs.ID,
				Status:          orders.StatusCompleted,
			}
			if err := tx.InsertOrder(ctx, &o); err != nil {
				return fmt.Errorf("insert order for product %s: %w", it.ProductID, err)
			}
			created = append(created, o)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.Dedup != nil {
		if err := s.Dedup.Mark(ctx, cs.ID); err != nil {
			log.WarnContext(ctx, "dedup mark failed", "err", err)
		}
	}
	if duplicate {
		log.InfoContext(ctx, "session already fulfilled")
		return nil
	}

	s.created.Add(ctx, int64(len(created)))
	log.InfoContext(ctx, "checkout session fulfilled", "orders", len(created), "customer_email", cs.CustomerEmail)
	s.publishCompleted(ctx, cs, items, created)
	return nil
}

func (s *Service) publishCompleted(ctx context.Context, cs payments.CheckoutSession, items []orders.LineItem, created []orders.Order) {
	if s.Publisher == nil {
		return
	}
	ids := make([]string, 0, len(created))
	for _, o := range created {
		ids = append(ids, o.ID)
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderCompleted,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.Producer,
		CorrelationID: cs.ID,
		Payload: kafkax.MustMarshal(orders.OrderCompletedPayload{
			SessionID:     cs.ID,
			OrderIDs:      ids,
			CustomerEmail: cs.CustomerEmail,
			Items:         items,
		}),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		ev.TraceID = sc.TraceID().String()
	}
	s.Publisher.Publish(orders.PartitionKey(cs.ID), kafkax.MustMarshal(ev),
		kafkax.EventHeaders(orders.EventOrderCompleted, 1)...)
}
