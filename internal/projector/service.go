// Package projector keeps a Redis read model of fulfilled checkouts, fed by
// OrderCompleted events, so the success page can poll without hitting Postgres.
package projector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/noxcraft/storefront/internal/kafka"
	"github.com/noxcraft/storefront/internal/orders"
	"github.com/noxcraft/storefront/internal/redisx"
)

// SessionStatus is the cached view of one checkout session.
type SessionStatus struct {
	SessionID string        `json:"session_id"`
	Status    orders.Status `json:"status"`
	OrderIDs  []string      `json:"order_ids"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type Service struct {
	Redis       redis.Cmdable
	ServiceName string
	Log         *slog.Logger
}

func (s *Service) dedup() *redisx.Dedup {
	return &redisx.Dedup{Redis: s.Redis, Service: s.ServiceName}
}

// HandleOrderCompleted: dipasang sebagai handler consumer.
func (s *Service) HandleOrderCompleted(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// pesan rusak tidak akan pernah sukses, commit saja
		s.Log.Error("drop undecodable message", "offset", m.Offset, "err", err)
		return nil
	}
	if env.EventType != orders.EventOrderCompleted {
		return nil
	} // ignore

	// 2) dedup via Redis (pakai event_id)
	d := s.dedup()
	if seen, _ := d.Seen(ctx, env.EventID); seen {
		return nil
	}

	// 3) decode payload
	p, err := kafkax.UnwrapPayload[orders.OrderCompletedPayload](env.Payload)
	if err != nil {
		s.Log.Error("drop OrderCompleted with bad payload", "event_id", env.EventID, "err", err)
		return nil
	}

	// 4) tulis read model
	st := SessionStatus{
		SessionID: p.SessionID,
		Status:    orders.StatusCompleted,
		OrderIDs:  p.OrderIDs,
		UpdatedAt: env.OccurredAt,
	}
	if err := s.Redis.Set(ctx, fmt.Sprintf(redisx.KeyOrderStatus, p.SessionID),
		kafkax.MustMarshal(st), redisx.TTLStatusCache).Err(); err != nil {
		return fmt.Errorf("cache status: %w", err)
	}
	if err := d.Mark(ctx, env.EventID); err != nil {
		s.Log.Warn("dedup mark failed", "event_id", env.EventID, "err", err)
	}
	s.Log.Info("session status cached", "session_id", p.SessionID, "orders", len(p.OrderIDs), "trace_id", env.TraceID)
	return nil
}

// Lookup reads the cached status. ok is false on a cache miss.
func Lookup(ctx context.Context, rdb redis.Cmdable, sessionID string) (st SessionStatus, ok bool, err error) {
	b, err := rdb.Get(ctx, fmt.Sprintf(redisx.KeyOrderStatus, sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return SessionStatus{}, false, nil
	}
	if err != nil {
		return SessionStatus{}, false, err
	}
	if err := json.Unmarshal(b, &st); err != nil {
		return SessionStatus{}, false, fmt.Errorf("decode cached status: %w", err)
	}
	return st, true, nil
}
