package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/noxcraft/storefront/internal/orders"
	"github.com/noxcraft/storefront/internal/projector"
	"github.com/noxcraft/storefront/internal/redisx"
)

type OrdersHandler struct {
	Store orders.Store
	Redis redis.Cmdable // optional
	Log   *slog.Logger
}

type SessionOrdersResp struct {
	projector.SessionStatus
	Cached bool           `json:"cached"`
	Orders []orders.Order `json:"orders,omitempty"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/orders/session/{sessionID}", h.getBySession)
}

func (h *OrdersHandler) getBySession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	if h.Redis != nil {
		st, ok, err := projector.Lookup(ctx, h.Redis, sessionID)
		if err != nil {
			h.Log.WarnContext(ctx, "status cache lookup failed", "session_id", sessionID, "err", err)
		} else if ok {
			writeJSON(w, http.StatusOK, SessionOrdersResp{SessionStatus: st, Cached: true})
			return
		}
	}

	// 2) fallback DB
	list, err := h.Store.ListBySession(ctx, sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error fetching orders")
		return
	}
	if len(list) == 0 {
		// webhook belum datang atau session tidak dikenal
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	st := projector.SessionStatus{
		SessionID: sessionID,
		Status:    list[0].Status,
		UpdatedAt: list[0].CreatedAt,
	}
	for _, o := range list {
		st.OrderIDs = append(st.OrderIDs, o.ID)
	}
	if h.Redis != nil {
		b, _ := json.Marshal(st)
		_ = h.Redis.Set(ctx, fmt.Sprintf(redisx.KeyOrderStatus, sessionID), b, redisx.TTLStatusCache).Err()
	}
	writeJSON(w, http.StatusOK, SessionOrdersResp{SessionStatus: st, Orders: list})
}
