package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noxcraft/storefront/internal/checkout"
	"github.com/noxcraft/storefront/internal/fulfillment"
	"github.com/noxcraft/storefront/internal/payments"
)

// max body processor webhook & checkout request
const maxBodyBytes = 1 << 20

type CheckoutStarter interface {
	Start(ctx context.Context, req checkout.Request, baseURL string) (checkout.Result, error)
}

type WebhookReceiver interface {
	Receive(ctx context.Context, payload []byte, signature string) (fulfillment.Ack, error)
}

type CheckoutHandler struct {
	Checkout CheckoutStarter
	Webhooks WebhookReceiver
	BaseURL  string // kosong -> origin dari request
	Log      *slog.Logger
}

func (h *CheckoutHandler) Register(r chi.Router) {
	r.Post("/api/checkout", h.createSession)
	r.Post("/api/webhooks/stripe", h.stripeWebhook)
}

func (h *CheckoutHandler) createSession(w http.ResponseWriter, r *http.Request) {
	var req checkout.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res, err := h.Checkout.Start(ctx, req, h.baseURL(r))
	if err != nil {
		writeError(w, checkoutStatus(err), checkoutMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func checkoutStatus(err error) int {
	var ce *checkout.Error
	switch {
	case errors.As(err, &ce) && errors.Is(err, checkout.ErrProductNotFound):
		return http.StatusNotFound
	case errors.As(err, &ce):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func checkoutMessage(err error) string {
	var ce *checkout.Error
	if errors.As(err, &ce) {
		return ce.Msg
	}
	return "Internal server error"
}

func (h *CheckoutHandler) baseURL(r *http.Request) string {
	if h.BaseURL != "" {
		return h.BaseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + r.Host
}

func (h *CheckoutHandler) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	// body mentah wajib utuh untuk verifikasi signature
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read body")
		return
	}

	ack, err := h.Webhooks.Receive(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, fulfillment.ErrMissingSignature):
		writeError(w, http.StatusBadRequest, "Missing stripe-signature header")
	case errors.Is(err, payments.ErrWebhookSecretMissing):
		writeError(w, http.StatusInternalServerError, "Webhook secret not configured")
	case errors.Is(err, payments.ErrInvalidSignature):
		writeError(w, http.StatusBadRequest, "Webhook signature verification failed")
	case err != nil:
		h.Log.ErrorContext(r.Context(), "webhook failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	default:
		writeJSON(w, http.StatusOK, ack)
	}
}
