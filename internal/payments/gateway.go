// Package payments talks to the hosted payment processor: it opens hosted
// checkout sessions and authenticates the webhook events sent back.
package payments

import (
	"context"
	"encoding/json"
	"errors"
)

const EventCheckoutSessionCompleted = "checkout.session.completed"

var (
	ErrNotConfigured        = errors.New("payment processor credentials not configured")
	ErrWebhookSecretMissing = errors.New("webhook secret not configured")
	ErrInvalidSignature     = errors.New("webhook signature verification failed")
)

type LineItem struct {
	Name       string
	UnitAmount int64 // minor units
	Quantity   int64
}

type SessionRequest struct {
	Currency      string
	CustomerEmail string
	LineItems     []LineItem
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

type Session struct {
	ID  string
	URL string
}

// Event is a verified webhook event. Data holds the raw event object.
type Event struct {
	ID   string
	Type string
	Data json.RawMessage
}

// CheckoutSession is the part of a completed session the receiver needs.
type CheckoutSession struct {
	ID            string
	CustomerEmail string
	Metadata      map[string]string
}

type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (Session, error)
	// VerifyWebhook authenticates payload against the signature header and
	// parses it. Returns ErrWebhookSecretMissing or ErrInvalidSignature.
	VerifyWebhook(payload []byte, signature string) (Event, error)
}
