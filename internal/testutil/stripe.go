// Package testutil builds signed payment-processor webhook fixtures for tests.
package testutil

import (
	"encoding/json"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"
)

// SessionFixture describes the checkout session object inside a fixture event.
type SessionFixture struct {
	ID             string            `json:"id"`
	Object         string            `json:"object"`
	CustomerEmail  string            `json:"customer_email,omitempty"`
	CustomerDetail map[string]string `json:"customer_details,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// EventPayload renders a webhook event body of the given type carrying obj.
func EventPayload(eventID, eventType string, obj any) []byte {
	b, err := json.Marshal(map[string]any{
		"id":          eventID,
		"object":      "event",
		"type":        eventType,
		"api_version": "2024-11-20.acacia",
		"created":     time.Now().Unix(),
		"data":        map[string]any{"object": obj},
	})
	if err != nil {
		panic(err)
	}
	return b
}

// Sign returns the Stripe-Signature header value for payload under secret.
func Sign(payload []byte, secret string) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Header
}
