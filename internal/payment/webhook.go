package payment

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// ErrInvalidSignature is returned for webhooks that fail verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Webhook event types the booking service reacts to.
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
	EventIntentCanceled  = "payment_intent.canceled"
)

// Event is a verified webhook reduced to what reconciliation needs.
type Event struct {
	ID       string
	Type     string
	IntentID string
}

// WebhookVerifier checks Stripe-Signature headers with the endpoint secret.
type WebhookVerifier struct {
	secret string
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

// Parse verifies payload against the Stripe-Signature header and decodes
// it.  Events that are not about payment intents come back with an empty
// IntentID.
func (v *WebhookVerifier) Parse(payload []byte, signature string) (*Event, error) {
	if v.secret == "" {
		return nil, ErrInvalidSignature
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, v.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	switch out.Type {
	case EventIntentSucceeded, EventIntentFailed, EventIntentCanceled:
		var pi stripe.PaymentIntent
		if ev.Data == nil {
			return nil, errors.New("webhook event without data")
		}
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}
		out.IntentID = pi.ID
	}
	return out, nil
}
