// Package payment charges travelers through Stripe PaymentIntents and
// verifies the webhooks Stripe sends back.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/iliyamo/tour-experience-booking/internal/config"
)

// ErrPaymentFailed wraps every provider-side refusal (declined card,
// invalid payment method, provider outage).
var ErrPaymentFailed = errors.New("payment failed")

// ErrPaymentMethodRequired is returned when a charge carries no payment
// method to confirm with.
var ErrPaymentMethodRequired = errors.New("payment method required")

// ChargeRequest describes one booking payment.
type ChargeRequest struct {
	AmountCents     int64
	PaymentMethodID string
	ExperienceID    uint64
	DateID          uint64
	TravelerID      uint64
	GuestCount      int
}

// Intent is the provider's view of a payment.  ClientSecret lets the
// client finish an intent that needs customer action (3-D Secure).
type Intent struct {
	ID           string
	Status       string
	Succeeded    bool
	ClientSecret string
}

// NeedsAction reports whether the customer has to complete the payment.
func (i *Intent) NeedsAction() bool {
	return i.Status == string(stripe.PaymentIntentStatusRequiresAction)
}

// Gateway is the payment provider used by the booking service.
type Gateway interface {
	CreateIntent(ctx context.Context, req ChargeRequest) (*Intent, error)
	// Refund returns the money of a succeeded intent.
	Refund(ctx context.Context, intentID string) error
	// CancelIntent voids an intent that has not been captured yet.
	CancelIntent(ctx context.Context, intentID string) error
}

// StripeGateway implements Gateway on stripe-go.
type StripeGateway struct {
	api       *client.API
	currency  string
	returnURL string
}

// NewStripeGateway builds a gateway talking to the live Stripe API.
func NewStripeGateway(cfg config.PaymentConfig) *StripeGateway {
	return NewStripeGatewayWithBackends(cfg, nil)
}

// NewStripeGatewayWithBackends lets callers point the client at another
// backend, such as a local test server.
func NewStripeGatewayWithBackends(cfg config.PaymentConfig, backends *stripe.Backends) *StripeGateway {
	currency := cfg.Currency
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &StripeGateway{
		api:       client.New(cfg.SecretKey, backends),
		currency:  currency,
		returnURL: cfg.ReturnURL,
	}
}

// CreateIntent creates and confirms an intent for the given payment
// method in one call.
func (g *StripeGateway) CreateIntent(ctx context.Context, req ChargeRequest) (*Intent, error) {
	if req.PaymentMethodID == "" {
		return nil, ErrPaymentMethodRequired
	}
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.AmountCents),
		Currency:      stripe.String(g.currency),
		PaymentMethod: stripe.String(req.PaymentMethodID),
		Confirm:       stripe.Bool(true),
	}
	params.Context = ctx
	if g.returnURL != "" {
		params.ReturnURL = stripe.String(g.returnURL)
	}
	params.AddMetadata("experience_id", strconv.FormatUint(req.ExperienceID, 10))
	params.AddMetadata("date_id", strconv.FormatUint(req.DateID, 10))
	params.AddMetadata("traveler_id", strconv.FormatUint(req.TravelerID, 10))
	params.AddMetadata("guest_count", strconv.Itoa(req.GuestCount))
	params.SetIdempotencyKey(uuid.NewString())

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, providerError(err)
	}
	return &Intent{
		ID:           pi.ID,
		Status:       string(pi.Status),
		Succeeded:    pi.Status == stripe.PaymentIntentStatusSucceeded,
		ClientSecret: pi.ClientSecret,
	}, nil
}

func (g *StripeGateway) Refund(ctx context.Context, intentID string) error {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(intentID)}
	params.Context = ctx
	if _, err := g.api.Refunds.New(params); err != nil {
		return providerError(err)
	}
	return nil
}

func (g *StripeGateway) CancelIntent(ctx context.Context, intentID string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	if _, err := g.api.PaymentIntents.Cancel(intentID, params); err != nil {
		return providerError(err)
	}
	return nil
}

func providerError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.Msg != "" {
		return fmt.Errorf("%w: %s", ErrPaymentFailed, se.Msg)
	}
	return fmt.Errorf("%w: %v", ErrPaymentFailed, err)
}
