package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
)

// StripeProvider creates Stripe Checkout sessions in payment mode
type StripeProvider struct {
	client session.Client
}

// NewStripeProvider creates a provider using the given secret key
func NewStripeProvider(secretKey string) *StripeProvider {
	return newStripeProvider(secretKey, stripe.GetBackend(stripe.APIBackend))
}

func newStripeProvider(secretKey string, backend stripe.Backend) *StripeProvider {
	return &StripeProvider{
		client: session.Client{B: backend, Key: secretKey},
	}
}

// CreateSession opens a checkout session for one item at a fixed price
func (p *StripeProvider) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.Reference),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(req.UnitAmount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := p.client.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("stripe create session: %w", err)
	}
	return fromStripe(s), nil
}

// GetSession retrieves a session so its payment state can be verified
func (p *StripeProvider) GetSession(ctx context.Context, sessionID string) (Session, error) {
	s, err := p.client.Get(sessionID, &stripe.CheckoutSessionParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return Session{}, fmt.Errorf("stripe session %s: %w", sessionID, ErrSessionNotFound)
		}
		return Session{}, fmt.Errorf("stripe get session: %w", err)
	}
	return fromStripe(s), nil
}

func fromStripe(s *stripe.CheckoutSession) Session {
	return Session{
		ID:          s.ID,
		URL:         s.URL,
		Paid:        s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotal: s.AmountTotal,
		Currency:    strings.ToUpper(string(s.Currency)),
		Metadata:    s.Metadata,
	}
}
