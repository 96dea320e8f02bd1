// Package payments talks to the hosted checkout provider. The auction core
// only ever sees the Provider interface; the concrete provider is picked
// from configuration at startup.
package payments

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// SessionIDPlaceholder is substituted by the provider with the real session id
// in the success URL.
const SessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"

// MetadataAuctionID is the metadata key binding a session to an auction
const MetadataAuctionID = "auction_id"

var ErrSessionNotFound = errors.New("checkout session not found")

// SessionRequest describes a single-item hosted checkout
type SessionRequest struct {
	Reference   string
	Description string
	Currency    string
	UnitAmount  int64 // minor units
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

// Session is the provider's view of a checkout session
type Session struct {
	ID          string
	URL         string
	Paid        bool
	AmountTotal int64
	Currency    string
	Metadata    map[string]string
}

// Provider creates checkout sessions and reports their payment state
type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
	GetSession(ctx context.Context, sessionID string) (Session, error)
}

// MinorUnits converts a two-decimal amount into cents
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
