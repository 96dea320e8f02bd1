package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a registered marketplace participant
type User struct {
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile holds the public details of a user
type Profile struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Country     string    `json:"country"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Name returns the display name, falling back to the username
func (p Profile) Name(username string) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return username
}

// Category groups auction listings
type Category struct {
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
}

// AuctionStatus is the persisted lifecycle state of a listing
type AuctionStatus string

const (
	AuctionOpen   AuctionStatus = "open"
	AuctionEnded  AuctionStatus = "ended"
	AuctionClosed AuctionStatus = "closed"
)

// AuctionItem represents a listing put up for auction by a seller
type AuctionItem struct {
	AuctionID     string          `json:"auction_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	SellerID      string          `json:"seller_id"`
	CategoryID    string          `json:"category_id,omitempty"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	Currency      string          `json:"currency"`
	StartTime     time.Time       `json:"start_time"`
	EndTime       time.Time       `json:"end_time"`
	Status        AuctionStatus   `json:"status"`
	IsActive      bool            `json:"is_active"`
	WinnerID      string          `json:"winner_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NotStarted reports whether bidding has not opened yet at now
func (a AuctionItem) NotStarted(now time.Time) bool {
	return now.Before(a.StartTime)
}

// WindowClosed reports whether now is outside [StartTime, EndTime) on the late side
func (a AuctionItem) WindowClosed(now time.Time) bool {
	return !now.Before(a.EndTime)
}

// Ended reports whether the auction is over and a winner may be determined.
// Strictly after EndTime.
func (a AuctionItem) Ended(now time.Time) bool {
	return now.After(a.EndTime)
}

// Phase derives the lifecycle state at now regardless of what has been persisted
func (a AuctionItem) Phase(now time.Time) AuctionStatus {
	switch {
	case !a.IsActive || a.Status == AuctionClosed:
		return AuctionClosed
	case a.WindowClosed(now):
		return AuctionEnded
	default:
		return AuctionOpen
	}
}

// NewAuction carries the seller-supplied fields of a listing
type NewAuction struct {
	Title         string
	Description   string
	CategoryID    string
	StartingPrice decimal.Decimal
	Currency      string
	StartTime     time.Time
	EndTime       time.Time
}

// Bid represents a user's accepted bid on an auction
type Bid struct {
	BidID     string          `json:"bid_id"`
	AuctionID string          `json:"auction_id"`
	BidderID  string          `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// PaymentStatus is the state of a payment record
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// Payment records a settlement of an auction through the checkout provider
type Payment struct {
	PaymentID string          `json:"payment_id"`
	AuctionID string          `json:"auction_id"`
	BuyerID   string          `json:"buyer_id"`
	SessionID string          `json:"session_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Status    PaymentStatus   `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Caller identifies who performs an operation and when
type Caller struct {
	UserID string
	Now    time.Time
}

// Authenticated reports whether the caller carries a user identity
func (c Caller) Authenticated() bool {
	return c.UserID != ""
}

// AuctionView is the detail page of a listing as seen by a caller
type AuctionView struct {
	Auction     AuctionItem
	Bids        []Bid
	Phase       AuctionStatus
	IsWinner    bool
	PaymentDone bool
}

// ReturnURLs are the locations the checkout provider redirects back to
type ReturnURLs struct {
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is a hosted payment session the buyer is sent to
type CheckoutSession struct {
	SessionID string
	URL       string
}

// Registration carries the fields of a sign-up request
type Registration struct {
	Username    string
	Password    string
	DisplayName string
	Country     string
}
