package auctionerrors

import "errors"

// Repository-level errors
var (
	ErrAuctionNotFound  = errors.New("auction not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrNoBids           = errors.New("no bids found for auction")
	ErrUsernameTaken    = errors.New("username already taken")
	ErrCategoryExists   = errors.New("category slug already exists")
)

// listing and bidding errors
var (
	ErrInvalidAuction    = errors.New("invalid auction")
	ErrInvalidBid        = errors.New("invalid bid")
	ErrBidTooLow         = errors.New("bid must exceed current price")
	ErrAuctionNotStarted = errors.New("auction has not started")
	ErrAuctionEnded      = errors.New("auction has ended")
	ErrAuctionClosed     = errors.New("auction is closed")
)

// settlement errors
var (
	ErrAuctionNotEnded    = errors.New("auction has not ended")
	ErrNotWinner          = errors.New("caller is not the winning bidder")
	ErrAlreadyPaid        = errors.New("auction already paid")
	ErrInvalidPayment     = errors.New("invalid payment request")
	ErrSessionMismatch    = errors.New("checkout session belongs to another purchase")
	ErrPaymentNotVerified = errors.New("payment could not be verified")
	ErrPaymentProvider    = errors.New("payment provider failure")
)

// account errors
var (
	ErrInvalidRegistration = errors.New("invalid registration")
	ErrInvalidProfile      = errors.New("invalid profile")
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrUnauthorized        = errors.New("authentication required")
)
