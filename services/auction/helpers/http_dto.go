package helpers

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopmarcas/smallauctions/internal/models"
)

// Request/Response DTOs
type RegisterRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
	Country     string `json:"country"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ProfileRequest struct {
	DisplayName string `json:"display_name"`
	Country     string `json:"country"`
}

// CreateAuctionRequest accepts prices as JSON numbers or strings
type CreateAuctionRequest struct {
	Title         string          `json:"title" binding:"required"`
	Description   string          `json:"description"`
	CategoryID    string          `json:"category_id"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	Currency      string          `json:"currency"`
	StartTime     time.Time       `json:"start_time"`
	EndTime       time.Time       `json:"end_time"`
}

type PlaceBidRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type AuthResponse struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

type ProfileResponse struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Country     string `json:"country"`
	UpdatedAt   string `json:"updated_at"`
}

type AuctionResponse struct {
	AuctionID     string `json:"auction_id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	SellerID      string `json:"seller_id"`
	CategoryID    string `json:"category_id,omitempty"`
	StartingPrice string `json:"starting_price"`
	CurrentPrice  string `json:"current_price"`
	Currency      string `json:"currency"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	IsActive      bool   `json:"is_active"`
	WinnerID      string `json:"winner_id,omitempty"`
}

type BidResponse struct {
	BidID     string `json:"bid_id"`
	AuctionID string `json:"auction_id"`
	BidderID  string `json:"bidder_id"`
	Amount    string `json:"amount"`
	CreatedAt string `json:"created_at"`
}

type AuctionDetailResponse struct {
	Auction     AuctionResponse `json:"auction"`
	Bids        []BidResponse   `json:"bids"`
	Phase       string          `json:"phase"`
	IsWinner    bool            `json:"is_winner"`
	PaymentDone bool            `json:"payment_done"`
}

type PaymentResponse struct {
	PaymentID string `json:"payment_id"`
	AuctionID string `json:"auction_id"`
	BuyerID   string `json:"buyer_id"`
	SessionID string `json:"session_id"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func NewAuctionResponse(a models.AuctionItem) AuctionResponse {
	return AuctionResponse{
		AuctionID:     a.AuctionID,
		Title:         a.Title,
		Description:   a.Description,
		SellerID:      a.SellerID,
		CategoryID:    a.CategoryID,
		StartingPrice: a.StartingPrice.StringFixed(2),
		CurrentPrice:  a.CurrentPrice.StringFixed(2),
		Currency:      a.Currency,
		StartTime:     formatTime(a.StartTime),
		EndTime:       formatTime(a.EndTime),
		Status:        string(a.Status),
		IsActive:      a.IsActive,
		WinnerID:      a.WinnerID,
	}
}

func NewAuctionResponses(auctions []models.AuctionItem) []AuctionResponse {
	resp := make([]AuctionResponse, 0, len(auctions))
	for _, a := range auctions {
		resp = append(resp, NewAuctionResponse(a))
	}
	return resp
}

func NewBidResponse(b models.Bid) BidResponse {
	return BidResponse{
		BidID:     b.BidID,
		AuctionID: b.AuctionID,
		BidderID:  b.BidderID,
		Amount:    b.Amount.StringFixed(2),
		CreatedAt: formatTime(b.CreatedAt),
	}
}

func NewBidResponses(bids []models.Bid) []BidResponse {
	resp := make([]BidResponse, 0, len(bids))
	for _, b := range bids {
		resp = append(resp, NewBidResponse(b))
	}
	return resp
}

func NewAuctionDetailResponse(v models.AuctionView) AuctionDetailResponse {
	return AuctionDetailResponse{
		Auction:     NewAuctionResponse(v.Auction),
		Bids:        NewBidResponses(v.Bids),
		Phase:       string(v.Phase),
		IsWinner:    v.IsWinner,
		PaymentDone: v.PaymentDone,
	}
}

func NewPaymentResponse(p models.Payment) PaymentResponse {
	return PaymentResponse{
		PaymentID: p.PaymentID,
		AuctionID: p.AuctionID,
		BuyerID:   p.BuyerID,
		SessionID: p.SessionID,
		Amount:    p.Amount.StringFixed(2),
		Currency:  p.Currency,
		Status:    string(p.Status),
		CreatedAt: formatTime(p.CreatedAt),
	}
}

func NewProfileResponse(p models.Profile) ProfileResponse {
	return ProfileResponse{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		Country:     p.Country,
		UpdatedAt:   formatTime(p.UpdatedAt),
	}
}
