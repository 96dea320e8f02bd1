package handler

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopmarcas/smallauctions/internal/models"
)

//go:generate mockgen -source=services.go -destination=mock_services.go -package=handler

type AuctionServiceInterface interface {
	CreateAuction(ctx context.Context, caller models.Caller, in models.NewAuction) (models.AuctionItem, error)
	ListAuctions(ctx context.Context, now time.Time, categoryID string) ([]models.AuctionItem, error)
	GetAuctionView(ctx context.Context, caller models.Caller, auctionID string) (models.AuctionView, error)
	PlaceBid(ctx context.Context, caller models.Caller, auctionID string, amount decimal.Decimal) (models.Bid, error)
	GetBidsForAuction(ctx context.Context, auctionID string) ([]models.Bid, error)
	GetWinner(ctx context.Context, auctionID string, now time.Time) (models.Bid, error)
	GetAuctionsByBidder(ctx context.Context, userID string) ([]models.AuctionItem, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	StartCheckout(ctx context.Context, caller models.Caller, auctionID string, urls models.ReturnURLs) (models.CheckoutSession, error)
	CompletePayment(ctx context.Context, caller models.Caller, auctionID, sessionID string) (models.Payment, bool, error)
}

type AccountServiceInterface interface {
	Register(ctx context.Context, reg models.Registration) (models.User, string, error)
	Login(ctx context.Context, username, password string) (models.User, string, error)
	GetProfile(ctx context.Context, userID string) (models.Profile, error)
	UpdateProfile(ctx context.Context, userID, displayName, country string) (models.Profile, error)
}
