package auction

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/shopmarcas/smallauctions/internal/auctionerrors"
	"github.com/shopmarcas/smallauctions/internal/events"
	"github.com/shopmarcas/smallauctions/internal/models"
	"github.com/shopmarcas/smallauctions/internal/payments"
	"github.com/shopmarcas/smallauctions/internal/repository"
	"github.com/shopmarcas/smallauctions/utils"
)

const (
	maxTitleLength  = 200
	defaultCurrency = "USD"
)

// NUMERIC(10,2) upper bound
var maxAmount = decimal.New(1, 8)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// AuctionService holds the marketplace rules: listings, bid acceptance,
// winner determination and settlement through the payment provider
type AuctionService struct {
	repo      repository.AuctionDB
	provider  payments.Provider
	publisher events.Publisher
}

// NewAuctionService creates a new AuctionService instance. A nil publisher logs events instead.
func NewAuctionService(repo repository.AuctionDB, provider payments.Provider, publisher events.Publisher) *AuctionService {
	if publisher == nil {
		publisher = events.LogPublisher{}
	}
	return &AuctionService{
		repo:      repo,
		provider:  provider,
		publisher: publisher,
	}
}

// validAmount accepts positive amounts with at most two fractional digits
func validAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Truncate(2)) && amount.LessThan(maxAmount)
}

// CreateAuction validates and stores a new listing owned by the caller
func (s *AuctionService) CreateAuction(ctx context.Context, caller models.Caller, in models.NewAuction) (models.AuctionItem, error) {
	if !caller.Authenticated() {
		return models.AuctionItem{}, fmt.Errorf("service: create auction: %w", auctionerrors.ErrUnauthorized)
	}

	title := strings.TrimSpace(in.Title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
		return models.AuctionItem{}, fmt.Errorf("service: %w - title must be 1 to %d characters", auctionerrors.ErrInvalidAuction, maxTitleLength)
	}
	if !validAmount(in.StartingPrice) {
		return models.AuctionItem{}, fmt.Errorf("service: %w - starting price must be positive with at most 2 decimals", auctionerrors.ErrInvalidAuction)
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	if !currencyPattern.MatchString(currency) {
		return models.AuctionItem{}, fmt.Errorf("service: %w - currency must be a 3-letter code", auctionerrors.ErrInvalidAuction)
	}

	start := in.StartTime
	if start.IsZero() {
		start = caller.Now
	}
	if !in.EndTime.After(start) || !in.EndTime.After(caller.Now) {
		return models.AuctionItem{}, fmt.Errorf("service: %w - end time must be after start time and in the future", auctionerrors.ErrInvalidAuction)
	}

	if in.CategoryID != "" {
		if _, err := s.repo.GetCategory(ctx, in.CategoryID); err != nil {
			if errors.Is(err, auctionerrors.ErrCategoryNotFound) {
				return models.AuctionItem{}, fmt.Errorf("service: %w - unknown category %s", auctionerrors.ErrInvalidAuction, in.CategoryID)
			}
			return models.AuctionItem{}, fmt.Errorf("service: failed to check category %s: %w", in.CategoryID, err)
		}
	}

	auction := models.AuctionItem{
		AuctionID:     utils.GenerateID(),
		Title:         title,
		Description:   strings.TrimSpace(in.Description),
		SellerID:      caller.UserID,
		CategoryID:    in.CategoryID,
		StartingPrice: in.StartingPrice,
		CurrentPrice:  in.StartingPrice,
		Currency:      currency,
		StartTime:     start,
		EndTime:       in.EndTime,
		Status:        models.AuctionOpen,
		IsActive:      true,
		CreatedAt:     caller.Now,
		UpdatedAt:     caller.Now,
	}
	if err := s.repo.CreateAuction(ctx, auction); err != nil {
		return models.AuctionItem{}, fmt.Errorf("service: failed to create auction for seller %s: %w", caller.UserID, err)
	}

	s.publish(ctx, events.Event{
		Type:      events.AuctionCreated,
		AuctionID: auction.AuctionID,
		UserID:    caller.UserID,
		Amount:    auction.StartingPrice,
		Timestamp: caller.Now,
	})
	return auction, nil
}

// ListAuctions returns auctions still open for bidding at now, newest first
func (s *AuctionService) ListAuctions(ctx context.Context, now time.Time, categoryID string) ([]models.AuctionItem, error) {
	auctions, err := s.repo.ListOpenAuctions(ctx, now, categoryID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list auctions: %w", err)
	}
	return auctions, nil
}

// GetAuction returns a single listing
func (s *AuctionService) GetAuction(ctx context.Context, auctionID string) (models.AuctionItem, error) {
	if auctionID == "" {
		return models.AuctionItem{}, fmt.Errorf("service: %w - empty auction ID", auctionerrors.ErrInvalidAuction)
	}

	auction, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.AuctionItem{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}
	return auction, nil
}

// GetAuctionView assembles the detail page of a listing for the caller
func (s *AuctionService) GetAuctionView(ctx context.Context, caller models.Caller, auctionID string) (models.AuctionView, error) {
	auction, err := s.GetAuction(ctx, auctionID)
	if err != nil {
		return models.AuctionView{}, err
	}

	bids, err := s.repo.GetBidsByAuction(ctx, auctionID)
	if err != nil {
		return models.AuctionView{}, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}

	paid, err := s.repo.HasPaidPayment(ctx, auctionID)
	if err != nil {
		return models.AuctionView{}, fmt.Errorf("service: failed to check payment for auction %s: %w", auctionID, err)
	}

	view := models.AuctionView{
		Auction: auction,
		Bids:    bids,
		Phase:   auction.Phase(caller.Now),
	}
	// bids are newest first, so bids[0] is the latest one
	if caller.Authenticated() && len(bids) > 0 {
		if winner, err := winnerOf(auction, bids[0], caller.Now); err == nil {
			view.IsWinner = winner.BidderID == caller.UserID
		}
	}
	// only the winner learns whether the payment went through
	view.PaymentDone = paid && view.IsWinner
	return view, nil
}

// PlaceBid validates and records a bid by the caller
func (s *AuctionService) PlaceBid(ctx context.Context, caller models.Caller, auctionID string, amount decimal.Decimal) (models.Bid, error) {
	if !caller.Authenticated() {
		return models.Bid{}, fmt.Errorf("service: place bid: %w", auctionerrors.ErrUnauthorized)
	}
	if auctionID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - missing auction ID", auctionerrors.ErrInvalidBid)
	}
	if !validAmount(amount) {
		return models.Bid{}, fmt.Errorf("service: %w - amount must be positive with at most 2 decimals", auctionerrors.ErrInvalidBid)
	}

	auction, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}
	if err := checkBiddable(auction, caller); err != nil {
		return models.Bid{}, err
	}

	bid := models.Bid{
		BidID:     utils.GenerateID(),
		AuctionID: auctionID,
		BidderID:  caller.UserID,
		Amount:    amount,
		CreatedAt: caller.Now,
	}

	// the price comparison is repeated inside the store under its lock, which
	// may also move CreatedAt forward so the latest bid stays the highest
	_, stored, err := s.repo.RecordBid(ctx, bid)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to record bid for auction %s by user %s: %w", auctionID, caller.UserID, err)
	}

	s.publish(ctx, events.Event{
		Type:      events.BidAccepted,
		AuctionID: auctionID,
		UserID:    caller.UserID,
		Amount:    stored.Amount,
		Timestamp: stored.CreatedAt,
	})
	return stored, nil
}

// checkBiddable applies the rules that do not depend on the current price
func checkBiddable(auction models.AuctionItem, caller models.Caller) error {
	switch {
	case !auction.IsActive:
		return fmt.Errorf("service: %w", auctionerrors.ErrAuctionClosed)
	case auction.NotStarted(caller.Now):
		return fmt.Errorf("service: %w - bidding opens at %s", auctionerrors.ErrAuctionNotStarted, auction.StartTime.Format(time.RFC3339))
	case auction.WindowClosed(caller.Now):
		return fmt.Errorf("service: %w - bidding closed at %s", auctionerrors.ErrAuctionEnded, auction.EndTime.Format(time.RFC3339))
	}
	return nil
}

// GetBidsForAuction returns all bids for an auction, newest first
func (s *AuctionService) GetBidsForAuction(ctx context.Context, auctionID string) ([]models.Bid, error) {
	if _, err := s.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}

	bids, err := s.repo.GetBidsByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}
	return bids, nil
}

// winnerOf derives the winning bid from the latest bid once the auction is over
func winnerOf(auction models.AuctionItem, latest models.Bid, now time.Time) (models.Bid, error) {
	if !auction.Ended(now) {
		return models.Bid{}, fmt.Errorf("service: %w - ends at %s", auctionerrors.ErrAuctionNotEnded, auction.EndTime.Format(time.RFC3339))
	}
	return latest, nil
}

// GetWinner returns the winning bid of an auction that has ended at now
func (s *AuctionService) GetWinner(ctx context.Context, auctionID string, now time.Time) (models.Bid, error) {
	auction, err := s.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Bid{}, err
	}
	if !auction.Ended(now) {
		return models.Bid{}, fmt.Errorf("service: %w - ends at %s", auctionerrors.ErrAuctionNotEnded, auction.EndTime.Format(time.RFC3339))
	}

	latest, err := s.repo.GetLatestBid(ctx, auctionID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to get winning bid for auction %s: %w", auctionID, err)
	}
	return latest, nil
}

// GetAuctionsByBidder returns all auctions a user has placed bids on
func (s *AuctionService) GetAuctionsByBidder(ctx context.Context, userID string) ([]models.AuctionItem, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", auctionerrors.ErrInvalidBid)
	}

	auctions, err := s.repo.GetAuctionsByBidder(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get auctions for user %s: %w", userID, err)
	}
	return auctions, nil
}

// ListCategories returns the category catalog
func (s *AuctionService) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list categories: %w", err)
	}
	return categories, nil
}

// Slugify lower-cases a name and joins its words with dashes
func Slugify(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

// SeedCategories makes sure every named category exists. Existing slugs are left alone.
func (s *AuctionService) SeedCategories(ctx context.Context, names []string) error {
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		slug := Slugify(name)
		err := s.repo.CreateCategory(ctx, models.Category{
			CategoryID: "cat-" + slug,
			Name:       name,
			Slug:       slug,
		})
		if err != nil && !errors.Is(err, auctionerrors.ErrCategoryExists) {
			return fmt.Errorf("service: failed to seed category %s: %w", name, err)
		}
	}
	return nil
}

// CheckPaymentEligibility decides whether the caller may pay for the auction.
// It has no side effects.
func (s *AuctionService) CheckPaymentEligibility(ctx context.Context, caller models.Caller, auctionID string) (models.AuctionItem, models.Bid, error) {
	if !caller.Authenticated() {
		return models.AuctionItem{}, models.Bid{}, fmt.Errorf("service: payment: %w", auctionerrors.ErrUnauthorized)
	}

	auction, err := s.GetAuction(ctx, auctionID)
	if err != nil {
		return models.AuctionItem{}, models.Bid{}, err
	}

	latest, err := s.repo.GetLatestBid(ctx, auctionID)
	if err != nil {
		return models.AuctionItem{}, models.Bid{}, fmt.Errorf("service: failed to get latest bid for auction %s: %w", auctionID, err)
	}
	if latest.BidderID != caller.UserID {
		return models.AuctionItem{}, models.Bid{}, fmt.Errorf("service: user %s: %w", caller.UserID, auctionerrors.ErrNotWinner)
	}
	winner, err := winnerOf(auction, latest, caller.Now)
	if err != nil {
		return models.AuctionItem{}, models.Bid{}, err
	}
	if !auction.IsActive {
		return models.AuctionItem{}, models.Bid{}, fmt.Errorf("service: auction %s: %w", auctionID, auctionerrors.ErrAlreadyPaid)
	}
	return auction, winner, nil
}

// StartCheckout opens a hosted payment session for the winning bidder
func (s *AuctionService) StartCheckout(ctx context.Context, caller models.Caller, auctionID string, urls models.ReturnURLs) (models.CheckoutSession, error) {
	auction, winner, err := s.CheckPaymentEligibility(ctx, caller, auctionID)
	if err != nil {
		return models.CheckoutSession{}, err
	}

	session, err := s.provider.CreateSession(ctx, payments.SessionRequest{
		Reference:   auction.AuctionID,
		Description: auction.Title,
		Currency:    auction.Currency,
		UnitAmount:  payments.MinorUnits(auction.CurrentPrice),
		SuccessURL:  urls.SuccessURL,
		CancelURL:   urls.CancelURL,
		Metadata: map[string]string{
			payments.MetadataAuctionID: auction.AuctionID,
			"buyer_id":                 winner.BidderID,
		},
	})
	if err != nil {
		return models.CheckoutSession{}, fmt.Errorf("service: %w: %v", auctionerrors.ErrPaymentProvider, err)
	}
	if session.URL == "" {
		return models.CheckoutSession{}, fmt.Errorf("service: %w: session %s has no checkout URL", auctionerrors.ErrPaymentProvider, session.ID)
	}

	utils.Info("Checkout session created", map[string]any{
		"auction_id": auction.AuctionID,
		"buyer_id":   winner.BidderID,
		"session_id": session.ID,
		"amount":     auction.CurrentPrice.StringFixed(2),
	})
	return models.CheckoutSession{SessionID: session.ID, URL: session.URL}, nil
}

// CompletePayment verifies a checkout session with the provider and records
// the settlement. Replaying a recorded session returns the stored payment
// and false.
func (s *AuctionService) CompletePayment(ctx context.Context, caller models.Caller, auctionID, sessionID string) (models.Payment, bool, error) {
	if !caller.Authenticated() {
		return models.Payment{}, false, fmt.Errorf("service: payment: %w", auctionerrors.ErrUnauthorized)
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return models.Payment{}, false, fmt.Errorf("service: %w - missing session id", auctionerrors.ErrInvalidPayment)
	}

	existing, err := s.repo.GetPaymentBySession(ctx, sessionID)
	switch {
	case err == nil:
		if existing.AuctionID != auctionID || existing.BuyerID != caller.UserID {
			return models.Payment{}, false, fmt.Errorf("service: session %s: %w", sessionID, auctionerrors.ErrSessionMismatch)
		}
		return existing, false, nil
	case !errors.Is(err, auctionerrors.ErrPaymentNotFound):
		return models.Payment{}, false, fmt.Errorf("service: failed to look up session %s: %w", sessionID, err)
	}

	auction, _, err := s.CheckPaymentEligibility(ctx, caller, auctionID)
	if err != nil {
		return models.Payment{}, false, err
	}
	if err := s.verifySession(ctx, auction, sessionID); err != nil {
		return models.Payment{}, false, err
	}

	payment, created, err := s.repo.CompletePayment(ctx, models.Payment{
		PaymentID: utils.GenerateID(),
		AuctionID: auctionID,
		BuyerID:   caller.UserID,
		SessionID: sessionID,
		Amount:    auction.CurrentPrice,
		Currency:  auction.Currency,
		Status:    models.PaymentPaid,
		CreatedAt: caller.Now,
		UpdatedAt: caller.Now,
	})
	if err != nil {
		return models.Payment{}, false, fmt.Errorf("service: failed to record payment for auction %s: %w", auctionID, err)
	}

	if created {
		utils.Info("Auction paid and closed", map[string]any{
			"auction_id": auctionID,
			"buyer_id":   caller.UserID,
			"payment_id": payment.PaymentID,
			"amount":     payment.Amount.StringFixed(2),
		})
		s.publish(ctx, events.Event{
			Type:      events.PaymentCompleted,
			AuctionID: auctionID,
			UserID:    caller.UserID,
			Amount:    payment.Amount,
			Timestamp: caller.Now,
		})
	}
	return payment, created, nil
}

// verifySession checks with the provider that the session paid the current price of this auction
func (s *AuctionService) verifySession(ctx context.Context, auction models.AuctionItem, sessionID string) error {
	session, err := s.provider.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, payments.ErrSessionNotFound) {
			return fmt.Errorf("service: %w - unknown session %s", auctionerrors.ErrPaymentNotVerified, sessionID)
		}
		return fmt.Errorf("service: %w: %v", auctionerrors.ErrPaymentProvider, err)
	}

	switch {
	case !session.Paid:
		return fmt.Errorf("service: %w - session %s is not paid", auctionerrors.ErrPaymentNotVerified, sessionID)
	case session.Metadata[payments.MetadataAuctionID] != auction.AuctionID:
		return fmt.Errorf("service: %w - session %s is for another auction", auctionerrors.ErrPaymentNotVerified, sessionID)
	case session.AmountTotal != payments.MinorUnits(auction.CurrentPrice):
		return fmt.Errorf("service: %w - session %s paid %d, expected %s", auctionerrors.ErrPaymentNotVerified,
			sessionID, session.AmountTotal, auction.CurrentPrice.StringFixed(2))
	case !strings.EqualFold(session.Currency, auction.Currency):
		return fmt.Errorf("service: %w - session %s currency %s, expected %s", auctionerrors.ErrPaymentNotVerified,
			sessionID, session.Currency, auction.Currency)
	}
	return nil
}

// CloseExpiredAuctions persists the ended state of every auction whose window has passed
func (s *AuctionService) CloseExpiredAuctions(ctx context.Context, now time.Time) (int, error) {
	ended, err := s.repo.EndExpiredAuctions(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("service: failed to end expired auctions: %w", err)
	}

	for _, a := range ended {
		utils.Info("Auction ended", map[string]any{
			"auction_id": a.AuctionID,
			"winner_id":  a.WinnerID,
			"price":      a.CurrentPrice.StringFixed(2),
		})
		s.publish(ctx, events.Event{
			Type:      events.AuctionEnded,
			AuctionID: a.AuctionID,
			UserID:    a.WinnerID,
			Amount:    a.CurrentPrice,
			Timestamp: now,
		})
	}
	return len(ended), nil
}

func (s *AuctionService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		utils.Warn("Failed to publish auction event", map[string]any{
			"type":       event.Type,
			"auction_id": event.AuctionID,
			"error":      err.Error(),
		})
	}
}
