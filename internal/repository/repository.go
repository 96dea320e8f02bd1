package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopmarcas/smallauctions/internal/auctionerrors"
	model "github.com/shopmarcas/smallauctions/internal/models"
)

// UserStore holds accounts and their profiles
type UserStore interface {
	CreateUser(ctx context.Context, user model.User, profile model.Profile) error
	GetUser(ctx context.Context, userID string) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	GetProfile(ctx context.Context, userID string) (model.Profile, error)
	UpdateProfile(ctx context.Context, profile model.Profile) error
}

// CatalogStore holds categories and auction listings
type CatalogStore interface {
	CreateCategory(ctx context.Context, category model.Category) error
	GetCategory(ctx context.Context, categoryID string) (model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	CreateAuction(ctx context.Context, auction model.AuctionItem) error
	GetAuction(ctx context.Context, auctionID string) (model.AuctionItem, error)
	ListOpenAuctions(ctx context.Context, now time.Time, categoryID string) ([]model.AuctionItem, error)
	EndExpiredAuctions(ctx context.Context, now time.Time) ([]model.AuctionItem, error)
}

// BidLedger is the append-only record of accepted bids.
// RecordBid is a compare-and-set on the auction's current price.
type BidLedger interface {
	RecordBid(ctx context.Context, bid model.Bid) (model.AuctionItem, model.Bid, error)
	GetBidsByAuction(ctx context.Context, auctionID string) ([]model.Bid, error)
	GetLatestBid(ctx context.Context, auctionID string) (model.Bid, error)
	GetAuctionsByBidder(ctx context.Context, userID string) ([]model.AuctionItem, error)
}

// PaymentLedger records settlements. CompletePayment is idempotent on the
// session id and closes the auction in the same critical section.
type PaymentLedger interface {
	CompletePayment(ctx context.Context, payment model.Payment) (model.Payment, bool, error)
	GetPaymentBySession(ctx context.Context, sessionID string) (model.Payment, error)
	HasPaidPayment(ctx context.Context, auctionID string) (bool, error)
}

// AuctionDB is the storage used by the auction core
type AuctionDB interface {
	CatalogStore
	BidLedger
	PaymentLedger
}

// Store is the complete storage interface of the marketplace
type Store interface {
	UserStore
	AuctionDB
}

// MemoryRepo is a concurrency-safe in-memory implementation of Store
type MemoryRepo struct {
	mu             sync.RWMutex
	users          map[string]model.User        // key: userID
	usernames      map[string]string            // key: username -> userID
	profiles       map[string]model.Profile     // key: userID
	categories     map[string]model.Category    // key: categoryID
	auctions       map[string]model.AuctionItem // key: auctionID
	bids           map[string][]model.Bid       // key: auctionID -> bids in arrival order
	bidderAuctions map[string][]string          // key: userID -> auctionIDs, most recent bid last
	payments       map[string]model.Payment     // key: sessionID
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		users:          make(map[string]model.User),
		usernames:      make(map[string]string),
		profiles:       make(map[string]model.Profile),
		categories:     make(map[string]model.Category),
		auctions:       make(map[string]model.AuctionItem),
		bids:           make(map[string][]model.Bid),
		bidderAuctions: make(map[string][]string),
		payments:       make(map[string]model.Payment),
	}
}

// CreateUser stores a new user together with its profile
func (r *MemoryRepo) CreateUser(_ context.Context, user model.User, profile model.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.usernames[user.Username]; taken {
		return fmt.Errorf("create user %s: %w", user.Username, auctionerrors.ErrUsernameTaken)
	}
	r.users[user.UserID] = user
	r.usernames[user.Username] = user.UserID
	profile.UserID = user.UserID
	r.profiles[user.UserID] = profile
	return nil
}

// GetUser returns a user by id
func (r *MemoryRepo) GetUser(_ context.Context, userID string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[userID]
	if !ok {
		return model.User{}, fmt.Errorf("get user %s: %w", userID, auctionerrors.ErrUserNotFound)
	}
	return user, nil
}

// GetUserByUsername returns a user by login name
func (r *MemoryRepo) GetUserByUsername(_ context.Context, username string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.usernames[username]
	if !ok {
		return model.User{}, fmt.Errorf("get user %s: %w", username, auctionerrors.ErrUserNotFound)
	}
	return r.users[id], nil
}

// GetProfile returns the profile of a user
func (r *MemoryRepo) GetProfile(_ context.Context, userID string) (model.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profile, ok := r.profiles[userID]
	if !ok {
		return model.Profile{}, fmt.Errorf("get profile %s: %w", userID, auctionerrors.ErrUserNotFound)
	}
	return profile, nil
}

// UpdateProfile replaces the editable fields of a profile
func (r *MemoryRepo) UpdateProfile(_ context.Context, profile model.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.profiles[profile.UserID]
	if !ok {
		return fmt.Errorf("update profile %s: %w", profile.UserID, auctionerrors.ErrUserNotFound)
	}
	current.DisplayName = profile.DisplayName
	current.Country = profile.Country
	current.UpdatedAt = profile.UpdatedAt
	r.profiles[profile.UserID] = current
	return nil
}

// CreateCategory stores a category; slugs are unique
func (r *MemoryRepo) CreateCategory(_ context.Context, category model.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.categories {
		if c.Slug == category.Slug {
			return fmt.Errorf("create category %s: %w", category.Slug, auctionerrors.ErrCategoryExists)
		}
	}
	r.categories[category.CategoryID] = category
	return nil
}

// GetCategory returns a category by id
func (r *MemoryRepo) GetCategory(_ context.Context, categoryID string) (model.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	category, ok := r.categories[categoryID]
	if !ok {
		return model.Category{}, fmt.Errorf("get category %s: %w", categoryID, auctionerrors.ErrCategoryNotFound)
	}
	return category, nil
}

// ListCategories returns all categories ordered by name
func (r *MemoryRepo) ListCategories(_ context.Context) ([]model.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	categories := make([]model.Category, 0, len(r.categories))
	for _, c := range r.categories {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

// CreateAuction stores a new listing
func (r *MemoryRepo) CreateAuction(_ context.Context, auction model.AuctionItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if auction.AuctionID == "" {
		return fmt.Errorf("create auction: %w - missing id", auctionerrors.ErrInvalidAuction)
	}
	r.auctions[auction.AuctionID] = auction
	return nil
}

// GetAuction returns a listing by id
func (r *MemoryRepo) GetAuction(_ context.Context, auctionID string) (model.AuctionItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	auction, ok := r.auctions[auctionID]
	if !ok {
		return model.AuctionItem{}, fmt.Errorf("get auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	return auction, nil
}

// ListOpenAuctions returns active listings whose end time is after now, newest first
func (r *MemoryRepo) ListOpenAuctions(_ context.Context, now time.Time, categoryID string) ([]model.AuctionItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	auctions := make([]model.AuctionItem, 0)
	for _, a := range r.auctions {
		if !a.IsActive || !a.EndTime.After(now) {
			continue
		}
		if categoryID != "" && a.CategoryID != categoryID {
			continue
		}
		auctions = append(auctions, a)
	}
	sort.Slice(auctions, func(i, j int) bool { return auctions[i].CreatedAt.After(auctions[j].CreatedAt) })
	return auctions, nil
}

// EndExpiredAuctions moves open listings whose end time has passed to the
// ended state and records the latest bidder as winner
func (r *MemoryRepo) EndExpiredAuctions(_ context.Context, now time.Time) ([]model.AuctionItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ended := make([]model.AuctionItem, 0)
	for id, a := range r.auctions {
		if a.Status != model.AuctionOpen || now.Before(a.EndTime) {
			continue
		}
		a.Status = model.AuctionEnded
		if latest, ok := latestBid(r.bids[id]); ok {
			a.WinnerID = latest.BidderID
		}
		a.UpdatedAt = now
		r.auctions[id] = a
		ended = append(ended, a)
	}
	sort.Slice(ended, func(i, j int) bool { return ended[i].EndTime.Before(ended[j].EndTime) })
	return ended, nil
}

// RecordBid appends a bid and raises the current price, but only if the bid
// still exceeds the current price while the lock is held. The stored bid is
// never dated before the auction's previous latest bid.
func (r *MemoryRepo) RecordBid(_ context.Context, bid model.Bid) (model.AuctionItem, model.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	auction, ok := r.auctions[bid.AuctionID]
	if !ok {
		return model.AuctionItem{}, model.Bid{}, fmt.Errorf("record bid for auction %s: %w", bid.AuctionID, auctionerrors.ErrAuctionNotFound)
	}
	if !auction.IsActive {
		return model.AuctionItem{}, model.Bid{}, fmt.Errorf("record bid for auction %s: %w", bid.AuctionID, auctionerrors.ErrAuctionClosed)
	}
	if !bid.Amount.GreaterThan(auction.CurrentPrice) {
		return model.AuctionItem{}, model.Bid{}, fmt.Errorf("record bid for auction %s: %w - current price is %s",
			bid.AuctionID, auctionerrors.ErrBidTooLow, auction.CurrentPrice.StringFixed(2))
	}

	// ties on created_at resolve to the higher amount
	if latest, ok := latestBid(r.bids[bid.AuctionID]); ok && latest.CreatedAt.After(bid.CreatedAt) {
		bid.CreatedAt = latest.CreatedAt
	}

	r.bids[bid.AuctionID] = append(r.bids[bid.AuctionID], bid)
	auction.CurrentPrice = bid.Amount
	auction.UpdatedAt = bid.CreatedAt
	r.auctions[bid.AuctionID] = auction

	ids := r.bidderAuctions[bid.BidderID]
	for i, id := range ids {
		if id == bid.AuctionID {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	r.bidderAuctions[bid.BidderID] = append(ids, bid.AuctionID)

	return auction, bid, nil
}

// GetBidsByAuction returns all bids for an auction, newest first
func (r *MemoryRepo) GetBidsByAuction(_ context.Context, auctionID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bids := append([]model.Bid{}, r.bids[auctionID]...)
	sortNewestFirst(bids)
	return bids, nil
}

// GetLatestBid returns the most recently created bid for an auction
func (r *MemoryRepo) GetLatestBid(_ context.Context, auctionID string) (model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	latest, ok := latestBid(r.bids[auctionID])
	if !ok {
		return model.Bid{}, fmt.Errorf("get latest bid for auction %s: %w", auctionID, auctionerrors.ErrNoBids)
	}
	return latest, nil
}

// GetAuctionsByBidder returns the auctions a user has bid on, most recent activity first
func (r *MemoryRepo) GetAuctionsByBidder(_ context.Context, userID string) ([]model.AuctionItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.bidderAuctions[userID]
	auctions := make([]model.AuctionItem, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if auction, exists := r.auctions[ids[i]]; exists {
			auctions = append(auctions, auction)
		}
	}
	return auctions, nil
}

// CompletePayment records a paid settlement and closes the auction. A session
// id that was already recorded returns the stored payment and false.
func (r *MemoryRepo) CompletePayment(_ context.Context, payment model.Payment) (model.Payment, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.payments[payment.SessionID]; ok {
		return existing, false, nil
	}

	auction, ok := r.auctions[payment.AuctionID]
	if !ok {
		return model.Payment{}, false, fmt.Errorf("complete payment for auction %s: %w", payment.AuctionID, auctionerrors.ErrAuctionNotFound)
	}
	if !auction.IsActive {
		return model.Payment{}, false, fmt.Errorf("complete payment for auction %s: %w", payment.AuctionID, auctionerrors.ErrAlreadyPaid)
	}

	payment.Amount = auction.CurrentPrice
	payment.Currency = auction.Currency
	r.payments[payment.SessionID] = payment

	auction.IsActive = false
	auction.Status = model.AuctionClosed
	auction.UpdatedAt = payment.CreatedAt
	r.auctions[payment.AuctionID] = auction

	return payment, true, nil
}

// GetPaymentBySession returns the payment recorded for a checkout session
func (r *MemoryRepo) GetPaymentBySession(_ context.Context, sessionID string) (model.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	payment, ok := r.payments[sessionID]
	if !ok {
		return model.Payment{}, fmt.Errorf("get payment for session %s: %w", sessionID, auctionerrors.ErrPaymentNotFound)
	}
	return payment, nil
}

// HasPaidPayment reports whether an auction has a paid settlement
func (r *MemoryRepo) HasPaidPayment(_ context.Context, auctionID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.payments {
		if p.AuctionID == auctionID && p.Status == model.PaymentPaid {
			return true, nil
		}
	}
	return false, nil
}

// latestBid picks the most recent bid; equal timestamps favour the higher amount
func latestBid(bids []model.Bid) (model.Bid, bool) {
	if len(bids) == 0 {
		return model.Bid{}, false
	}
	latest := bids[0]
	for _, b := range bids[1:] {
		if newer(b, latest) {
			latest = b
		}
	}
	return latest, true
}

func sortNewestFirst(bids []model.Bid) {
	sort.SliceStable(bids, func(i, j int) bool { return newer(bids[i], bids[j]) })
}

func newer(a, b model.Bid) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.Amount.GreaterThan(b.Amount)
	}
	return a.CreatedAt.After(b.CreatedAt)
}
