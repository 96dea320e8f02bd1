package auction

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/shopmarcas/smallauctions/internal/auctionerrors"
	"github.com/shopmarcas/smallauctions/internal/events"
	"github.com/shopmarcas/smallauctions/internal/models"
	"github.com/shopmarcas/smallauctions/internal/payments"
	"github.com/shopmarcas/smallauctions/internal/repository"
)

var (
	start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	end   = start.Add(time.Hour)
)

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func openAuction(current string) models.AuctionItem {
	return models.AuctionItem{
		AuctionID:     "auction1",
		Title:         "Brass lamp",
		SellerID:      "seller",
		StartingPrice: amount("10.00"),
		CurrentPrice:  amount(current),
		Currency:      "USD",
		StartTime:     start,
		EndTime:       end,
		Status:        models.AuctionOpen,
		IsActive:      true,
	}
}

type mocks struct {
	repo      *repository.MockAuctionDB
	provider  *payments.MockProvider
	publisher *events.MockPublisher
}

func newTestService(t *testing.T) (*AuctionService, mocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := mocks{
		repo:      repository.NewMockAuctionDB(ctrl),
		provider:  payments.NewMockProvider(ctrl),
		publisher: events.NewMockPublisher(ctrl),
	}
	return NewAuctionService(m.repo, m.provider, m.publisher), m
}

// Tests PlaceBid
func TestAuctionService_PlaceBid(t *testing.T) {
	during := start.Add(10 * time.Minute)

	tests := []struct {
		name          string
		caller        models.Caller
		auctionID     string
		amount        string
		mockSetup     func(m mocks)
		wantCreatedAt time.Time
		wantErr       error
	}{
		{
			name:      "accepted",
			caller:    models.Caller{UserID: "userX", Now: during},
			auctionID: "auction1",
			amount:    "12.00",
			mockSetup: func(m mocks) {
				m.repo.EXPECT().GetAuction(gomock.Any(), "auction1").Return(openAuction("10.00"), nil)
				m.repo.EXPECT().RecordBid(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, bid models.Bid) (models.AuctionItem, models.Bid, error) {
						require.Equal(t, "userX", bid.BidderID)
						require.Equal(t, during, bid.CreatedAt)
						updated := openAuction("10.00")
						updated.CurrentPrice = bid.Amount
						return updated, bid, nil
					})
				m.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, e events.Event) error {
						require.Equal(t, events.BidAccepted, e.Type)
						return nil
					})
			},
		},
		{
			name:      "publish_failure_is_not_returned",
			caller:    models.Caller{UserID: "userX", Now: during},
			auctionID: "auction1",
			amount:    "12.00",
			mockSetup: func(m mocks) {
				m.repo.EXPECT().GetAuction(gomock.Any(), "auction1").Return(openAuction("10.00"), nil)
				m.repo.EXPECT().RecordBid(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, bid models.Bid) (models.AuctionItem, models.Bid, error) {
						return openAuction("12.00"), bid, nil
					})
				m.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))
			},
		},
		{
			name:      "store_moves_created_at_forward",
			caller:    models.Caller{UserID: "userX", Now: during},
			auctionID: "auction1",
			amount:    "12.00",
			mockSetup: func(m mocks) {
				m.repo.EXPECT().GetAuction(gomock.Any(), "auction1").Return(openAuction("10.00"), nil)
				m.repo.EXPECT().RecordBid(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, bid models.Bid) (models.AuctionItem, models.Bid, error) {
						bid.CreatedAt = during.Add(time.Minute)
						return openAuction("12.00"), bid, nil
					})
				m.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, e events.Event) error {
						require.Equal(t, during.Add(time.Minute), e.Timestamp)
						return nil
					})
			},
			wantCreatedAt: during.Add(time.Minute),
		},
		{
			name:      "anonymous",
			caller:    models.Caller{Now: during},
			auctionID: "auction1",
			amount:    "12.00",
			mockSetup: func(m mocks) {},
			wantErr:   auctionerrors.ErrUnauthorized,
		},
		{
			name:      "zero_amount",
			caller:    models.Caller{UserID: "userX", Now: during},
			auctionID: "auction1",
			amount:    "0",
			mockSetup: func(m mocks) {},
			wantErr:   auctionerrors.ErrInvalidBid,
		},
		{
			name:      "negative_amount",
			caller:    models.Caller{UserID: "userX", Now: during},
			auctionID: "auction1",
			amount:    "-5.00",
			mockSetup: func(m mocks) {},
			wantErr:   auctionerrors.ErrInvalidBid,
		},
		{
			name:      "three_decimals",
			caller:    models.Caller{UserID: "userX", Now: during},
			auctionID: "auction1",
			amount:    "12.005",
			mockSetup: func(m mocks) {},
			wantErr:   auctionerrors.ErrInvalidBid,
		},
		{
			name:      "auction_not_found",
			caller:    models.Caller{UserID: "userX", Now: during},
			auctionID: "missing",
			amount:    "12.00",
			mockSetup: func(m mocks) {
				m.repo.EXPECT().GetAuction(gomock.Any(), "missing").Return(models.AuctionItem{}, auctionerrors.ErrAuctionNotFound)
			},
			wantErr: auctionerrors.ErrAuctionNotFound,
		},
		{
			name:      "before_start",
			caller:    models.Caller{UserID: "userX", Now: start.Add(-time.Second)},
			auctionID: "auction1",
			amount:    "12.00",
			mockSetup: func(m mocks) {
				m.repo.EXPECT().GetAuction(gomock.Any(), "auction1").Return(openAuction("10.00"), nil)
			},
			wantErr: auctionerrors.ErrAuctionNotStarted,
		},
		{
			name:      "at_end_time",
			caller:    models.Caller{UserID: "userX", Now: end},
			auctionID: "auction1",
			amount:    "12.00",
			mockSetup: func(m mocks) {
				m.repo.EXPECT().GetAuction(gomock.Any(), "auction1").Return(openAuction("10.00"), nil)
			},
			wantErr: auctionerrors.ErrAuctionEnded,
		},
		{
			name:      "paid_auction",
			caller:    models.Caller{UserID: "userX", Now: during},
			auctionID: "auction1",
			amount:    "12.00",
			mockSetup: func(m mocks) {
				closed := openAuction("10.00")
				closed.IsActive = false
				m.repo.EXPECT().GetAuction(gomock.Any(), "auction1").Return(closed, nil)
			},
			wantErr: auctionerrors.ErrAuctionClosed,
		},
		{
			name:      "not_above_current_price",
			caller:    models.Caller{UserID: "userY", Now: during},
			auctionID: "auction1",
			amount:    "11.00",
			mockSetup: func(m mocks) {
				m.repo.EXPECT().GetAuction(gomock.Any(), "auction1").Return(openAuction("12.00"), nil)
				m.repo.EXPECT().RecordBid(gomock.Any(), gomock.Any()).Return(models.AuctionItem{}, models.Bid{}, auctionerrors.ErrBidTooLow)
			},
			wantErr: auctionerrors.ErrBidTooLow,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			service, m := newTestService(t)
			tc.mockSetup(m)

			bid, err := service.PlaceBid(context.Background(), tc.caller, tc.auctionID, amount(tc.amount))
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotEmpty(t, bid.BidID)
			require.True(t, bid.Amount.Equal(amount(tc.amount)))

			wantCreatedAt := tc.caller.Now
			if !tc.wantCreatedAt.IsZero() {
				wantCreatedAt = tc.wantCreatedAt
			}
			require.Equal(t, wantCreatedAt, bid.CreatedAt)
		})
	}
}

// Tests GetWinner
func TestAuctionService_GetWinner(t *testing.T) {
	tests := []struct {
		name      string
		now       time.Time
		mockSetup func(m mocks)
		wantBid   string
		wantErr   error
	}{
		{
			name: "latest_bidder_after_end",
			now:  end.Add(time.Second),
			mockSetup: func(m mocks) {
				m.repo.EXPECT().GetAuction(gomock.Any(), "auction1").Return(openAuction("12.00"), nil)
				m.repo.EXPECT().GetLatestBid(gomock.Any(), "auction1").Return(models.Bid{BidID: "bid2", BidderID: "userX"}, nil)
			},
			wantBid: "bid2",
		},
		{
			name: "exactly_at_end",
			now:  end,
			mockSetup: func(m mocks) {
				m.repo.EXPECT().GetAuction(gomock.Any(), "auction1").Return(openAuction("12.00"), nil)
			},
			wantErr: auctionerrors.ErrAuctionNotEnded,
		},
		{
			name: "no_bids",
			now:  end.Add(time.Minute),
			mockSetup: func(m mocks) {
				m.repo.EXPECT().GetAuction(gomock.Any(), "auction1").Return(openAuction("10.00"), nil)
				m.repo.EXPECT().GetLatestBid(gomock.Any(), "auction1").Return(models.Bid{}, auctionerrors.ErrNoBids)
			},
			wantErr: auctionerrors.ErrNoBids,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			service, m := newTestService(t)
			tc.mockSetup(m)

			bid, err := service.GetWinner(context.Background(), "auction1", tc.now)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantBid, bid.BidID)
		})
	}
}

// Tests CheckPaymentEligibility
func TestAuctionService_CheckPaymentEligibility(t *testing.T) {
	after := end.Add(time.Minute)
	latest := models.Bid{BidID: "bid1", AuctionID: "auction1", BidderID: "userX", Amount: amount("12.00")}

	tests := []struct {
		name    string
		caller  models.Caller
		auction models.AuctionItem
		latest  *models.Bid
		noRepo  bool
		wantErr error
	}{
		{name: "winner_after_end", caller: models.Caller{UserID: "userX", Now: after}, auction: openAuction("12.00"), latest: &latest},
		{name: "other_user", caller: models.Caller{UserID: "userY", Now: after}, auction: openAuction("12.00"), latest: &latest, wantErr: auctionerrors.ErrNotWinner},
		{name: "before_end", caller: models.Caller{UserID: "userX", Now: end}, auction: openAuction("12.00"), latest: &latest, wantErr: auctionerrors.ErrAuctionNotEnded},
		{name: "no_bids", caller: models.Caller{UserID: "userX", Now: after}, auction: openAuction("10.00"), wantErr: auctionerrors.ErrNoBids},
		{
			name:   "already_paid",
			caller: models.Caller{UserID: "userX", Now: after},
			auction: func() models.AuctionItem {
				a := openAuction("12.00")
				a.IsActive = false
				a.Status = models.AuctionClosed
				return a
			}(),
			latest:  &latest,
			wantErr: auctionerrors.ErrAlreadyPaid,
		},
		{name: "anonymous", caller: models.Caller{Now: after}, noRepo: true, wantErr: auctionerrors.ErrUnauthorized},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			service, m := newTestService(t)
			if !tc.noRepo {
				m.repo.EXPECT().GetAuction(gomock.Any(), "auction1").Return(tc.auction, nil)
				if tc.latest != nil {
					m.repo.EXPECT().GetLatestBid(gomock.Any(), "auction1").Return(*tc.latest, nil)
				} else {
					m.repo.EXPECT().GetLatestBid(gomock.Any(), "auction1").Return(models.Bid{}, auctionerrors.ErrNoBids)
				}
			}

			_, winner, err := service.CheckPaymentEligibility(context.Background(), tc.caller, "auction1")
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, "userX", winner.BidderID)
		})
	}
}

// Tests StartCheckout
func TestAuctionService_StartCheckout(t *testing.T) {
	caller := models.Caller{UserID: "userX", Now: end.Add(time.Minute)}
	urls := models.ReturnURLs{
		SuccessURL: "http://shop.test/auctions/auction1/success?session_id=" + payments.SessionIDPlaceholder,
		CancelURL:  "http://shop.test/auctions/auction1",
	}

	expectEligible := func(m mocks) {
		m.repo.EXPECT().GetAuction(gomock.Any(), "auction1").Return(openAuction("12.00"), nil)
		m.repo.EXPECT().GetLatestBid(gomock.Any(), "auction1").Return(models.Bid{BidderID: "userX", Amount: amount("12.00")}, nil)
	}

	t.Run("creates_session_for_current_price", func(t *testing.T) {
		service, m := newTestService(t)
		expectEligible(m)
		m.provider.EXPECT().CreateSession(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req payments.SessionRequest) (payments.Session, error) {
				require.Equal(t, int64(1200), req.UnitAmount)
				require.Equal(t, "USD", req.Currency)
				require.Equal(t, "Brass lamp", req.Description)
				require.Equal(t, urls.SuccessURL, req.SuccessURL)
				require.Equal(t, "auction1", req.Metadata[payments.MetadataAuctionID])
				require.Equal(t, "userX", req.Metadata["buyer_id"])
				return payments.Session{ID: "cs_1", URL: "https://pay.test/cs_1"}, nil
			})

		session, err := service.StartCheckout(context.Background(), caller, "auction1", urls)
		require.NoError(t, err)
		require.Equal(t, models.CheckoutSession{SessionID: "cs_1", URL: "https://pay.test/cs_1"}, session)
	})

	t.Run("provider_failure", func(t *testing.T) {
		service, m := newTestService(t)
		expectEligible(m)
		m.provider.EXPECT().CreateSession(gomock.Any(), gomock.Any()).Return(payments.Session{}, errors.New("timeout"))

		_, err := service.StartCheckout(context.Background(), caller, "auction1", urls)
		require.ErrorIs(t, err, auctionerrors.ErrPaymentProvider)
	})

	t.Run("gate_rejects_before_provider_call", func(t *testing.T) {
		service, m := newTestService(t)
		m.repo.EXPECT().GetAuction(gomock.Any(), "auction1").Return(openAuction("12.00"), nil)
		m.repo.EXPECT().GetLatestBid(gomock.Any(), "auction1").Return(models.Bid{BidderID: "userY"}, nil)

		_, err := service.StartCheckout(context.Background(), caller, "auction1", urls)
		require.ErrorIs(t, err, auctionerrors.ErrNotWinner)
	})
}

// Tests CompletePayment
func TestAuctionService_CompletePayment(t *testing.T) {
	caller := models.Caller{UserID: "userX", Now: end.Add(time.Minute)}
	paidSession := payments.Session{
		ID:          "cs_1",
		Paid:        true,
		AmountTotal: 1200,
		Currency:    "USD",
		Metadata:    map[string]string{payments.MetadataAuctionID: "auction1"},
	}

	expectEligible := func(m mocks) {
		m.repo.EXPECT().GetPaymentBySession(gomock.Any(), "cs_1").Return(models.Payment{}, auctionerrors.ErrPaymentNotFound)
		m.repo.EXPECT().GetAuction(gomock.Any(), "auction1").Return(openAuction("12.00"), nil)
		m.repo.EXPECT().GetLatestBid(gomock.Any(), "auction1").Return(models.Bid{BidderID: "userX", Amount: amount("12.00")}, nil)
	}

	tests := []struct {
		name        string
		sessionID   string
		mockSetup   func(m mocks)
		wantCreated bool
		wantErr     error
	}{
		{
			name:      "verified_and_recorded",
			sessionID: "cs_1",
			mockSetup: func(m mocks) {
				expectEligible(m)
				m.provider.EXPECT().GetSession(gomock.Any(), "cs_1").Return(paidSession, nil)
				m.repo.EXPECT().CompletePayment(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, p models.Payment) (models.Payment, bool, error) {
						require.Equal(t, models.PaymentPaid, p.Status)
						require.Equal(t, "userX", p.BuyerID)
						require.Equal(t, "12.00", p.Amount.StringFixed(2))
						return p, true, nil
					})
				m.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)
			},
			wantCreated: true,
		},
		{
			name:      "replayed_session",
			sessionID: "cs_1",
			mockSetup: func(m mocks) {
				m.repo.EXPECT().GetPaymentBySession(gomock.Any(), "cs_1").Return(
					models.Payment{PaymentID: "pay1", AuctionID: "auction1", BuyerID: "userX", SessionID: "cs_1", Status: models.PaymentPaid}, nil)
			},
		},
		{
			name:      "session_of_someone_else",
			sessionID: "cs_1",
			mockSetup: func(m mocks) {
				m.repo.EXPECT().GetPaymentBySession(gomock.Any(), "cs_1").Return(
					models.Payment{PaymentID: "pay1", AuctionID: "auction1", BuyerID: "userY", SessionID: "cs_1"}, nil)
			},
			wantErr: auctionerrors.ErrSessionMismatch,
		},
		{
			name:      "missing_session_id",
			sessionID: "  ",
			mockSetup: func(m mocks) {},
			wantErr:   auctionerrors.ErrInvalidPayment,
		},
		{
			name:      "unpaid_session",
			sessionID: "cs_1",
			mockSetup: func(m mocks) {
				expectEligible(m)
				unpaid := paidSession
				unpaid.Paid = false
				m.provider.EXPECT().GetSession(gomock.Any(), "cs_1").Return(unpaid, nil)
			},
			wantErr: auctionerrors.ErrPaymentNotVerified,
		},
		{
			name:      "session_for_other_auction",
			sessionID: "cs_1",
			mockSetup: func(m mocks) {
				expectEligible(m)
				other := paidSession
				other.Metadata = map[string]string{payments.MetadataAuctionID: "auction2"}
				m.provider.EXPECT().GetSession(gomock.Any(), "cs_1").Return(other, nil)
			},
			wantErr: auctionerrors.ErrPaymentNotVerified,
		},
		{
			name:      "amount_mismatch",
			sessionID: "cs_1",
			mockSetup: func(m mocks) {
				expectEligible(m)
				short := paidSession
				short.AmountTotal = 1100
				m.provider.EXPECT().GetSession(gomock.Any(), "cs_1").Return(short, nil)
			},
			wantErr: auctionerrors.ErrPaymentNotVerified,
		},
		{
			name:      "unknown_session",
			sessionID: "cs_1",
			mockSetup: func(m mocks) {
				expectEligible(m)
				m.provider.EXPECT().GetSession(gomock.Any(), "cs_1").Return(payments.Session{}, payments.ErrSessionNotFound)
			},
			wantErr: auctionerrors.ErrPaymentNotVerified,
		},
		{
			name:      "provider_down",
			sessionID: "cs_1",
			mockSetup: func(m mocks) {
				expectEligible(m)
				m.provider.EXPECT().GetSession(gomock.Any(), "cs_1").Return(payments.Session{}, errors.New("503"))
			},
			wantErr: auctionerrors.ErrPaymentProvider,
		},
		{
			name:      "lost_race_to_other_session",
			sessionID: "cs_1",
			mockSetup: func(m mocks) {
				expectEligible(m)
				m.provider.EXPECT().GetSession(gomock.Any(), "cs_1").Return(paidSession, nil)
				m.repo.EXPECT().CompletePayment(gomock.Any(), gomock.Any()).Return(models.Payment{}, false, auctionerrors.ErrAlreadyPaid)
			},
			wantErr: auctionerrors.ErrAlreadyPaid,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			service, m := newTestService(t)
			tc.mockSetup(m)

			payment, created, err := service.CompletePayment(context.Background(), caller, "auction1", tc.sessionID)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantCreated, created)
			require.Equal(t, "cs_1", payment.SessionID)
		})
	}
}

// Tests CreateAuction
func TestAuctionService_CreateAuction(t *testing.T) {
	now := start
	seller := models.Caller{UserID: "seller", Now: now}
	valid := func() models.NewAuction {
		return models.NewAuction{
			Title:         "  Brass lamp ",
			StartingPrice: amount("10.00"),
			EndTime:       now.Add(24 * time.Hour),
		}
	}

	t.Run("defaults_applied", func(t *testing.T) {
		service, m := newTestService(t)
		m.repo.EXPECT().CreateAuction(gomock.Any(), gomock.Any()).Return(nil)
		m.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

		a, err := service.CreateAuction(context.Background(), seller, valid())
		require.NoError(t, err)
		require.Equal(t, "Brass lamp", a.Title)
		require.Equal(t, "USD", a.Currency)
		require.Equal(t, now, a.StartTime)
		require.True(t, a.CurrentPrice.Equal(a.StartingPrice))
		require.Equal(t, models.AuctionOpen, a.Status)
		require.True(t, a.IsActive)
		require.Equal(t, "seller", a.SellerID)
	})

	t.Run("known_category", func(t *testing.T) {
		service, m := newTestService(t)
		in := valid()
		in.CategoryID = "cat-books"
		in.Currency = "eur"
		m.repo.EXPECT().GetCategory(gomock.Any(), "cat-books").Return(models.Category{CategoryID: "cat-books"}, nil)
		m.repo.EXPECT().CreateAuction(gomock.Any(), gomock.Any()).Return(nil)
		m.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

		a, err := service.CreateAuction(context.Background(), seller, in)
		require.NoError(t, err)
		require.Equal(t, "EUR", a.Currency)
	})

	invalid := []struct {
		name   string
		mutate func(in *models.NewAuction)
	}{
		{name: "empty_title", mutate: func(in *models.NewAuction) { in.Title = "   " }},
		{name: "long_title", mutate: func(in *models.NewAuction) { in.Title = strings.Repeat("x", 201) }},
		{name: "zero_price", mutate: func(in *models.NewAuction) { in.StartingPrice = decimal.Zero }},
		{name: "fractional_cents", mutate: func(in *models.NewAuction) { in.StartingPrice = amount("10.001") }},
		{name: "price_too_large", mutate: func(in *models.NewAuction) { in.StartingPrice = amount("100000000") }},
		{name: "bad_currency", mutate: func(in *models.NewAuction) { in.Currency = "dollars" }},
		{name: "end_before_start", mutate: func(in *models.NewAuction) { in.StartTime = now.Add(48 * time.Hour) }},
		{name: "end_in_past", mutate: func(in *models.NewAuction) {
			in.StartTime = now.Add(-48 * time.Hour)
			in.EndTime = now.Add(-time.Hour)
		}},
	}
	for _, tc := range invalid {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			service, _ := newTestService(t)
			in := valid()
			tc.mutate(&in)
			_, err := service.CreateAuction(context.Background(), seller, in)
			require.ErrorIs(t, err, auctionerrors.ErrInvalidAuction)
		})
	}

	t.Run("unknown_category", func(t *testing.T) {
		service, m := newTestService(t)
		in := valid()
		in.CategoryID = "cat-x"
		m.repo.EXPECT().GetCategory(gomock.Any(), "cat-x").Return(models.Category{}, auctionerrors.ErrCategoryNotFound)

		_, err := service.CreateAuction(context.Background(), seller, in)
		require.ErrorIs(t, err, auctionerrors.ErrInvalidAuction)
	})

	t.Run("anonymous", func(t *testing.T) {
		service, _ := newTestService(t)
		_, err := service.CreateAuction(context.Background(), models.Caller{Now: now}, valid())
		require.ErrorIs(t, err, auctionerrors.ErrUnauthorized)
	})
}

// Tests CloseExpiredAuctions
func TestAuctionService_CloseExpiredAuctions(t *testing.T) {
	service, m := newTestService(t)
	now := end.Add(time.Minute)

	ended := openAuction("12.00")
	ended.Status = models.AuctionEnded
	ended.WinnerID = "userX"
	m.repo.EXPECT().EndExpiredAuctions(gomock.Any(), now).Return([]models.AuctionItem{ended}, nil)
	m.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e events.Event) error {
			require.Equal(t, events.AuctionEnded, e.Type)
			require.Equal(t, "userX", e.UserID)
			return nil
		})

	n, err := service.CloseExpiredAuctions(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	m.repo.EXPECT().EndExpiredAuctions(gomock.Any(), now).Return(nil, errors.New("db down"))
	_, err = service.CloseExpiredAuctions(context.Background(), now)
	require.Error(t, err)
}

// Tests SeedCategories
func TestAuctionService_SeedCategories(t *testing.T) {
	service, m := newTestService(t)

	m.repo.EXPECT().CreateCategory(gomock.Any(), models.Category{CategoryID: "cat-home-garden", Name: "Home Garden", Slug: "home-garden"}).Return(nil)
	m.repo.EXPECT().CreateCategory(gomock.Any(), models.Category{CategoryID: "cat-books", Name: "Books", Slug: "books"}).Return(auctionerrors.ErrCategoryExists)

	require.NoError(t, service.SeedCategories(context.Background(), []string{" Home Garden ", "", "Books"}))
}
