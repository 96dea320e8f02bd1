package perftests

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	auction "github.com/shopmarcas/smallauctions/internal/auctionService"
	"github.com/shopmarcas/smallauctions/internal/models"
	"github.com/shopmarcas/smallauctions/internal/payments"
	"github.com/shopmarcas/smallauctions/internal/repository"
)

var (
	listedAt  = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	biddingAt = listedAt.Add(time.Minute)
	closedAt  = listedAt.Add(25 * time.Hour)
)

// setupService creates an auction service on the memory store with numAuctions open listings
func setupService(tb testing.TB, numAuctions int, startingPrice int64) (*auction.AuctionService, []string) {
	tb.Helper()

	svc := auction.NewAuctionService(repository.NewMemoryRepo(), payments.NewSandboxProvider(), nil)
	seller := models.Caller{UserID: "seller", Now: listedAt}

	ids := make([]string, 0, numAuctions)
	for i := 0; i < numAuctions; i++ {
		a, err := svc.CreateAuction(context.Background(), seller, models.NewAuction{
			Title:         fmt.Sprintf("Benchmark lot %d", i),
			Description:   "Benchmark listing",
			StartingPrice: decimal.NewFromInt(startingPrice),
			EndTime:       listedAt.Add(24 * time.Hour),
		})
		if err != nil {
			tb.Fatalf("failed to create auction: %v", err)
		}
		ids = append(ids, a.AuctionID)
	}
	return svc, ids
}

func bidder(id string) models.Caller {
	return models.Caller{UserID: id, Now: biddingAt}
}
