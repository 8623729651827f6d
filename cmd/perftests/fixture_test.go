package perftests

import (
	"fmt"
	"io"
	"os"
	"testing"

	marketplace "auction-marketplace/internal/marketplaceService"
	"auction-marketplace/internal/models"
	"auction-marketplace/internal/repository"
	"auction-marketplace/utils"

	"github.com/shopspring/decimal"
)

func TestMain(m *testing.M) {
	utils.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// benchMarket is a marketplace seeded with one seller, a pool of logged-in
// bidders and a number of open auctions
type benchMarket struct {
	svc      *marketplace.MarketplaceService
	seller   models.Session
	bidders  []models.Session
	itemIDs  []string
	startBid int64
}

func newBenchMarket(tb testing.TB, numBidders, numItems int) *benchMarket {
	tb.Helper()

	svc := marketplace.NewMarketplaceService(repository.NewMemoryRepo(),
		marketplace.WithDefaultBalance(decimal.NewFromInt(1_000_000_000)),
	)
	m := &benchMarket{svc: svc, startBid: 50}

	m.seller = m.login(tb, "seller")
	for i := 0; i < numBidders; i++ {
		m.bidders = append(m.bidders, m.login(tb, fmt.Sprintf("bidder_%d", i)))
	}

	for i := 0; i < numItems; i++ {
		item, err := svc.CreateAuction(m.seller,
			fmt.Sprintf("title_%d", i),
			"benchmark item",
			decimal.NewFromInt(m.startBid),
			decimal.NewFromInt(m.startBid*2),
			24*60,
		)
		if err != nil {
			tb.Fatalf("failed to create auction: %v", err)
		}
		m.itemIDs = append(m.itemIDs, item.ItemID)
	}
	return m
}

func (m *benchMarket) login(tb testing.TB, username string) models.Session {
	tb.Helper()

	if _, err := m.svc.RegisterUser(username, username+"@bench.local"); err != nil {
		tb.Fatalf("failed to register %s: %v", username, err)
	}
	session, err := m.svc.Login(username)
	if err != nil {
		tb.Fatalf("failed to log in %s: %v", username, err)
	}
	return session
}
