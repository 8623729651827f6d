package marketplace

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"auction-marketplace/internal/auction"
	"auction-marketplace/internal/biddingerrors"
	"auction-marketplace/internal/models"
	"auction-marketplace/internal/repository"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced, goroutine-safe clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	svc   *MarketplaceService
	repo  *repository.MemoryRepo
	clock *fakeClock
}

func newFixture() *fixture {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	repo := repository.NewMemoryRepo()
	return &fixture{
		svc:   NewMarketplaceService(repo, WithClock(clock.Now)),
		repo:  repo,
		clock: clock,
	}
}

// register creates a user and logs them in
func (f *fixture) register(t *testing.T, username string) (models.User, models.Session) {
	t.Helper()
	user, err := f.svc.RegisterUser(username, username+"@example.com")
	require.NoError(t, err)
	session, err := f.svc.Login(username)
	require.NoError(t, err)
	return user, session
}

// listing creates a one-hour auction for the session user
func (f *fixture) listing(t *testing.T, seller models.Session, starting, reserve string) models.Item {
	t.Helper()
	item, err := f.svc.CreateAuction(seller, "Vintage Camera", "35mm film camera", dec(starting), dec(reserve), 60)
	require.NoError(t, err)
	return item
}

func (f *fixture) bid(t *testing.T, bidder models.Session, itemID, amount string) {
	t.Helper()
	f.clock.Advance(time.Second)
	_, err := f.svc.PlaceBid(bidder, itemID, dec(amount))
	require.NoError(t, err)
}

func (f *fixture) user(t *testing.T, userID string) models.User {
	t.Helper()
	user, err := f.repo.GetUser(userID)
	require.NoError(t, err)
	return user
}

// Tests RegisterUser
func TestMarketplaceService_RegisterUser(t *testing.T) {
	f := newFixture()

	user, err := f.svc.RegisterUser("alice", "a@x.com")
	require.NoError(t, err)
	_, parseErr := uuid.Parse(user.UserID)
	require.NoError(t, parseErr, "UserID should be a valid UUID")
	require.Equal(t, "alice", user.Username)
	require.Equal(t, "a@x.com", user.Email)
	require.True(t, dec("1000").Equal(user.Balance))

	tests := []struct {
		name          string
		username      string
		expectedError error
	}{
		{name: "duplicate_username", username: "alice", expectedError: biddingerrors.ErrDuplicateUsername},
		{name: "different_case_is_distinct", username: "Alice"},
		{name: "empty_username", username: "", expectedError: biddingerrors.ErrInvalidRequest},
		{name: "blank_username", username: "   ", expectedError: biddingerrors.ErrInvalidRequest},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.RegisterUser(tc.username, "b@x.com")
			if tc.expectedError != nil {
				require.Error(t, err)
				require.True(t, errors.Is(err, tc.expectedError), "expected error: %v, got: %v", tc.expectedError, err)
				return
			}
			require.NoError(t, err)
		})
	}

	// the rejected duplicate left the original untouched
	stored, err := f.repo.GetUserByUsername("alice")
	require.NoError(t, err)
	require.Equal(t, "a@x.com", stored.Email)
}

func TestMarketplaceService_RegisterUser_CustomBalance(t *testing.T) {
	svc := NewMarketplaceService(repository.NewMemoryRepo(), WithDefaultBalance(dec("250.50")))

	user, err := svc.RegisterUser("bob", "bob@example.com")
	require.NoError(t, err)
	require.True(t, dec("250.50").Equal(user.Balance))
}

// Tests Login, Authenticate and Logout
func TestMarketplaceService_Sessions(t *testing.T) {
	f := newFixture()
	alice, s1 := f.register(t, "alice")

	t.Run("unknown_username", func(t *testing.T) {
		_, err := f.svc.Login("nobody")
		require.ErrorIs(t, err, biddingerrors.ErrUserNotFound)
	})

	t.Run("authenticate", func(t *testing.T) {
		got, err := f.svc.Authenticate(s1.Token)
		require.NoError(t, err)
		require.Equal(t, alice.UserID, got.UserID)

		_, err = f.svc.Authenticate("")
		require.ErrorIs(t, err, biddingerrors.ErrSessionRequired)

		_, err = f.svc.Authenticate("not-a-token")
		require.ErrorIs(t, err, biddingerrors.ErrSessionRequired)
	})

	t.Run("sessions_are_independent", func(t *testing.T) {
		s2, err := f.svc.Login("alice")
		require.NoError(t, err)
		require.NotEqual(t, s1.Token, s2.Token)

		f.svc.Logout(s1.Token)

		_, err = f.svc.Authenticate(s1.Token)
		require.ErrorIs(t, err, biddingerrors.ErrSessionRequired)
		_, err = f.svc.GetProfile(s1)
		require.ErrorIs(t, err, biddingerrors.ErrSessionRequired)

		_, err = f.svc.GetProfile(s2)
		require.NoError(t, err)
	})

	t.Run("logout_unknown_token", func(t *testing.T) {
		f.svc.Logout("not-a-token")
		f.svc.Logout("")
	})

	t.Run("forged_session", func(t *testing.T) {
		_, bob := f.register(t, "bob")
		forged := models.Session{Token: bob.Token, UserID: alice.UserID}
		_, err := f.svc.GetProfile(forged)
		require.ErrorIs(t, err, biddingerrors.ErrSessionRequired)
	})
}

// Tests CreateAuction
func TestMarketplaceService_CreateAuction(t *testing.T) {
	f := newFixture()
	seller, session := f.register(t, "seller")

	tests := []struct {
		name          string
		session       models.Session
		itemName      string
		starting      string
		reserve       string
		duration      int
		expectedError error
	}{
		{name: "valid_auction", session: session, itemName: "Lamp", starting: "10", reserve: "50", duration: 30},
		{name: "zero_prices", session: session, itemName: "Free Lamp", starting: "0", reserve: "0", duration: 1},
		{name: "no_session", session: models.Session{}, itemName: "Lamp", starting: "10", reserve: "50", duration: 30, expectedError: biddingerrors.ErrSessionRequired},
		{name: "empty_name", session: session, itemName: "", starting: "10", reserve: "50", duration: 30, expectedError: biddingerrors.ErrInvalidRequest},
		{name: "negative_starting_price", session: session, itemName: "Lamp", starting: "-1", reserve: "50", duration: 30, expectedError: biddingerrors.ErrInvalidRequest},
		{name: "negative_reserve_price", session: session, itemName: "Lamp", starting: "10", reserve: "-5", duration: 30, expectedError: biddingerrors.ErrInvalidRequest},
		{name: "zero_duration", session: session, itemName: "Lamp", starting: "10", reserve: "50", duration: 0, expectedError: biddingerrors.ErrInvalidRequest},
	}

	created := 0
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			item, err := f.svc.CreateAuction(tc.session, tc.itemName, "desk lamp", dec(tc.starting), dec(tc.reserve), tc.duration)
			if tc.expectedError != nil {
				require.Error(t, err)
				require.True(t, errors.Is(err, tc.expectedError), "expected error: %v, got: %v", tc.expectedError, err)
				return
			}

			require.NoError(t, err)
			created++
			_, parseErr := uuid.Parse(item.ItemID)
			require.NoError(t, parseErr, "ItemID should be a valid UUID")
			require.Equal(t, seller.UserID, item.SellerID)
			require.True(t, item.Active)
			require.Equal(t, f.clock.Now(), item.StartTime)
			require.Equal(t, item.StartTime.Add(time.Duration(tc.duration)*time.Minute), item.EndTime)
			require.True(t, dec(tc.starting).Equal(item.StartingPrice))
			require.True(t, dec(tc.reserve).Equal(item.ReservePrice))
		})
	}

	profile, err := f.svc.GetProfile(session)
	require.NoError(t, err)
	require.Equal(t, created, profile.AuctionsCreated)
	require.Len(t, f.repo.GetAuctionsBySeller(seller.UserID), created)
}

// Tests PlaceBid directory checks and engine delegation
func TestMarketplaceService_PlaceBid(t *testing.T) {
	f := newFixture()
	_, seller := f.register(t, "seller")
	bob, bobSession := f.register(t, "bob")
	item := f.listing(t, seller, "10", "50")
	f.bid(t, bobSession, item.ItemID, "20")

	_, carol := f.register(t, "carol")
	_, err := f.svc.AddBalance(carol, dec("500"))
	require.NoError(t, err)

	tests := []struct {
		name          string
		session       models.Session
		itemID        string
		amount        string
		expectedError error
	}{
		{name: "valid_outbid", session: carol, itemID: item.ItemID, amount: "25"},
		{name: "no_session", session: models.Session{}, itemID: item.ItemID, amount: "100", expectedError: biddingerrors.ErrSessionRequired},
		{name: "unknown_item", session: carol, itemID: "itemX", amount: "100", expectedError: biddingerrors.ErrItemNotFound},
		{name: "empty_item", session: carol, itemID: "", amount: "100", expectedError: biddingerrors.ErrItemNotFound},
		{name: "zero_amount", session: carol, itemID: item.ItemID, amount: "0", expectedError: biddingerrors.ErrBidTooLow},
		{name: "negative_amount", session: carol, itemID: item.ItemID, amount: "-5", expectedError: biddingerrors.ErrBidTooLow},
		{name: "insufficient_funds", session: bobSession, itemID: item.ItemID, amount: "1000.01", expectedError: biddingerrors.ErrInsufficientFunds},
		{name: "below_current_highest", session: bobSession, itemID: item.ItemID, amount: "25", expectedError: biddingerrors.ErrBidTooLow},
		{name: "self_bid", session: seller, itemID: item.ItemID, amount: "200", expectedError: biddingerrors.ErrSelfBid},
		{name: "entire_balance", session: bobSession, itemID: item.ItemID, amount: "1000"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			before, err := f.svc.GetBidHistory(item.ItemID, models.OrderChronological)
			require.NoError(t, err)

			bid, err := f.svc.PlaceBid(tc.session, tc.itemID, dec(tc.amount))

			after, historyErr := f.svc.GetBidHistory(item.ItemID, models.OrderChronological)
			require.NoError(t, historyErr)

			if tc.expectedError != nil {
				require.Error(t, err)
				require.True(t, errors.Is(err, tc.expectedError), "expected error: %v, got: %v", tc.expectedError, err)
				require.Equal(t, before, after)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.session.UserID, bid.UserID)
			require.True(t, dec(tc.amount).Equal(bid.Amount))
			require.Len(t, after, len(before)+1)
		})
	}

	t.Run("zero_bid_on_free_listing", func(t *testing.T) {
		free := f.listing(t, seller, "0", "0")
		_, err := f.svc.PlaceBid(carol, free.ItemID, dec("0"))
		require.ErrorIs(t, err, biddingerrors.ErrBidTooLow)
	})

	// balance is checked, never held
	require.True(t, dec("1000").Equal(f.user(t, bob.UserID).Balance))
	require.Equal(t, []string{item.ItemID, item.ItemID}, f.user(t, bob.UserID).BidHistory)
}

// several affordable bids may jointly exceed the balance
func TestMarketplaceService_PlaceBid_NoEscrow(t *testing.T) {
	f := newFixture()
	_, seller := f.register(t, "seller")
	bob, bobSession := f.register(t, "bob")

	first := f.listing(t, seller, "10", "50")
	second := f.listing(t, seller, "10", "50")
	f.bid(t, bobSession, first.ItemID, "700")
	f.bid(t, bobSession, second.ItemID, "700")

	require.True(t, dec("1000").Equal(f.user(t, bob.UserID).Balance))

	items, err := f.svc.GetItemsByUser(bob.UserID)
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestMarketplaceService_PlaceBid_Expired(t *testing.T) {
	f := newFixture()
	_, seller := f.register(t, "seller")
	_, bob := f.register(t, "bob")
	item := f.listing(t, seller, "10", "50")

	f.clock.Advance(61 * time.Minute)

	_, err := f.svc.PlaceBid(bob, item.ItemID, dec("20"))
	require.ErrorIs(t, err, biddingerrors.ErrAuctionInactive)

	view, err := f.svc.GetAuction(item.ItemID)
	require.NoError(t, err)
	require.Equal(t, models.StatusExpired, view.Status)
	require.True(t, dec("10").Equal(view.CurrentPrice))
	require.Empty(t, f.svc.ListActiveAuctions())
}

// Tests Settle outcomes
func TestMarketplaceService_Settle(t *testing.T) {
	t.Run("reserve_not_met_then_met", func(t *testing.T) {
		// reserve not met: nothing moves
		f := newFixture()
		sellerUser, seller := f.register(t, "seller")
		bobUser, bob := f.register(t, "bob")
		carolUser, carol := f.register(t, "carol")
		item := f.listing(t, seller, "10", "50")

		_, err := f.svc.PlaceBid(seller, item.ItemID, dec("20"))
		require.ErrorIs(t, err, biddingerrors.ErrSelfBid)
		f.bid(t, bob, item.ItemID, "20")
		f.bid(t, carol, item.ItemID, "30")
		f.bid(t, bob, item.ItemID, "45")

		view, err := f.svc.GetAuction(item.ItemID)
		require.NoError(t, err)
		require.True(t, dec("45").Equal(view.CurrentPrice))
		require.False(t, view.ReserveMet)

		// same auction with an additional bid of 60 meets the reserve
		f2 := newFixture()
		s2User, s2 := f2.register(t, "seller")
		b2User, b2 := f2.register(t, "bob")
		_, c2 := f2.register(t, "carol")
		item2 := f2.listing(t, s2, "10", "50")
		f2.bid(t, b2, item2.ItemID, "20")
		f2.bid(t, c2, item2.ItemID, "30")
		f2.bid(t, b2, item2.ItemID, "45")
		f2.bid(t, b2, item2.ItemID, "60")

		settlement, err := f.svc.Settle(item.ItemID)
		require.NoError(t, err)
		require.Equal(t, models.OutcomeUnsoldReserveNotMet, settlement.Outcome)
		require.Equal(t, bobUser.UserID, settlement.WinnerID)
		require.True(t, dec("45").Equal(settlement.Amount))
		for _, u := range []models.User{sellerUser, bobUser, carolUser} {
			got := f.user(t, u.UserID)
			require.True(t, dec("1000").Equal(got.Balance))
			require.Empty(t, got.OwnedItems)
			require.Empty(t, got.SoldItems)
		}

		settlement, err = f2.svc.Settle(item2.ItemID)
		require.NoError(t, err)
		require.Equal(t, models.OutcomeSold, settlement.Outcome)
		require.Equal(t, b2User.UserID, settlement.WinnerID)
		require.Equal(t, s2User.UserID, settlement.SellerID)
		require.True(t, dec("60").Equal(settlement.Amount))

		winner := f2.user(t, b2User.UserID)
		sellerAfter := f2.user(t, s2User.UserID)
		require.True(t, dec("940").Equal(winner.Balance))
		require.True(t, dec("1060").Equal(sellerAfter.Balance))
		require.Equal(t, []string{item2.ItemID}, winner.OwnedItems)
		require.Equal(t, []string{item2.ItemID}, sellerAfter.SoldItems)
		require.Empty(t, sellerAfter.OwnedItems)
		require.Empty(t, winner.SoldItems)
	})

	t.Run("no_bids", func(t *testing.T) {
		f := newFixture()
		_, seller := f.register(t, "seller")
		item := f.listing(t, seller, "10", "50")

		settlement, err := f.svc.Settle(item.ItemID)
		require.NoError(t, err)
		require.Equal(t, models.OutcomeUnsoldNoBids, settlement.Outcome)
		require.Empty(t, settlement.WinnerID)
	})

	t.Run("already_ended", func(t *testing.T) {
		f := newFixture()
		_, seller := f.register(t, "seller")
		bobUser, bob := f.register(t, "bob")
		item := f.listing(t, seller, "10", "50")
		f.bid(t, bob, item.ItemID, "80")

		_, err := f.svc.Settle(item.ItemID)
		require.NoError(t, err)
		afterFirst := f.user(t, bobUser.UserID)

		_, err = f.svc.Settle(item.ItemID)
		require.ErrorIs(t, err, biddingerrors.ErrAuctionInactive)
		require.Equal(t, afterFirst, f.user(t, bobUser.UserID))
		require.Equal(t, []string{item.ItemID}, afterFirst.OwnedItems)

		_, err = f.svc.PlaceBid(bob, item.ItemID, dec("90"))
		require.ErrorIs(t, err, biddingerrors.ErrAuctionInactive)
	})

	t.Run("unknown_item", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.Settle("itemX")
		require.ErrorIs(t, err, biddingerrors.ErrItemNotFound)
	})

	t.Run("expired_auction_is_already_ended", func(t *testing.T) {
		f := newFixture()
		sellerUser, seller := f.register(t, "seller")
		bobUser, bob := f.register(t, "bob")
		item := f.listing(t, seller, "10", "50")
		f.bid(t, bob, item.ItemID, "75")

		f.clock.Advance(2 * time.Hour)

		_, err := f.svc.Settle(item.ItemID)
		require.ErrorIs(t, err, biddingerrors.ErrAuctionInactive)

		view, err := f.svc.GetAuction(item.ItemID)
		require.NoError(t, err)
		require.Equal(t, models.StatusExpired, view.Status)

		bobAfter := f.user(t, bobUser.UserID)
		sellerAfter := f.user(t, sellerUser.UserID)
		require.True(t, dec("1000").Equal(bobAfter.Balance))
		require.True(t, dec("1000").Equal(sellerAfter.Balance))
		require.Empty(t, bobAfter.OwnedItems)
		require.Empty(t, sellerAfter.SoldItems)
	})

	t.Run("winner_cannot_pay", func(t *testing.T) {
		f := newFixture()
		sellerUser, seller := f.register(t, "seller")
		bobUser, bob := f.register(t, "bob")
		first := f.listing(t, seller, "10", "50")
		second := f.listing(t, seller, "10", "50")
		f.bid(t, bob, first.ItemID, "700")
		f.bid(t, bob, second.ItemID, "700")

		_, err := f.svc.Settle(first.ItemID)
		require.NoError(t, err)

		_, err = f.svc.Settle(second.ItemID)
		require.ErrorIs(t, err, biddingerrors.ErrInsufficientFunds)

		view, err := f.svc.GetAuction(second.ItemID)
		require.NoError(t, err)
		require.Equal(t, models.StatusOpen, view.Status)
		require.True(t, dec("300").Equal(f.user(t, bobUser.UserID).Balance))
		require.True(t, dec("1700").Equal(f.user(t, sellerUser.UserID).Balance))

		// a top-up lets the settlement go through
		_, err = f.svc.AddBalance(bob, dec("400"))
		require.NoError(t, err)
		settlement, err := f.svc.Settle(second.ItemID)
		require.NoError(t, err)
		require.Equal(t, models.OutcomeSold, settlement.Outcome)
		require.True(t, decimal.Zero.Equal(f.user(t, bobUser.UserID).Balance))
		require.True(t, dec("2400").Equal(f.user(t, sellerUser.UserID).Balance))
	})
}

// Tests AddBalance and GetProfile
func TestMarketplaceService_Balance(t *testing.T) {
	f := newFixture()
	_, session := f.register(t, "alice")

	user, err := f.svc.AddBalance(session, dec("12.34"))
	require.NoError(t, err)
	require.True(t, dec("1012.34").Equal(user.Balance))

	_, err = f.svc.AddBalance(session, dec("0"))
	require.ErrorIs(t, err, biddingerrors.ErrInvalidRequest)
	_, err = f.svc.AddBalance(session, dec("-1"))
	require.ErrorIs(t, err, biddingerrors.ErrInvalidRequest)
	_, err = f.svc.AddBalance(models.Session{}, dec("1"))
	require.ErrorIs(t, err, biddingerrors.ErrSessionRequired)

	profile, err := f.svc.GetProfile(session)
	require.NoError(t, err)
	require.True(t, dec("1012.34").Equal(profile.User.Balance))
	require.Zero(t, profile.BidsPlaced)
	require.Zero(t, profile.AuctionsCreated)
}

// Tests Search, ListActiveAuctions, GetBidHistory and TopBidders
func TestMarketplaceService_Queries(t *testing.T) {
	f := newFixture()
	_, seller := f.register(t, "seller")

	camera := f.listing(t, seller, "10", "50")
	lamp, err := f.svc.CreateAuction(seller, "Desk Lamp", "brass, works", dec("5"), dec("5"), 10)
	require.NoError(t, err)

	sessions := make([]models.Session, 7)
	for i := range sessions {
		_, sessions[i] = f.register(t, fmt.Sprintf("bidder-%d", i))
	}
	for i, s := range sessions {
		f.bid(t, s, camera.ItemID, fmt.Sprintf("%d", 20+i*5))
	}
	f.bid(t, sessions[0], camera.ItemID, "100")

	_, err = f.svc.Settle(lamp.ItemID)
	require.NoError(t, err)

	t.Run("search_case_sensitive", func(t *testing.T) {
		require.Len(t, f.svc.Search("Camera"), 1)
		require.Empty(t, f.svc.Search("camera lens"))
		require.Len(t, f.svc.Search("film"), 1)
		require.Empty(t, f.svc.Search("FILM"))
	})

	t.Run("search_includes_closed", func(t *testing.T) {
		views := f.svc.Search("brass")
		require.Len(t, views, 1)
		require.Equal(t, models.StatusClosed, views[0].Status)
		require.Len(t, f.svc.Search(""), 2)
	})

	t.Run("active_only", func(t *testing.T) {
		views := f.svc.ListActiveAuctions()
		require.Len(t, views, 1)
		require.Equal(t, camera.ItemID, views[0].Item.ItemID)
		require.Equal(t, 8, views[0].BidCount)
		require.NotNil(t, views[0].HighestBid)
		require.True(t, dec("100").Equal(views[0].HighestBid.Amount))
	})

	t.Run("bid_history_orders", func(t *testing.T) {
		ranked, err := f.svc.GetBidHistory(camera.ItemID, models.OrderRanked)
		require.NoError(t, err)
		require.Len(t, ranked, 8)
		require.True(t, dec("100").Equal(ranked[0].Amount))

		chronological, err := f.svc.GetBidHistory(camera.ItemID, models.OrderChronological)
		require.NoError(t, err)
		require.True(t, dec("20").Equal(chronological[0].Amount))
		require.True(t, dec("100").Equal(chronological[7].Amount))

		defaulted, err := f.svc.GetBidHistory(camera.ItemID, "")
		require.NoError(t, err)
		require.Equal(t, ranked, defaulted)

		empty, err := f.svc.GetBidHistory(lamp.ItemID, models.OrderRanked)
		require.NoError(t, err)
		require.Empty(t, empty)
		require.NotNil(t, empty)

		_, err = f.svc.GetBidHistory(camera.ItemID, "sideways")
		require.ErrorIs(t, err, biddingerrors.ErrInvalidRequest)

		_, err = f.svc.GetBidHistory("itemX", models.OrderRanked)
		require.ErrorIs(t, err, biddingerrors.ErrItemNotFound)
	})

	t.Run("top_bidders", func(t *testing.T) {
		top, err := f.svc.TopBidders(camera.ItemID, 0)
		require.NoError(t, err)
		require.Len(t, top, DefaultTopBiddersLimit)
		require.Equal(t, sessions[0].UserID, top[0].UserID)
		require.True(t, dec("100").Equal(top[0].Amount))
		for i := 1; i < len(top); i++ {
			require.True(t, top[i-1].Amount.GreaterThan(top[i].Amount))
		}

		top, err = f.svc.TopBidders(camera.ItemID, 3)
		require.NoError(t, err)
		require.Len(t, top, 3)

		top, err = f.svc.TopBidders(camera.ItemID, 50)
		require.NoError(t, err)
		require.Len(t, top, 7)

		_, err = f.svc.TopBidders("itemX", 5)
		require.ErrorIs(t, err, biddingerrors.ErrItemNotFound)
	})

	t.Run("items_by_user", func(t *testing.T) {
		items, err := f.svc.GetItemsByUser(sessions[0].UserID)
		require.NoError(t, err)
		require.Len(t, items, 1)
		require.Equal(t, camera.ItemID, items[0].ItemID)

		profile, err := f.svc.GetProfile(sessions[0])
		require.NoError(t, err)
		require.Equal(t, 2, profile.BidsPlaced)

		_, err = f.svc.GetItemsByUser(seller.UserID)
		require.ErrorIs(t, err, biddingerrors.ErrUserNoBids)
		_, err = f.svc.GetItemsByUser("userX")
		require.ErrorIs(t, err, biddingerrors.ErrUserNotFound)
		_, err = f.svc.GetItemsByUser("")
		require.ErrorIs(t, err, biddingerrors.ErrInvalidRequest)
	})
}

// concurrent bidders never produce a log that breaks the ordering rules
func TestMarketplaceService_ConcurrentBids(t *testing.T) {
	f := newFixture()
	_, seller := f.register(t, "seller")
	item := f.listing(t, seller, "10", "50")

	bidders := make([]models.Session, 20)
	for i := range bidders {
		_, bidders[i] = f.register(t, fmt.Sprintf("bidder-%d", i))
	}

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			_, _ = f.svc.PlaceBid(bidders[i%len(bidders)], item.ItemID, decimal.NewFromInt(int64(11+i)))
		}()
	}
	wg.Wait()

	log, err := f.svc.GetBidHistory(item.ItemID, models.OrderChronological)
	require.NoError(t, err)
	require.NotEmpty(t, log)
	for i := 1; i < len(log); i++ {
		require.True(t, log[i].Amount.GreaterThan(log[i-1].Amount))
	}

	view, err := f.svc.GetAuction(item.ItemID)
	require.NoError(t, err)
	require.True(t, log[len(log)-1].Amount.Equal(view.CurrentPrice))
}

// Tests repository failures are wrapped and surfaced
func TestMarketplaceService_RepositoryErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := repository.NewMockMarketplaceDB(ctrl)
	service := NewMarketplaceService(mockRepo)
	repoErr := errors.New("repo failure")

	t.Run("username_lookup_fails", func(t *testing.T) {
		mockRepo.EXPECT().GetUserByUsername("alice").Return(models.User{}, repoErr)

		_, err := service.RegisterUser("alice", "a@x.com")
		require.ErrorIs(t, err, repoErr)
	})

	t.Run("add_user_fails", func(t *testing.T) {
		mockRepo.EXPECT().GetUserByUsername("bob").Return(models.User{}, biddingerrors.ErrUserNotFound)
		mockRepo.EXPECT().AddUser(gomock.Any()).Return(repoErr)

		_, err := service.RegisterUser("bob", "b@x.com")
		require.ErrorIs(t, err, repoErr)
	})

	t.Run("save_session_fails", func(t *testing.T) {
		mockRepo.EXPECT().GetUserByUsername("carol").Return(models.User{UserID: "user3", Username: "carol"}, nil)
		mockRepo.EXPECT().SaveSession(gomock.Any()).Return(repoErr)

		_, err := service.Login("carol")
		require.ErrorIs(t, err, repoErr)
	})

	t.Run("auction_lookup_fails", func(t *testing.T) {
		session := models.Session{Token: "token1", UserID: "user1"}
		mockRepo.EXPECT().GetSession("token1").Return(session, nil)
		mockRepo.EXPECT().GetUser("user1").Return(models.User{UserID: "user1", Balance: dec("1000")}, nil)
		mockRepo.EXPECT().GetAuction("item1").Return(nil, repoErr)

		_, err := service.PlaceBid(session, "item1", dec("20"))
		require.ErrorIs(t, err, repoErr)
	})

	t.Run("settle_lookup_fails", func(t *testing.T) {
		mockRepo.EXPECT().GetAuction("item2").Return(nil, repoErr)

		_, err := service.Settle("item2")
		require.ErrorIs(t, err, repoErr)
	})

	t.Run("settle_write_fails_leaves_everything_unchanged", func(t *testing.T) {
		a := auction.New(models.Item{
			ItemID:        "item3",
			SellerID:      "seller",
			StartingPrice: dec("10"),
			ReservePrice:  dec("50"),
			EndTime:       time.Now().Add(time.Hour),
		}, nil)
		_, err := a.PlaceBid("bob", dec("60"))
		require.NoError(t, err)

		mockRepo.EXPECT().GetAuction("item3").Return(a, nil)
		mockRepo.EXPECT().GetUser("bob").Return(models.User{UserID: "bob", Username: "bob", Balance: dec("1000")}, nil)
		mockRepo.EXPECT().GetUser("seller").Return(models.User{UserID: "seller", Username: "seller", Balance: dec("1000")}, nil)
		mockRepo.EXPECT().UpdateUsers(gomock.Any(), gomock.Any()).Return(repoErr)

		_, err = service.Settle("item3")
		require.ErrorIs(t, err, repoErr)
		require.True(t, a.IsActive(), "auction stays open when funds cannot be written")
	})
}
