// Package auction implements the bidding engine for a single item.
//
// An Auction accepts bids that strictly outbid the current price, keeps
// every accepted bid in an append-only log and tracks each bidder's
// highest amount. Expiry is evaluated against the clock on every read;
// only Close flips the active flag.
//
// An Auction is not safe for concurrent use. Callers serialise access.
package auction

import (
	"fmt"
	"sort"
	"time"

	"auction-marketplace/internal/biddingerrors"
	"auction-marketplace/internal/models"
	"auction-marketplace/utils"

	"github.com/shopspring/decimal"
)

// Clock returns the current time
type Clock func() time.Time

// Auction owns one item's bid stream and settlement decision
type Auction struct {
	item models.Item
	now  Clock
	seq  uint64

	log    []models.Bid // chronological
	ranked []models.Bid // worst first, top of the ranking is the last element

	userHighest map[string]models.Bid // bid that set each bidder's highest amount
}

// New creates an active auction for item. A nil clock uses time.Now.
func New(item models.Item, now Clock) *Auction {
	if now == nil {
		now = time.Now
	}
	item.Active = true
	return &Auction{
		item:        item,
		now:         now,
		userHighest: make(map[string]models.Bid),
	}
}

// ItemID returns the identifier of the auctioned item
func (a *Auction) ItemID() string {
	return a.item.ItemID
}

// Item returns a copy of the auctioned item
func (a *Auction) Item() models.Item {
	return a.item
}

// IsActive reports whether the auction is open for bidding
func (a *Auction) IsActive() bool {
	return a.item.Active && !a.expired()
}

func (a *Auction) expired() bool {
	return a.now().After(a.item.EndTime)
}

// State returns the lifecycle state derived from the flag and the clock
func (a *Auction) State() models.AuctionStatus {
	switch {
	case !a.item.Active:
		return models.StatusClosed
	case a.expired():
		return models.StatusExpired
	default:
		return models.StatusOpen
	}
}

// PlaceBid validates and records a bid. Checks run in a fixed order and
// the first failure is returned with no change to the auction.
func (a *Auction) PlaceBid(userID string, amount decimal.Decimal) (models.Bid, error) {
	if !a.IsActive() {
		return models.Bid{}, fmt.Errorf("auction %s: %w", a.item.ItemID, biddingerrors.ErrAuctionInactive)
	}
	if amount.LessThanOrEqual(a.item.StartingPrice) {
		return models.Bid{}, fmt.Errorf("auction %s: %w - below starting price %s",
			a.item.ItemID, biddingerrors.ErrBidTooLow, a.item.StartingPrice)
	}
	if top, ok := a.HighestBid(); ok && amount.LessThanOrEqual(top.Amount) {
		return models.Bid{}, fmt.Errorf("auction %s: %w - below current highest %s",
			a.item.ItemID, biddingerrors.ErrBidTooLow, top.Amount)
	}
	if userID == a.item.SellerID {
		return models.Bid{}, fmt.Errorf("auction %s: %w", a.item.ItemID, biddingerrors.ErrSelfBid)
	}

	a.seq++
	bid := models.Bid{
		BidID:     utils.GenerateID(),
		ItemID:    a.item.ItemID,
		UserID:    userID,
		Amount:    amount,
		CreatedAt: a.now(),
		Seq:       a.seq,
	}

	a.log = append(a.log, bid)
	a.insertRanked(bid)

	// only accepted bids reach this point
	if prev, ok := a.userHighest[userID]; !ok || bid.Amount.GreaterThan(prev.Amount) {
		a.userHighest[userID] = bid
	}

	return bid, nil
}

// CurrentPrice is the starting price until the first bid, then the top bid amount
func (a *Auction) CurrentPrice() decimal.Decimal {
	if top, ok := a.HighestBid(); ok {
		return top.Amount
	}
	return a.item.StartingPrice
}

// HighestBid returns the top-ranked bid. ok is false when no bid exists.
func (a *Auction) HighestBid() (bid models.Bid, ok bool) {
	if len(a.ranked) == 0 {
		return models.Bid{}, false
	}
	return a.ranked[len(a.ranked)-1], true
}

// ReserveMet reports whether the current price reaches the reserve price
func (a *Auction) ReserveMet() bool {
	return a.CurrentPrice().GreaterThanOrEqual(a.item.ReservePrice)
}

// Close ends the auction. It returns false when the auction was already
// closed, in which case nothing changes.
func (a *Auction) Close() bool {
	if !a.item.Active {
		return false
	}
	a.item.Active = false
	return true
}

// BidCount returns the number of accepted bids
func (a *Auction) BidCount() int {
	return len(a.log)
}

// BidLog returns every accepted bid in acceptance order
func (a *Auction) BidLog() []models.Bid {
	return append([]models.Bid(nil), a.log...)
}

// RankedBids returns every accepted bid, best first
func (a *Auction) RankedBids() []models.Bid {
	out := make([]models.Bid, len(a.ranked))
	for i, b := range a.ranked {
		out[len(a.ranked)-1-i] = b
	}
	return out
}

// UserHighestBids maps each bidder to the highest amount they have bid
func (a *Auction) UserHighestBids() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(a.userHighest))
	for userID, bid := range a.userHighest {
		out[userID] = bid.Amount
	}
	return out
}

// TopBidders returns up to limit bidders ordered by their highest amount.
// Bidders tied on amount are ordered by who reached it first.
func (a *Auction) TopBidders(limit int) []models.BidderTotal {
	best := make([]models.Bid, 0, len(a.userHighest))
	for _, bid := range a.userHighest {
		best = append(best, bid)
	}
	sort.Slice(best, func(i, j int) bool {
		return outranks(best[i], best[j])
	})

	if limit >= 0 && len(best) > limit {
		best = best[:limit]
	}

	out := make([]models.BidderTotal, len(best))
	for i, bid := range best {
		out[i] = models.BidderTotal{UserID: bid.UserID, Amount: bid.Amount}
	}
	return out
}

// Snapshot returns a read-only view of the auction
func (a *Auction) Snapshot() models.AuctionView {
	view := models.AuctionView{
		Item:         a.item,
		Status:       a.State(),
		CurrentPrice: a.CurrentPrice(),
		ReserveMet:   a.ReserveMet(),
		BidCount:     len(a.log),
	}
	if top, ok := a.HighestBid(); ok {
		view.HighestBid = &top
	}
	return view
}
