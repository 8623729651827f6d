package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a registered marketplace participant
type User struct {
	UserID     string          `json:"user_id"`
	Username   string          `json:"username"`
	Email      string          `json:"email"`
	Balance    decimal.Decimal `json:"balance"`
	BidHistory []string        `json:"bid_history"` // one itemID per accepted bid
	OwnedItems []string        `json:"owned_items"`
	SoldItems  []string        `json:"sold_items"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Clone returns a copy of the user that shares no slice storage with u
func (u User) Clone() User {
	u.BidHistory = append([]string(nil), u.BidHistory...)
	u.OwnedItems = append([]string(nil), u.OwnedItems...)
	u.SoldItems = append([]string(nil), u.SoldItems...)
	return u
}

// Item represents a listing put up for auction
type Item struct {
	ItemID        string          `json:"item_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	ReservePrice  decimal.Decimal `json:"reserve_price"`
	SellerID      string          `json:"seller_id"`
	StartTime     time.Time       `json:"start_time"`
	EndTime       time.Time       `json:"end_time"`
	Active        bool            `json:"active"`
}

// Bid represents a user's accepted bid on an item
type Bid struct {
	BidID     string          `json:"bid_id"`
	ItemID    string          `json:"item_id"`
	UserID    string          `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
	Seq       uint64          `json:"-"` // acceptance order within one auction
}

// Session is an explicit logged-in user context
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// BidderTotal is a bidder's highest amount on one auction
type BidderTotal struct {
	UserID string          `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

// AuctionStatus is the derived lifecycle state of an auction
type AuctionStatus string

const (
	StatusOpen    AuctionStatus = "open"
	StatusExpired AuctionStatus = "expired"
	StatusClosed  AuctionStatus = "closed"
)

// AuctionView is a read-only snapshot of an auction
type AuctionView struct {
	Item         Item            `json:"item"`
	Status       AuctionStatus   `json:"status"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	ReserveMet   bool            `json:"reserve_met"`
	BidCount     int             `json:"bid_count"`
	HighestBid   *Bid            `json:"highest_bid,omitempty"`
}

// SettlementOutcome describes how an auction was settled
type SettlementOutcome string

const (
	OutcomeSold                SettlementOutcome = "sold"
	OutcomeUnsoldNoBids        SettlementOutcome = "unsold_no_bids"
	OutcomeUnsoldReserveNotMet SettlementOutcome = "unsold_reserve_not_met"
)

// Settlement is the result of closing an auction
type Settlement struct {
	ItemID   string            `json:"item_id"`
	Outcome  SettlementOutcome `json:"outcome"`
	SellerID string            `json:"seller_id"`
	WinnerID string            `json:"winner_id,omitempty"` // highest bidder, informational when unsold
	Amount   decimal.Decimal   `json:"amount"`
}

// Profile is a user together with marketplace activity counters
type Profile struct {
	User            User `json:"user"`
	BidsPlaced      int  `json:"bids_placed"`
	AuctionsCreated int  `json:"auctions_created"`
}

// BidOrder selects how bid history is returned
type BidOrder string

const (
	OrderRanked        BidOrder = "ranked"
	OrderChronological BidOrder = "chronological"
)
