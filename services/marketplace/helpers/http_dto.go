package helpers

import "github.com/shopspring/decimal"

// Request/Response DTOs
type RegisterUserRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"omitempty,email"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
}

type LoginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

type CreateAuctionRequest struct {
	Name            string          `json:"name" binding:"required"`
	Description     string          `json:"description"`
	StartingPrice   decimal.Decimal `json:"starting_price"`
	ReservePrice    decimal.Decimal `json:"reserve_price"`
	DurationMinutes int             `json:"duration_minutes" binding:"required,gt=0"`
}

// PlaceBidRequest carries the amount only; the bidder comes from the session
// and the item from the path
type PlaceBidRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type AddBalanceRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type BidResponse struct {
	BidID     string          `json:"bid_id"`
	ItemID    string          `json:"item_id"`
	UserID    string          `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt string          `json:"created_at"`
}

// Query parameters
type SearchQuery struct {
	Keyword string `form:"q"`
}

type BidHistoryQuery struct {
	Order string `form:"order" binding:"omitempty,oneof=ranked chronological"`
}

type TopBiddersQuery struct {
	Limit int `form:"limit" binding:"omitempty,gte=0"`
}
