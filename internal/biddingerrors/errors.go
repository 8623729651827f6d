package biddingerrors

import "errors"

// Repository-level errors
var (
	ErrItemNotFound = errors.New("item not found")
	ErrUserNotFound = errors.New("user not found")
	ErrUserNoBids   = errors.New("user has not placed any bids")
)

// Session errors
var (
	ErrSessionRequired   = errors.New("login required")
	ErrDuplicateUsername = errors.New("username already taken")
)

// business logic errors
var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrBidTooLow         = errors.New("bid amount too low")
	ErrAuctionInactive   = errors.New("auction not active")
	ErrSelfBid           = errors.New("seller cannot bid on own auction")
	ErrInsufficientFunds = errors.New("insufficient funds")
)
