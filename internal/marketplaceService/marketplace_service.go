package marketplace

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"auction-marketplace/internal/auction"
	"auction-marketplace/internal/biddingerrors"
	"auction-marketplace/internal/metrics"
	"auction-marketplace/internal/models"
	"auction-marketplace/internal/repository"
	"auction-marketplace/utils"

	"github.com/shopspring/decimal"
)

// DefaultTopBiddersLimit is the number of bidders returned when no limit is given
const DefaultTopBiddersLimit = 5

// DefaultInitialBalance is credited to every newly registered user
var DefaultInitialBalance = decimal.NewFromInt(1000)

// MarketplaceService coordinates users, sessions and auctions.
//
// Every mutation runs under a single write lock so checks and effects that
// span several users and an auction are atomic. Reads that touch an
// auction engine take the read lock.
type MarketplaceService struct {
	mu   sync.RWMutex
	repo repository.MarketplaceDB

	now             func() time.Time
	defaultBalance  decimal.Decimal
	topBiddersLimit int
}

// Option configures a MarketplaceService
type Option func(*MarketplaceService)

// WithClock overrides the time source used for auction timing
func WithClock(now func() time.Time) Option {
	return func(s *MarketplaceService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDefaultBalance sets the balance credited on registration
func WithDefaultBalance(balance decimal.Decimal) Option {
	return func(s *MarketplaceService) {
		s.defaultBalance = balance
	}
}

// WithTopBiddersLimit sets the default number of top bidders returned
func WithTopBiddersLimit(limit int) Option {
	return func(s *MarketplaceService) {
		if limit > 0 {
			s.topBiddersLimit = limit
		}
	}
}

// NewMarketplaceService creates a new MarketplaceService instance
func NewMarketplaceService(repo repository.MarketplaceDB, opts ...Option) *MarketplaceService {
	s := &MarketplaceService{
		repo:            repo,
		now:             time.Now,
		defaultBalance:  DefaultInitialBalance,
		topBiddersLimit: DefaultTopBiddersLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterUser creates a user with the default balance. Usernames are
// unique and compared exactly.
func (s *MarketplaceService) RegisterUser(username, email string) (models.User, error) {
	if strings.TrimSpace(username) == "" {
		return models.User{}, fmt.Errorf("service: %w - empty username", biddingerrors.ErrInvalidRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.repo.GetUserByUsername(username); err == nil {
		return models.User{}, fmt.Errorf("service: %w - %q", biddingerrors.ErrDuplicateUsername, username)
	} else if !errors.Is(err, biddingerrors.ErrUserNotFound) {
		return models.User{}, fmt.Errorf("service: failed to check username %q: %w", username, err)
	}

	user := models.User{
		UserID:     utils.GenerateID(),
		Username:   username,
		Email:      email,
		Balance:    s.defaultBalance,
		BidHistory: []string{},
		OwnedItems: []string{},
		SoldItems:  []string{},
		CreatedAt:  s.now().UTC(),
	}

	if err := s.repo.AddUser(user); err != nil {
		return models.User{}, fmt.Errorf("service: failed to register user %q: %w", username, err)
	}

	metrics.UsersRegisteredTotal.Inc()
	return user, nil
}

// Login opens a new session for the user with the given username.
// No credential beyond the username is checked.
func (s *MarketplaceService) Login(username string) (models.Session, error) {
	user, err := s.repo.GetUserByUsername(username)
	if err != nil {
		return models.Session{}, fmt.Errorf("service: login failed: %w", err)
	}

	token, err := utils.NewSessionToken()
	if err != nil {
		return models.Session{}, fmt.Errorf("service: failed to generate session token: %w", err)
	}

	session := models.Session{
		Token:     token,
		UserID:    user.UserID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.SaveSession(session); err != nil {
		return models.Session{}, fmt.Errorf("service: failed to open session for %q: %w", username, err)
	}

	return session, nil
}

// Logout ends the session. It never fails.
func (s *MarketplaceService) Logout(token string) {
	s.repo.DeleteSession(token)
}

// Authenticate resolves a session token
func (s *MarketplaceService) Authenticate(token string) (models.Session, error) {
	if token == "" {
		return models.Session{}, fmt.Errorf("service: %w - missing session token", biddingerrors.ErrSessionRequired)
	}

	session, err := s.repo.GetSession(token)
	if err != nil {
		return models.Session{}, fmt.Errorf("service: %w", err)
	}
	return session, nil
}

// requireUser returns the user behind a live session. Callers hold s.mu.
func (s *MarketplaceService) requireUser(session models.Session) (models.User, error) {
	if session.Token == "" || session.UserID == "" {
		return models.User{}, fmt.Errorf("service: %w", biddingerrors.ErrSessionRequired)
	}

	stored, err := s.repo.GetSession(session.Token)
	if err != nil {
		return models.User{}, fmt.Errorf("service: %w", err)
	}
	if stored.UserID != session.UserID {
		return models.User{}, fmt.Errorf("service: %w - session does not match user", biddingerrors.ErrSessionRequired)
	}

	user, err := s.repo.GetUser(session.UserID)
	if err != nil {
		return models.User{}, fmt.Errorf("service: failed to load session user: %w", err)
	}
	return user, nil
}

// CreateAuction lists a new item for the session user and starts its auction
func (s *MarketplaceService) CreateAuction(session models.Session, name, description string, startingPrice, reservePrice decimal.Decimal, durationMinutes int) (models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seller, err := s.requireUser(session)
	if err != nil {
		return models.Item{}, err
	}

	switch {
	case strings.TrimSpace(name) == "":
		return models.Item{}, fmt.Errorf("service: %w - empty item name", biddingerrors.ErrInvalidRequest)
	case startingPrice.IsNegative() || reservePrice.IsNegative():
		return models.Item{}, fmt.Errorf("service: %w - negative price", biddingerrors.ErrInvalidRequest)
	case durationMinutes <= 0:
		return models.Item{}, fmt.Errorf("service: %w - duration must be positive", biddingerrors.ErrInvalidRequest)
	}

	start := s.now()
	item := models.Item{
		ItemID:        utils.GenerateID(),
		Name:          name,
		Description:   description,
		StartingPrice: startingPrice,
		ReservePrice:  reservePrice,
		SellerID:      seller.UserID,
		StartTime:     start,
		EndTime:       start.Add(time.Duration(durationMinutes) * time.Minute),
	}

	a := auction.New(item, s.now)
	if err := s.repo.AddAuction(a); err != nil {
		return models.Item{}, fmt.Errorf("service: failed to create auction %q: %w", name, err)
	}

	metrics.AuctionsCreatedTotal.Inc()
	return a.Item(), nil
}

// PlaceBid checks the session, the item and the bidder's balance, then
// hands the bid to the auction. The balance is checked, not held.
func (s *MarketplaceService) PlaceBid(session models.Session, itemID string, amount decimal.Decimal) (models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bid, err := s.placeBid(session, itemID, amount)
	if err != nil {
		metrics.BidsTotal.WithLabelValues(rejectionReason(err)).Inc()
		return models.Bid{}, err
	}

	metrics.BidsTotal.WithLabelValues("accepted").Inc()
	return bid, nil
}

func (s *MarketplaceService) placeBid(session models.Session, itemID string, amount decimal.Decimal) (models.Bid, error) {
	bidder, err := s.requireUser(session)
	if err != nil {
		return models.Bid{}, err
	}
	a, err := s.repo.GetAuction(itemID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to place bid: %w", err)
	}

	if bidder.Balance.LessThan(amount) {
		return models.Bid{}, fmt.Errorf("service: %w - balance %s is below bid %s",
			biddingerrors.ErrInsufficientFunds, bidder.Balance, amount)
	}

	bid, err := a.PlaceBid(bidder.UserID, amount)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: bid rejected: %w", err)
	}

	// bidder was loaded under the write lock, so this update cannot race
	bidder.BidHistory = append(bidder.BidHistory, itemID)
	if err := s.repo.UpdateUser(bidder); err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to record bid for user %s: %w", bidder.UserID, err)
	}

	return bid, nil
}

// Settle closes an auction and, when the reserve is met, moves the winning
// amount from the winner to the seller along with ownership of the item.
//
// Only an active auction can be settled; a closed or expired one is
// rejected as already ended. If the winner can no longer cover the winning
// amount, nothing changes and the auction stays open.
func (s *MarketplaceService) Settle(itemID string) (models.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.repo.GetAuction(itemID)
	if err != nil {
		return models.Settlement{}, fmt.Errorf("service: failed to settle auction: %w", err)
	}
	if !a.IsActive() {
		return models.Settlement{}, fmt.Errorf("service: %w - auction %s already ended", biddingerrors.ErrAuctionInactive, itemID)
	}

	item := a.Item()
	settlement := models.Settlement{ItemID: itemID, SellerID: item.SellerID}

	top, ok := a.HighestBid()
	switch {
	case !ok:
		a.Close()
		settlement.Outcome = models.OutcomeUnsoldNoBids
	case !a.ReserveMet():
		a.Close()
		settlement.Outcome = models.OutcomeUnsoldReserveNotMet
		settlement.WinnerID = top.UserID
		settlement.Amount = top.Amount
	default:
		if err := s.transfer(a, top); err != nil {
			return models.Settlement{}, err
		}
		settlement.Outcome = models.OutcomeSold
		settlement.WinnerID = top.UserID
		settlement.Amount = top.Amount
	}

	metrics.SettlementsTotal.WithLabelValues(string(settlement.Outcome)).Inc()
	return settlement, nil
}

// transfer moves funds and ownership for the winning bid, then closes the
// auction. Both users are written in one repository call; on any error the
// auction and both users are left untouched.
func (s *MarketplaceService) transfer(a *auction.Auction, winning models.Bid) error {
	item := a.Item()

	winner, err := s.repo.GetUser(winning.UserID)
	if err != nil {
		return fmt.Errorf("service: failed to load winner: %w", err)
	}
	seller, err := s.repo.GetUser(item.SellerID)
	if err != nil {
		return fmt.Errorf("service: failed to load seller: %w", err)
	}
	if winner.Balance.LessThan(winning.Amount) {
		return fmt.Errorf("service: %w - winner %s holds %s, owes %s",
			biddingerrors.ErrInsufficientFunds, winner.UserID, winner.Balance, winning.Amount)
	}

	winner.Balance = winner.Balance.Sub(winning.Amount)
	winner.OwnedItems = append(winner.OwnedItems, item.ItemID)
	seller.Balance = seller.Balance.Add(winning.Amount)
	seller.SoldItems = append(seller.SoldItems, item.ItemID)

	if err := s.repo.UpdateUsers(winner, seller); err != nil {
		return fmt.Errorf("service: failed to settle funds for item %s: %w", item.ItemID, err)
	}

	a.Close()
	return nil
}

// AddBalance credits the session user's balance
func (s *MarketplaceService) AddBalance(session models.Session, amount decimal.Decimal) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.requireUser(session)
	if err != nil {
		return models.User{}, err
	}
	if !amount.IsPositive() {
		return models.User{}, fmt.Errorf("service: %w - amount must be positive", biddingerrors.ErrInvalidRequest)
	}

	user.Balance = user.Balance.Add(amount)
	if err := s.repo.UpdateUser(user); err != nil {
		return models.User{}, fmt.Errorf("service: failed to add balance for user %s: %w", user.UserID, err)
	}
	return user, nil
}

// GetProfile returns the session user with activity counters
func (s *MarketplaceService) GetProfile(session models.Session) (models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, err := s.requireUser(session)
	if err != nil {
		return models.Profile{}, err
	}

	return models.Profile{
		User:            user,
		BidsPlaced:      len(user.BidHistory),
		AuctionsCreated: len(s.repo.GetAuctionsBySeller(user.UserID)),
	}, nil
}

// GetAuction returns a snapshot of one auction
func (s *MarketplaceService) GetAuction(itemID string) (models.AuctionView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, err := s.repo.GetAuction(itemID)
	if err != nil {
		return models.AuctionView{}, fmt.Errorf("service: failed to get auction: %w", err)
	}
	return a.Snapshot(), nil
}

// ListActiveAuctions returns the auctions currently open for bidding
func (s *MarketplaceService) ListActiveAuctions() []models.AuctionView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := []models.AuctionView{}
	for _, a := range s.repo.ListAuctions() {
		if a.IsActive() {
			views = append(views, a.Snapshot())
		}
	}
	return views
}

// Search matches keyword against item names and descriptions, case-sensitively,
// across auctions in any state
func (s *MarketplaceService) Search(keyword string) []models.AuctionView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := []models.AuctionView{}
	for _, a := range s.repo.ListAuctions() {
		item := a.Item()
		if strings.Contains(item.Name, keyword) || strings.Contains(item.Description, keyword) {
			views = append(views, a.Snapshot())
		}
	}
	return views
}

// GetBidHistory returns an auction's bids, best first or in acceptance order
func (s *MarketplaceService) GetBidHistory(itemID string, order models.BidOrder) ([]models.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, err := s.repo.GetAuction(itemID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for item %s: %w", itemID, err)
	}

	var bids []models.Bid
	switch order {
	case "", models.OrderRanked:
		bids = a.RankedBids()
	case models.OrderChronological:
		bids = a.BidLog()
	default:
		return nil, fmt.Errorf("service: %w - unknown bid order %q", biddingerrors.ErrInvalidRequest, order)
	}

	if bids == nil {
		bids = []models.Bid{}
	}
	return bids, nil
}

// TopBidders returns the highest bidders on an item. A non-positive limit
// uses the configured default.
func (s *MarketplaceService) TopBidders(itemID string, limit int) ([]models.BidderTotal, error) {
	if limit <= 0 {
		limit = s.topBiddersLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	a, err := s.repo.GetAuction(itemID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get top bidders for item %s: %w", itemID, err)
	}
	return a.TopBidders(limit), nil
}

// GetItemsByUser returns the distinct items a user has bid on, in the order
// of their first bid
func (s *MarketplaceService) GetItemsByUser(userID string) ([]models.Item, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidRequest)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	user, err := s.repo.GetUser(userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get items for user %s: %w", userID, err)
	}
	if len(user.BidHistory) == 0 {
		return nil, fmt.Errorf("service: get items for user %s: %w", userID, biddingerrors.ErrUserNoBids)
	}

	seen := make(map[string]bool, len(user.BidHistory))
	items := make([]models.Item, 0, len(user.BidHistory))
	for _, itemID := range user.BidHistory {
		if seen[itemID] {
			continue
		}
		seen[itemID] = true

		a, err := s.repo.GetAuction(itemID)
		if err != nil {
			return nil, fmt.Errorf("service: failed to get items for user %s: %w", userID, err)
		}
		items = append(items, a.Item())
	}
	return items, nil
}

// rejectionReason maps a bid error to a metrics label
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, biddingerrors.ErrSessionRequired):
		return "session_required"
	case errors.Is(err, biddingerrors.ErrItemNotFound):
		return "not_found"
	case errors.Is(err, biddingerrors.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, biddingerrors.ErrAuctionInactive):
		return "inactive"
	case errors.Is(err, biddingerrors.ErrBidTooLow):
		return "too_low"
	case errors.Is(err, biddingerrors.ErrSelfBid):
		return "self_bid"
	default:
		return "error"
	}
}
