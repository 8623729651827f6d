package repository

import (
	"fmt"
	"sync"

	"auction-marketplace/internal/auction"
	"auction-marketplace/internal/biddingerrors"
	"auction-marketplace/internal/models"
)

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=repository

// MarketplaceDB defines the storage interface for users, auctions and sessions
type MarketplaceDB interface {
	AddUser(user models.User) error
	GetUser(userID string) (models.User, error)
	GetUserByUsername(username string) (models.User, error)
	UpdateUser(user models.User) error
	UpdateUsers(users ...models.User) error

	AddAuction(a *auction.Auction) error
	GetAuction(itemID string) (*auction.Auction, error)
	ListAuctions() []*auction.Auction
	GetAuctionsBySeller(userID string) []string

	SaveSession(session models.Session) error
	GetSession(token string) (models.Session, error)
	DeleteSession(token string)
}

// MemoryRepo is a concurrency-safe in-memory implementation of MarketplaceDB.
// The lock guards the maps only; auctions returned by GetAuction are shared
// and must be serialised by the caller.
type MemoryRepo struct {
	mu             sync.RWMutex
	users          map[string]models.User      // key: userID -> value: user
	usernames      map[string]string           // key: username -> value: userID
	auctions       map[string]*auction.Auction // key: itemID -> value: auction
	auctionOrder   []string                    // itemIDs in creation order
	sellerAuctions map[string][]string         // key: userID -> value: list of itemIDs the user created
	sessions       map[string]models.Session   // key: token -> value: session
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		users:          make(map[string]models.User),
		usernames:      make(map[string]string),
		auctions:       make(map[string]*auction.Auction),
		sellerAuctions: make(map[string][]string),
		sessions:       make(map[string]models.Session),
	}
}

// AddUser stores a new user. Usernames are unique, compared case-sensitively.
func (r *MemoryRepo) AddUser(user models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.UserID == "" {
		return fmt.Errorf("add user: %w - empty user ID", biddingerrors.ErrInvalidRequest)
	}
	if _, ok := r.usernames[user.Username]; ok {
		return fmt.Errorf("add user %q: %w", user.Username, biddingerrors.ErrDuplicateUsername)
	}
	if _, ok := r.users[user.UserID]; ok {
		return fmt.Errorf("add user %s: %w - duplicate user ID", user.UserID, biddingerrors.ErrInvalidRequest)
	}

	r.users[user.UserID] = user.Clone()
	r.usernames[user.Username] = user.UserID
	return nil
}

// GetUser returns a copy of the user with the given ID
func (r *MemoryRepo) GetUser(userID string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[userID]
	if !ok {
		return models.User{}, fmt.Errorf("get user %s: %w", userID, biddingerrors.ErrUserNotFound)
	}
	return user.Clone(), nil
}

// GetUserByUsername looks a user up by exact username
func (r *MemoryRepo) GetUserByUsername(username string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.usernames[username]
	if !ok {
		return models.User{}, fmt.Errorf("get user %q: %w", username, biddingerrors.ErrUserNotFound)
	}
	return r.users[userID].Clone(), nil
}

// UpdateUser replaces a stored user. The username cannot change.
func (r *MemoryRepo) UpdateUser(user models.User) error {
	return r.UpdateUsers(user)
}

// UpdateUsers replaces several stored users at once. Every user is checked
// before any is written, so either all updates apply or none do.
func (r *MemoryRepo) UpdateUsers(users ...models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range users {
		existing, ok := r.users[user.UserID]
		if !ok {
			return fmt.Errorf("update user %s: %w", user.UserID, biddingerrors.ErrUserNotFound)
		}
		if existing.Username != user.Username {
			return fmt.Errorf("update user %s: %w - username is immutable", user.UserID, biddingerrors.ErrInvalidRequest)
		}
	}

	for _, user := range users {
		r.users[user.UserID] = user.Clone()
	}
	return nil
}

// AddAuction stores an auction and indexes it under its seller
func (r *MemoryRepo) AddAuction(a *auction.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item := a.Item()
	if item.ItemID == "" {
		return fmt.Errorf("add auction: %w - empty item ID", biddingerrors.ErrInvalidRequest)
	}
	if _, ok := r.auctions[item.ItemID]; ok {
		return fmt.Errorf("add auction %s: %w - duplicate item ID", item.ItemID, biddingerrors.ErrInvalidRequest)
	}

	r.auctions[item.ItemID] = a
	r.auctionOrder = append(r.auctionOrder, item.ItemID)
	r.sellerAuctions[item.SellerID] = append(r.sellerAuctions[item.SellerID], item.ItemID)
	return nil
}

// GetAuction returns the auction for an item
func (r *MemoryRepo) GetAuction(itemID string) (*auction.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.auctions[itemID]
	if !ok {
		return nil, fmt.Errorf("get auction %s: %w", itemID, biddingerrors.ErrItemNotFound)
	}
	return a, nil
}

// ListAuctions returns every auction in creation order
func (r *MemoryRepo) ListAuctions() []*auction.Auction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*auction.Auction, 0, len(r.auctionOrder))
	for _, id := range r.auctionOrder {
		out = append(out, r.auctions[id])
	}
	return out
}

// GetAuctionsBySeller returns the itemIDs a user has put up for auction
func (r *MemoryRepo) GetAuctionsBySeller(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.sellerAuctions[userID]...)
}

// SaveSession stores a session under its token
func (r *MemoryRepo) SaveSession(session models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session.Token == "" || session.UserID == "" {
		return fmt.Errorf("save session: %w - missing token or user ID", biddingerrors.ErrInvalidRequest)
	}
	if _, ok := r.users[session.UserID]; !ok {
		return fmt.Errorf("save session for %s: %w", session.UserID, biddingerrors.ErrUserNotFound)
	}

	r.sessions[session.Token] = session
	return nil
}

// GetSession returns the session for a token
func (r *MemoryRepo) GetSession(token string) (models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[token]
	if !ok {
		return models.Session{}, fmt.Errorf("get session: %w", biddingerrors.ErrSessionRequired)
	}
	return session, nil
}

// DeleteSession removes a session. Unknown tokens are ignored.
func (r *MemoryRepo) DeleteSession(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, token)
}
