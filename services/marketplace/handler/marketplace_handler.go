package handler

import (
	"errors"
	"net/http"

	"auction-marketplace/internal/biddingerrors"
	"auction-marketplace/internal/models"
	"auction-marketplace/services/marketplace/helpers"
	"auction-marketplace/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=marketplace_handler.go -destination=mock_marketplace_handler.go -package=handler

// SessionHeader carries the session token on authenticated requests
const SessionHeader = "X-Session-Token"

const sessionKey = "session"

type MarketplaceServiceInterface interface {
	RegisterUser(username, email string) (models.User, error)
	Login(username string) (models.Session, error)
	Logout(token string)
	Authenticate(token string) (models.Session, error)
	GetProfile(session models.Session) (models.Profile, error)
	AddBalance(session models.Session, amount decimal.Decimal) (models.User, error)
	CreateAuction(session models.Session, name, description string, startingPrice, reservePrice decimal.Decimal, durationMinutes int) (models.Item, error)
	ListActiveAuctions() []models.AuctionView
	Search(keyword string) []models.AuctionView
	GetAuction(itemID string) (models.AuctionView, error)
	PlaceBid(session models.Session, itemID string, amount decimal.Decimal) (models.Bid, error)
	GetBidHistory(itemID string, order models.BidOrder) ([]models.Bid, error)
	Settle(itemID string) (models.Settlement, error)
	TopBidders(itemID string, limit int) ([]models.BidderTotal, error)
	GetItemsByUser(userID string) ([]models.Item, error)
}

type MarketplaceHandler struct {
	service MarketplaceServiceInterface
}

func NewMarketplaceHandler(service MarketplaceServiceInterface) *MarketplaceHandler {
	return &MarketplaceHandler{service: service}
}

// RequireSession resolves the session token and stores the session on the context
func (h *MarketplaceHandler) RequireSession(c *gin.Context) {
	session, err := h.service.Authenticate(c.GetHeader(SessionHeader))
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.AbortWithJSONError(c, status, err, message)
		utils.Warn("RequireSession: rejected request", map[string]any{
			"path":  c.Request.URL.Path,
			"error": err.Error(),
		})
		return
	}

	c.Set(sessionKey, session)
	c.Next()
}

func sessionFrom(c *gin.Context) models.Session {
	session, _ := c.MustGet(sessionKey).(models.Session)
	return session
}

// RegisterUserHandler handles POST /users
func (h *MarketplaceHandler) RegisterUserHandler(c *gin.Context) {
	var req helpers.RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "RegisterUserHandler", err)
		return
	}

	user, err := h.service.RegisterUser(req.Username, req.Email)
	if err != nil {
		helpers.HandleServiceError(c, "RegisterUserHandler", "register user", err, map[string]any{"username": req.Username})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, user, "user registered successfully")
	helpers.LogSuccess("RegisterUserHandler", "user registered successfully", map[string]any{
		"user_id":  user.UserID,
		"username": user.Username,
	})
}

// LoginHandler handles POST /sessions
func (h *MarketplaceHandler) LoginHandler(c *gin.Context) {
	var req helpers.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "LoginHandler", err)
		return
	}

	session, err := h.service.Login(req.Username)
	if err != nil {
		helpers.HandleServiceError(c, "LoginHandler", "log in", err, map[string]any{"username": req.Username})
		return
	}

	resp := helpers.LoginResponse{Token: session.Token, UserID: session.UserID}
	utils.JSONResponse(c, http.StatusCreated, resp, "login successful")
	helpers.LogSuccess("LoginHandler", "login successful", map[string]any{"user_id": session.UserID})
}

// LogoutHandler handles DELETE /sessions
func (h *MarketplaceHandler) LogoutHandler(c *gin.Context) {
	h.service.Logout(c.GetHeader(SessionHeader))

	utils.JSONResponse(c, http.StatusOK, nil, "logged out")
	helpers.LogSuccess("LogoutHandler", "logged out", nil)
}

// GetProfileHandler handles GET /me
func (h *MarketplaceHandler) GetProfileHandler(c *gin.Context) {
	session := sessionFrom(c)
	profile, err := h.service.GetProfile(session)
	if err != nil {
		helpers.HandleServiceError(c, "GetProfileHandler", "get profile", err, map[string]any{"user_id": session.UserID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, profile, "profile retrieved successfully")
}

// AddBalanceHandler handles POST /me/balance
func (h *MarketplaceHandler) AddBalanceHandler(c *gin.Context) {
	var req helpers.AddBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "AddBalanceHandler", err)
		return
	}

	session := sessionFrom(c)
	user, err := h.service.AddBalance(session, req.Amount)
	if err != nil {
		helpers.HandleServiceError(c, "AddBalanceHandler", "add balance", err, map[string]any{"user_id": session.UserID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, user, "balance added successfully")
	helpers.LogSuccess("AddBalanceHandler", "balance added successfully", map[string]any{
		"user_id": user.UserID,
		"amount":  req.Amount.String(),
		"balance": user.Balance.String(),
	})
}

// CreateAuctionHandler handles POST /auctions
func (h *MarketplaceHandler) CreateAuctionHandler(c *gin.Context) {
	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	session := sessionFrom(c)
	item, err := h.service.CreateAuction(session, req.Name, req.Description, req.StartingPrice, req.ReservePrice, req.DurationMinutes)
	if err != nil {
		helpers.HandleServiceError(c, "CreateAuctionHandler", "create auction", err, map[string]any{"user_id": session.UserID})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, item, "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"item_id":   item.ItemID,
		"seller_id": item.SellerID,
		"end_time":  item.EndTime,
	})
}

// ListActiveAuctionsHandler handles GET /auctions
func (h *MarketplaceHandler) ListActiveAuctionsHandler(c *gin.Context) {
	views := h.service.ListActiveAuctions()
	if views == nil {
		views = []models.AuctionView{}
	}

	utils.JSONResponse(c, http.StatusOK, views, "active auctions retrieved successfully")
}

// SearchAuctionsHandler handles GET /auctions/search?q=
func (h *MarketplaceHandler) SearchAuctionsHandler(c *gin.Context) {
	var query helpers.SearchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		helpers.HandleBindError(c, "SearchAuctionsHandler", err)
		return
	}

	views := h.service.Search(query.Keyword)
	if views == nil {
		views = []models.AuctionView{}
	}

	utils.JSONResponse(c, http.StatusOK, views, "search completed successfully")
	helpers.LogSuccess("SearchAuctionsHandler", "search completed successfully", map[string]any{
		"keyword": query.Keyword,
		"count":   len(views),
	})
}

// GetAuctionHandler handles GET /auctions/:item_id
func (h *MarketplaceHandler) GetAuctionHandler(c *gin.Context) {
	itemID := c.Param("item_id")
	view, err := h.service.GetAuction(itemID)
	if err != nil {
		helpers.HandleServiceError(c, "GetAuctionHandler", "get auction", err, map[string]any{"item_id": itemID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, view, "auction retrieved successfully")
}

// PlaceBidHandler handles POST /auctions/:item_id/bids
func (h *MarketplaceHandler) PlaceBidHandler(c *gin.Context) {
	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	itemID := c.Param("item_id")
	session := sessionFrom(c)
	bid, err := h.service.PlaceBid(session, itemID, req.Amount)
	if err != nil {
		helpers.HandleServiceError(c, "PlaceBidHandler", "place bid", err, map[string]any{
			"item_id": itemID,
			"user_id": session.UserID,
			"amount":  req.Amount.String(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.ToBidResponse(bid), "bid recorded successfully")
	helpers.LogSuccess("PlaceBidHandler", "bid recorded successfully", map[string]any{
		"bid_id":  bid.BidID,
		"item_id": bid.ItemID,
		"user_id": bid.UserID,
		"amount":  bid.Amount.String(),
	})
}

// GetBidHistoryHandler handles GET /auctions/:item_id/bids
func (h *MarketplaceHandler) GetBidHistoryHandler(c *gin.Context) {
	var query helpers.BidHistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		helpers.HandleBindError(c, "GetBidHistoryHandler", err)
		return
	}

	itemID := c.Param("item_id")
	bids, err := h.service.GetBidHistory(itemID, models.BidOrder(query.Order))
	if err != nil {
		helpers.HandleServiceError(c, "GetBidHistoryHandler", "get bids", err, map[string]any{"item_id": itemID})
		return
	}

	resp := make([]helpers.BidResponse, 0, len(bids))
	for _, bid := range bids {
		resp = append(resp, helpers.ToBidResponse(bid))
	}

	utils.JSONResponse(c, http.StatusOK, resp, "bids retrieved successfully")
	helpers.LogSuccess("GetBidHistoryHandler", "bids retrieved successfully", map[string]any{
		"item_id": itemID,
		"count":   len(resp),
	})
}

// SettleAuctionHandler handles POST /auctions/:item_id/settle
func (h *MarketplaceHandler) SettleAuctionHandler(c *gin.Context) {
	itemID := c.Param("item_id")
	settlement, err := h.service.Settle(itemID)
	if err != nil {
		helpers.HandleServiceError(c, "SettleAuctionHandler", "settle auction", err, map[string]any{"item_id": itemID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, settlement, "auction settled: "+string(settlement.Outcome))
	helpers.LogSuccess("SettleAuctionHandler", "auction settled", map[string]any{
		"item_id":   settlement.ItemID,
		"outcome":   settlement.Outcome,
		"winner_id": settlement.WinnerID,
		"amount":    settlement.Amount.String(),
	})
}

// GetTopBiddersHandler handles GET /auctions/:item_id/top-bidders
func (h *MarketplaceHandler) GetTopBiddersHandler(c *gin.Context) {
	var query helpers.TopBiddersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		helpers.HandleBindError(c, "GetTopBiddersHandler", err)
		return
	}

	itemID := c.Param("item_id")
	top, err := h.service.TopBidders(itemID, query.Limit)
	if err != nil {
		helpers.HandleServiceError(c, "GetTopBiddersHandler", "get top bidders", err, map[string]any{"item_id": itemID})
		return
	}

	if top == nil {
		top = []models.BidderTotal{}
	}

	utils.JSONResponse(c, http.StatusOK, top, "top bidders retrieved successfully")
}

// GetItemsByUserHandler handles GET /users/:user_id/items
func (h *MarketplaceHandler) GetItemsByUserHandler(c *gin.Context) {
	userID := c.Param("user_id")
	items, err := h.service.GetItemsByUser(userID)
	if err != nil && !errors.Is(err, biddingerrors.ErrUserNoBids) {
		helpers.HandleServiceError(c, "GetItemsByUserHandler", "get items", err, map[string]any{"user_id": userID})
		return
	}

	if items == nil {
		items = []models.Item{}
	}

	utils.JSONResponse(c, http.StatusOK, items, "items retrieved successfully")
	helpers.LogSuccess("GetItemsByUserHandler", "items retrieved successfully", map[string]any{
		"user_id":     userID,
		"items_count": len(items),
	})
}
