package server

import (
	handler "auction-marketplace/services/marketplace/handler"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter configures all Gin routes for the application
func SetupRouter(service handler.MarketplaceServiceInterface) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestIDMiddleware)     // tag every request
	router.Use(RequestLoggerMiddleware) // custom request logging

	h := handler.NewMarketplaceHandler(service)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	users := router.Group("/users")
	{
		users.POST("", h.RegisterUserHandler)
		users.GET("/:user_id/items", h.GetItemsByUserHandler)
	}

	sessions := router.Group("/sessions")
	{
		sessions.POST("", h.LoginHandler)
		sessions.DELETE("", h.LogoutHandler)
	}

	me := router.Group("/me", h.RequireSession)
	{
		me.GET("", h.GetProfileHandler)
		me.POST("/balance", h.AddBalanceHandler)
	}

	auctions := router.Group("/auctions")
	{
		auctions.GET("", h.ListActiveAuctionsHandler)
		auctions.POST("", h.RequireSession, h.CreateAuctionHandler)
		auctions.GET("/search", h.SearchAuctionsHandler)
		auctions.GET("/:item_id", h.GetAuctionHandler)
		auctions.GET("/:item_id/bids", h.GetBidHistoryHandler)
		auctions.POST("/:item_id/bids", h.RequireSession, h.PlaceBidHandler)
		auctions.POST("/:item_id/settle", h.SettleAuctionHandler)
		auctions.GET("/:item_id/top-bidders", h.GetTopBiddersHandler)
	}

	return router
}
