package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auction-marketplace/internal/config"
	marketplace "auction-marketplace/internal/marketplaceService"
	"auction-marketplace/internal/repository"
	"auction-marketplace/internal/server"
	"auction-marketplace/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const shutdownTimeout = 10 * time.Second

func main() {

	cfg, err := config.LoadConfig()
	if err != nil {
		utils.Fatal("failed to load configuration", map[string]any{"error": err.Error()})
	}
	if err := cfg.Validate(); err != nil {
		utils.Fatal("invalid configuration", map[string]any{"error": err.Error()})
	}

	utils.SetLevel(cfg.Logging.Level)
	gin.SetMode(cfg.Server.GinMode)

	repo := repository.NewMemoryRepo()
	marketplaceSvc := marketplace.NewMarketplaceService(repo,
		marketplace.WithDefaultBalance(cfg.Marketplace.DefaultBalance),
		marketplace.WithTopBiddersLimit(cfg.Marketplace.TopBiddersLimit),
	)

	if cfg.Marketplace.SeedDemoData {
		seedDemoData(marketplaceSvc)
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.SetupRouter(marketplaceSvc),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		utils.Info("starting auction marketplace", map[string]any{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		utils.Info("received shutdown signal", map[string]any{"signal": sig.String()})
	case err := <-serverErr:
		utils.Fatal("failed to start server", map[string]any{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		utils.Error("error during server shutdown", map[string]any{"error": err.Error()})
		return
	}
	utils.Info("graceful shutdown completed", nil)
}

// seedDemoData registers two users and lists a few auctions for local testing
func seedDemoData(svc *marketplace.MarketplaceService) {
	for _, name := range []string{"alice", "bob"} {
		if _, err := svc.RegisterUser(name, name+"@example.com"); err != nil {
			utils.Warn("seed: failed to register user", map[string]any{"username": name, "error": err.Error()})
			return
		}
	}

	session, err := svc.Login("alice")
	if err != nil {
		utils.Warn("seed: failed to log in", map[string]any{"error": err.Error()})
		return
	}
	defer svc.Logout(session.Token)

	listings := []struct {
		name, description string
		start, reserve    int64
		minutes           int
	}{
		{"Vintage Lamp", "brass desk lamp", 10, 50, 60},
		{"Road Bike", "aluminium frame, 54cm", 150, 300, 120},
		{"Vinyl Collection", "forty jazz records", 40, 40, 30},
	}
	for _, l := range listings {
		item, err := svc.CreateAuction(session, l.name, l.description,
			decimal.NewFromInt(l.start), decimal.NewFromInt(l.reserve), l.minutes)
		if err != nil {
			utils.Warn("seed: failed to create auction", map[string]any{"name": l.name, "error": err.Error()})
			continue
		}
		utils.Debug("seed: auction created", map[string]any{"item_id": item.ItemID, "name": item.Name})
	}
	utils.Info("demo data seeded", map[string]any{"auctions": len(listings)})
}
