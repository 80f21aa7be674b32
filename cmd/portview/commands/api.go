package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/portview/backend/internal/api"
	"github.com/portview/backend/internal/api/handlers"
	"github.com/portview/backend/internal/marketdata"
	"github.com/portview/backend/internal/performance"
	"github.com/portview/backend/internal/transactions"
	"github.com/portview/backend/pkg/config"
	"github.com/portview/backend/pkg/database"
	"github.com/portview/backend/pkg/httputil"
	"github.com/portview/backend/pkg/logger"
	"github.com/portview/backend/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the REST API server.

Endpoints:
  GET    /health                    - Health check
  GET    /api/performance           - Portfolio vs benchmark series
  POST   /api/performance/refresh   - Force one cache rebuild
  DELETE /api/performance/cache     - Drop the user's cache entries
  GET    /api/quotes/{symbol}       - Latest quote

Example:
  go run ./cmd/portview api
  go run ./cmd/portview api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Portview API Server ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Override port if flag is set
	if apiPort != "" {
		cfg.Port = apiPort
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	log.Info("Connected to database")

	// 4. Connect to Redis (degrades to no-op when disabled)
	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	priceCache := redis.NewCache(redisClient, "portview")
	rateLimiter := redis.NewRateLimiter(redisClient, "portview")

	// 5. Create HTTP client with the provider rate limit
	httpClient := httputil.New(cfg, log).
		WithRateLimiter(rateLimiter, redis.MarketDataRateLimit)

	// 6. Market data: REST client, HTML fallback, write-through store
	mdRepo := marketdata.NewRepository(db.Pool)
	mdClient := marketdata.NewClient(cfg.MarketData, httpClient, priceCache, log)
	mdScraper := marketdata.NewScraper(cfg.MarketData.BaseURL, httpClient, log)
	prices := marketdata.NewService(mdRepo, mdClient, mdScraper, log)

	// 7. Performance cache orchestrator
	txnRepo := transactions.NewRepository(db.Pool)
	perfRepo := performance.NewRepository(db.Pool)
	perfService := performance.NewService(perfRepo, txnRepo, prices, performance.Options{
		ServeStale:     cfg.Performance.ServeStale,
		RebuildTimeout: cfg.Performance.RebuildTimeout,
	}, log)

	// 8. Optional realtime quote feed
	var quoteCache *marketdata.QuoteCache
	var feed *marketdata.Feed
	if cfg.MarketData.StreamURL != "" {
		quoteCache = marketdata.NewQuoteCache(1*time.Minute, log)
		feed = marketdata.NewFeed(cfg.MarketData.StreamURL, cfg.MarketData.APIKey, quoteCache, log)
		if err := feed.Start(context.Background()); err != nil {
			log.WithError(err).Warn("Quote feed unavailable, serving daily closes only")
			feed = nil
			quoteCache = nil
		} else {
			defer feed.Stop()
		}
	}

	// 9. Handlers and router
	perfHandler := handlers.NewPerformanceHandler(perfService, cfg.Performance.DefaultBenchmark, log)
	quoteHandler := handlers.NewQuoteHandler(quoteCache, prices, log)
	router := api.NewRouter(perfHandler, quoteHandler, db, log)

	// 10. Create server
	server := api.New(cfg, log, router)

	// 11. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET    /health")
	fmt.Println("  GET    /api/performance")
	fmt.Println("  POST   /api/performance/refresh")
	fmt.Println("  DELETE /api/performance/cache")
	fmt.Println("  GET    /api/quotes/{symbol}")
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
