package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/portview/backend/internal/contracts"
	"github.com/portview/backend/internal/marketdata"
	"github.com/portview/backend/internal/performance"
	"github.com/portview/backend/internal/transactions"
	"github.com/portview/backend/pkg/config"
	"github.com/portview/backend/pkg/database"
	"github.com/portview/backend/pkg/httputil"
	"github.com/portview/backend/pkg/logger"
	"github.com/portview/backend/pkg/redis"
)

// perfCmd represents the perf command
var perfCmd = &cobra.Command{
	Use:   "perf",
	Short: "Compute one performance series from the terminal",
	Long: `Computes portfolio and benchmark series for one user and range,
printing both series side by side. Useful for checking cache contents
against a fresh rebuild.

Example:
  go run ./cmd/portview perf --user u1 --range 1Y
  go run ./cmd/portview perf --user u1 --benchmark QQQ --range MAX --rebuild`,
	RunE: runPerf,
}

var hundred = decimal.NewFromInt(100)

var (
	perfUser      string
	perfBenchmark string
	perfRange     string
	perfRebuild   bool
)

func init() {
	rootCmd.AddCommand(perfCmd)

	perfCmd.Flags().StringVar(&perfUser, "user", "", "user id (required)")
	perfCmd.Flags().StringVar(&perfBenchmark, "benchmark", "", "benchmark ticker (default from config)")
	perfCmd.Flags().StringVar(&perfRange, "range", "1Y", "chart range (7D|1M|3M|6M|YTD|1Y|3Y|5Y|MAX)")
	perfCmd.Flags().BoolVar(&perfRebuild, "rebuild", false, "force a rebuild before reading")
	perfCmd.MarkFlagRequired("user")
}

func runPerf(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Portview Performance ===")

	rng, err := contracts.ParseRange(perfRange)
	if err != nil {
		return fmt.Errorf("❌ invalid range %q", perfRange)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	priceCache := redis.NewCache(redisClient, "portview")
	rateLimiter := redis.NewRateLimiter(redisClient, "portview")

	httpClient := httputil.New(cfg, log).
		WithRateLimiter(rateLimiter, redis.MarketDataRateLimit)

	mdRepo := marketdata.NewRepository(db.Pool)
	mdClient := marketdata.NewClient(cfg.MarketData, httpClient, priceCache, log)
	mdScraper := marketdata.NewScraper(cfg.MarketData.BaseURL, httpClient, log)
	prices := marketdata.NewService(mdRepo, mdClient, mdScraper, log)

	txnRepo := transactions.NewRepository(db.Pool)
	perfRepo := performance.NewRepository(db.Pool)
	perfService := performance.NewService(perfRepo, txnRepo, prices, performance.Options{
		ServeStale:     cfg.Performance.ServeStale,
		RebuildTimeout: cfg.Performance.RebuildTimeout,
	}, log)

	benchmark := perfBenchmark
	if benchmark == "" {
		benchmark = cfg.Performance.DefaultBenchmark
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if perfRebuild {
		fmt.Println("Rebuilding cache entry...")
		if err := perfService.Refresh(ctx, perfUser, benchmark, rng); err != nil {
			return fmt.Errorf("❌ rebuild failed: %w", err)
		}
	}

	result, err := perfService.GetPerformance(ctx, perfUser, benchmark, rng)
	if err != nil {
		return fmt.Errorf("❌ failed to compute performance: %w", err)
	}

	fmt.Printf("\nUser: %s  Benchmark: %s  Range: %s\n", perfUser, benchmark, rng)
	fmt.Printf("As of: %s", result.AsOfDate.Format("2006-01-02"))
	if result.Stale {
		fmt.Print("  (STALE)")
	}
	fmt.Println()
	fmt.Printf("Points: %d\n\n", len(result.PortfolioValues))

	fmt.Printf("%-12s %16s %16s\n", "DATE", "PORTFOLIO", "BENCHMARK")
	for i, point := range result.PortfolioValues {
		fmt.Printf("%-12s %16s %16s\n",
			point.Date.Format("2006-01-02"),
			point.Value.StringFixed(2),
			result.IndexValues[i].Value.StringFixed(2),
		)
	}

	if len(result.PortfolioValues) > 0 {
		first := result.PortfolioValues[0].Value
		lastP := result.PortfolioValues[len(result.PortfolioValues)-1].Value
		lastB := result.IndexValues[len(result.IndexValues)-1].Value

		fmt.Println()
		if !first.IsZero() {
			pRet := lastP.Sub(first).Div(first).Mul(hundred)
			bRet := lastB.Sub(first).Div(first).Mul(hundred)
			fmt.Printf("Portfolio return: %s%%\n", pRet.StringFixed(2))
			fmt.Printf("Benchmark return: %s%%\n", bRet.StringFixed(2))
		}
		// Both series normalize to the same starting value.
		fmt.Printf("Start value: %s\n", first.StringFixed(2))
	}

	return nil
}
