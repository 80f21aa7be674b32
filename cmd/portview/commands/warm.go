package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/portview/backend/internal/marketdata"
	"github.com/portview/backend/internal/performance"
	"github.com/portview/backend/internal/scheduler"
	"github.com/portview/backend/internal/scheduler/jobs"
	"github.com/portview/backend/internal/transactions"
	"github.com/portview/backend/pkg/config"
	"github.com/portview/backend/pkg/database"
	"github.com/portview/backend/pkg/httputil"
	"github.com/portview/backend/pkg/logger"
	"github.com/portview/backend/pkg/redis"
)

// warmCmd represents the warm command
var warmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Run the cache warmer",
	Long: `Runs the performance cache warmer.

By default this starts the scheduler daemon and warms every cached entry
on the configured cron schedule (PERF_WARM_SCHEDULE). With --once it runs
a single warm sweep and exits.

Example:
  go run ./cmd/portview warm
  go run ./cmd/portview warm --once`,
	RunE: runWarm,
}

var warmOnce bool

func init() {
	rootCmd.AddCommand(warmCmd)

	warmCmd.Flags().BoolVar(&warmOnce, "once", false, "run one warm sweep and exit")
}

func runWarm(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Portview Cache Warmer ===")

	job, db, err := initWarmJob()
	if err != nil {
		return err
	}
	defer db.Close()

	if warmOnce {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		if err := job.Run(ctx); err != nil {
			return fmt.Errorf("warm sweep: %w", err)
		}
		fmt.Println("✅ Warm sweep completed")
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	sched := scheduler.New(log)
	if err := sched.AddJob(job); err != nil {
		return fmt.Errorf("add job: %w", err)
	}

	sched.Start()

	fmt.Println("\n✅ Scheduler started")
	fmt.Printf("  - %s (%s)\n", job.Name(), job.Schedule())
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

// initWarmJob wires the cache warm job and returns the database handle so the
// caller controls its lifetime.
func initWarmJob() (*jobs.CacheWarmJob, *database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	redisClient, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}

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

	job := jobs.NewCacheWarmJob(
		perfService,
		perfRepo,
		txnRepo,
		performance.NewKeyLock(),
		cfg.Performance.WarmSchedule,
		log,
	)

	return job, db, nil
}
