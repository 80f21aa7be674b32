package jobs

import (
	"context"

	"github.com/portview/backend/internal/contracts"
	"github.com/portview/backend/internal/performance"
	"github.com/portview/backend/internal/transactions"
	"github.com/portview/backend/pkg/logger"
)

// CacheWarmJob rebuilds every cached performance entry after the nightly
// price settlement, so the first morning request hits a fresh cache.
type CacheWarmJob struct {
	perf     *performance.Service
	perfRepo *performance.Repository
	txns     *transactions.Repository
	locks    *performance.KeyLock
	schedule string
	logger   *logger.Logger
}

// NewCacheWarmJob creates a new cache warm job.
func NewCacheWarmJob(
	perf *performance.Service,
	perfRepo *performance.Repository,
	txns *transactions.Repository,
	locks *performance.KeyLock,
	schedule string,
	log *logger.Logger,
) *CacheWarmJob {
	return &CacheWarmJob{
		perf:     perf,
		perfRepo: perfRepo,
		txns:     txns,
		locks:    locks,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *CacheWarmJob) Name() string {
	return "cache_warm"
}

// Schedule returns the cron schedule
func (j *CacheWarmJob) Schedule() string {
	return j.schedule
}

// Run warms every cached key of every user with confirmed transactions.
// Failures are per-key: one user's missing price history must not stop the
// rest of the sweep.
func (j *CacheWarmJob) Run(ctx context.Context) error {
	users, err := j.txns.ListActiveUsers(ctx)
	if err != nil {
		return err
	}

	j.logger.WithField("users", len(users)).Info("Cache warm sweep started")

	var warmed, failed, skipped int
	for _, userID := range users {
		keys, err := j.perfRepo.ListKeys(ctx, userID)
		if err != nil {
			j.logger.WithError(err).WithField("user_id", userID).Warn("Failed to list cached keys")
			failed++
			continue
		}

		for _, key := range keys {
			w, f, s := j.warmKey(ctx, userID, key.Benchmark, key.Range)
			warmed += w
			failed += f
			skipped += s
		}
	}

	j.logger.WithFields(map[string]interface{}{
		"warmed":  warmed,
		"failed":  failed,
		"skipped": skipped,
	}).Info("Cache warm sweep completed")

	return nil
}

func (j *CacheWarmJob) warmKey(ctx context.Context, userID, benchmark string, rng contracts.Range) (warmed, failed, skipped int) {
	// A key still held by an overlapping sweep is skipped; rebuilds are
	// idempotent upserts, the next sweep picks it up.
	unlock, ok := j.locks.TryLock(contracts.CacheKey(userID, benchmark, rng))
	if !ok {
		return 0, 0, 1
	}
	defer unlock()

	if err := j.perf.Refresh(ctx, userID, benchmark, rng); err != nil {
		j.logger.WithError(err).WithFields(map[string]interface{}{
			"user_id":   userID,
			"benchmark": benchmark,
			"range":     string(rng),
		}).Warn("Cache warm failed for key")
		return 0, 1, 0
	}
	return 1, 0, 0
}
