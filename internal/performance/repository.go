package performance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/portview/backend/internal/contracts"
)

// Repository persists cache entries in the portfolio_caches table, one row
// per (user_id, benchmark, chart_range). Every query filters by user_id; a
// caller can never touch another user's rows through this type.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new cache repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get fetches one cache entry; (nil, nil) on a miss.
func (r *Repository) Get(ctx context.Context, userID, benchmark string, rng contracts.Range) (*contracts.CacheEntry, error) {
	query := `
		SELECT as_of_date, portfolio_values, index_values, metadata, updated_at
		FROM portfolio_caches
		WHERE user_id = $1 AND benchmark = $2 AND chart_range = $3
	`

	entry := &contracts.CacheEntry{
		UserID:    userID,
		Benchmark: benchmark,
		Range:     rng,
	}

	var portfolioJSON, indexJSON, metadataJSON []byte
	err := r.pool.QueryRow(ctx, query, userID, benchmark, string(rng)).Scan(
		&entry.AsOfDate, &portfolioJSON, &indexJSON, &metadataJSON, &entry.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cache entry: %w", err)
	}

	if err := json.Unmarshal(portfolioJSON, &entry.PortfolioValues); err != nil {
		return nil, fmt.Errorf("failed to decode portfolio series: %w", err)
	}
	if err := json.Unmarshal(indexJSON, &entry.IndexValues); err != nil {
		return nil, fmt.Errorf("failed to decode index series: %w", err)
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}

	return entry, nil
}

// Upsert writes one complete entry, replacing any prior row for the triple.
func (r *Repository) Upsert(ctx context.Context, entry *contracts.CacheEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid entry: %w", err)
	}

	portfolioJSON, err := json.Marshal(entry.PortfolioValues)
	if err != nil {
		return fmt.Errorf("failed to marshal portfolio series: %w", err)
	}
	indexJSON, err := json.Marshal(entry.IndexValues)
	if err != nil {
		return fmt.Errorf("failed to marshal index series: %w", err)
	}
	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO portfolio_caches (
			user_id, benchmark, chart_range, as_of_date,
			portfolio_values, index_values, metadata, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (user_id, benchmark, chart_range) DO UPDATE SET
			as_of_date = EXCLUDED.as_of_date,
			portfolio_values = EXCLUDED.portfolio_values,
			index_values = EXCLUDED.index_values,
			metadata = EXCLUDED.metadata,
			updated_at = NOW()
	`

	_, err = r.pool.Exec(ctx, query,
		entry.UserID, entry.Benchmark, string(entry.Range), entry.AsOfDate,
		portfolioJSON, indexJSON, metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cache entry: %w", err)
	}

	return nil
}

// DeleteForUser removes all of a user's cache entries, for the account
// deletion cascade.
func (r *Repository) DeleteForUser(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM portfolio_caches WHERE user_id = $1", userID)
	if err != nil {
		return fmt.Errorf("failed to delete cache entries for user: %w", err)
	}
	return nil
}

// ListKeys returns the cached (benchmark, range) pairs a user currently has,
// used by the warmer to refresh what users actually look at.
func (r *Repository) ListKeys(ctx context.Context, userID string) ([]CachedKey, error) {
	query := `
		SELECT benchmark, chart_range
		FROM portfolio_caches
		WHERE user_id = $1
		ORDER BY benchmark, chart_range
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache keys: %w", err)
	}
	defer rows.Close()

	keys := make([]CachedKey, 0)
	for rows.Next() {
		var k CachedKey
		var rng string
		if err := rows.Scan(&k.Benchmark, &rng); err != nil {
			return nil, fmt.Errorf("failed to scan cache key: %w", err)
		}
		k.Range = contracts.Range(rng)
		keys = append(keys, k)
	}

	return keys, rows.Err()
}

// CachedKey identifies one cached series pair within a user's rows.
type CachedKey struct {
	Benchmark string
	Range     contracts.Range
}
