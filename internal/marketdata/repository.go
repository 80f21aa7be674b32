package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/portview/backend/internal/contracts"
)

// Repository is the local store of settled daily closes, populated as the
// service fetches history from the provider. Serving closes from here keeps
// rebuilds off the provider's quota.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new price repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetCloses returns stored closes for [from, to], ascending.
func (r *Repository) GetCloses(ctx context.Context, symbol string, from, to time.Time) ([]contracts.PricePoint, error) {
	query := `
		SELECT price_date, close
		FROM daily_prices
		WHERE symbol = $1 AND price_date BETWEEN $2 AND $3
		ORDER BY price_date
	`

	rows, err := r.pool.Query(ctx, query, symbol, contracts.Day(from), contracts.Day(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	points := make([]contracts.PricePoint, 0)
	for rows.Next() {
		var p contracts.PricePoint
		if err := rows.Scan(&p.Date, &p.Close); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		points = append(points, p)
	}

	return points, rows.Err()
}

// UpsertCloses stores fetched closes. Settled closes are immutable, so
// conflicting rows are simply overwritten with the same value.
func (r *Repository) UpsertCloses(ctx context.Context, symbol string, points []contracts.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO daily_prices (symbol, price_date, close)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol, price_date) DO UPDATE SET close = EXCLUDED.close
	`

	for _, p := range points {
		if _, err := tx.Exec(ctx, query, symbol, contracts.Day(p.Date), p.Close); err != nil {
			return fmt.Errorf("failed to upsert close: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit closes: %w", err)
	}

	return nil
}

// LatestDate returns the newest stored close date for a symbol; ok is false
// when the symbol has no stored history.
func (r *Repository) LatestDate(ctx context.Context, symbol string) (time.Time, bool, error) {
	// MAX over zero rows yields NULL, hence the pointer scan.
	var date *time.Time
	err := r.pool.QueryRow(ctx,
		"SELECT MAX(price_date) FROM daily_prices WHERE symbol = $1", symbol,
	).Scan(&date)

	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query latest price date: %w", err)
	}
	if date == nil {
		return time.Time{}, false, nil
	}

	return *date, true, nil
}
