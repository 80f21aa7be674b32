package transactions

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/portview/backend/internal/contracts"
)

// Repository reads the confirmed transaction ledger. The store is
// authoritative and immutable once a transaction is confirmed; this service
// only ever reads it.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new transaction repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetTransactions returns the user's full history in (txn_date, id) order.
// Same-day transactions keep insertion order so replay is deterministic.
func (r *Repository) GetTransactions(ctx context.Context, userID string) ([]contracts.Transaction, error) {
	query := `
		SELECT id, user_id, txn_date, txn_type, COALESCE(symbol, ''),
		       COALESCE(quantity, 0), COALESCE(price, 0), amount
		FROM transactions
		WHERE user_id = $1
		ORDER BY txn_date, id
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	txns := make([]contracts.Transaction, 0)
	for rows.Next() {
		var txn contracts.Transaction
		var txnType string
		err := rows.Scan(
			&txn.ID, &txn.UserID, &txn.Date, &txnType,
			&txn.Symbol, &txn.Quantity, &txn.Price, &txn.Amount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txn.Type = contracts.TransactionType(txnType)
		txns = append(txns, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return txns, nil
}

// ListActiveUsers returns user ids with at least one transaction, for the
// background cache warmer.
func (r *Repository) ListActiveUsers(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, "SELECT DISTINCT user_id FROM transactions ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query active users: %w", err)
	}
	defer rows.Close()

	users := make([]string, 0)
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		users = append(users, userID)
	}

	return users, rows.Err()
}
