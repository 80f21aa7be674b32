package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/portview/backend/pkg/config"
	"github.com/portview/backend/pkg/database"
)

// cleanupCmd represents the cleanup command
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Database cleanup tools",
	Long: `Performs database cleanup tasks.

Example:
  portview cleanup user --user u1
  portview cleanup caches`,
}

var cleanupUserCmd = &cobra.Command{
	Use:   "user",
	Short: "Delete all data for one user",
	Long: `Deletes a user's transactions and cache entries.

Cache entries go first so a concurrent rebuild cannot resurrect a chart
from transactions that are about to disappear.

Example:
  portview cleanup user --user u1`,
	RunE: runCleanupUser,
}

var cleanupCachesCmd = &cobra.Command{
	Use:   "caches",
	Short: "Drop every performance cache entry",
	Long: `Truncates the performance cache. Entries rebuild lazily on the next
request, so this is safe whenever chart data looks wrong across users.

Example:
  portview cleanup caches`,
	RunE: runCleanupCaches,
}

var cleanupUserID string

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.AddCommand(cleanupUserCmd)
	cleanupCmd.AddCommand(cleanupCachesCmd)

	cleanupUserCmd.Flags().StringVar(&cleanupUserID, "user", "", "user id (required)")
	cleanupUserCmd.MarkFlagRequired("user")
}

func runCleanupUser(cmd *cobra.Command, args []string) error {
	fmt.Println("=== User Data Cleanup ===")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("❌ Failed to load config: %w", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("❌ Failed to connect to database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tag, err := db.Pool.Exec(ctx, `DELETE FROM portfolio_caches WHERE user_id = $1`, cleanupUserID)
	if err != nil {
		return fmt.Errorf("❌ Failed to delete cache entries: %w", err)
	}
	fmt.Printf("✅ Deleted %d cache entries\n", tag.RowsAffected())

	tag, err = db.Pool.Exec(ctx, `DELETE FROM transactions WHERE user_id = $1`, cleanupUserID)
	if err != nil {
		return fmt.Errorf("❌ Failed to delete transactions: %w", err)
	}
	fmt.Printf("✅ Deleted %d transactions\n", tag.RowsAffected())

	fmt.Printf("\n✅ Cleanup complete for user %s\n", cleanupUserID)
	return nil
}

func runCleanupCaches(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Performance Cache Cleanup ===")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("❌ Failed to load config: %w", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("❌ Failed to connect to database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var count int64
	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM portfolio_caches`).Scan(&count); err != nil {
		return fmt.Errorf("❌ Failed to count cache entries: %w", err)
	}

	fmt.Printf("📊 Found %d cache entries\n", count)

	if count == 0 {
		fmt.Println("✅ Nothing to clean up")
		return nil
	}

	if _, err := db.Pool.Exec(ctx, `TRUNCATE portfolio_caches`); err != nil {
		return fmt.Errorf("❌ Failed to truncate cache: %w", err)
	}

	fmt.Println("✅ Performance cache cleared; entries rebuild on demand")
	return nil
}
