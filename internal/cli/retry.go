package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/opengrants/walletd/internal/core/config"
	redisclient "github.com/opengrants/walletd/internal/infra/redis"
	"github.com/opengrants/walletd/internal/infra/storage/postgres"
)

var retryCmd = &cobra.Command{
	Use:   "retry [user_id]",
	Short: "Schedule a failed wallet provision for immediate retry",
	Args:  cobra.ExactArgs(1),
	Run:   runRetry,
}

func init() {
	rootCmd.AddCommand(retryCmd)
}

func runRetry(cmd *cobra.Command, args []string) {
	userID, err := uuid.Parse(args[0])
	if err != nil {
		fmt.Printf("Invalid user id: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	// Confirm the record exists before touching the queue.
	repo := postgres.NewWalletRepo(db)
	rec, err := repo.GetByUserID(ctx, userID)
	if err != nil {
		slog.Error("Failed to load wallet record", "user_id", userID, "error", err)
		os.Exit(1)
	}

	client, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = client.Close()
	}()

	if err := redisclient.NewRetryQueue(client).Enqueue(ctx, userID); err != nil {
		slog.Error("Failed to enqueue retry", "user_id", userID, "error", err)
		os.Exit(1)
	}

	fmt.Printf("Scheduled retry for %s (current status: %s)\n", userID, rec.Status)
}
