// Command admin requeues failed wallet provisions for background retry.
// Useful after an outage when records failed before Redis came back.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/vietddude/stylelog"

	"github.com/opengrants/walletd/internal/core/config"
	redisclient "github.com/opengrants/walletd/internal/infra/redis"
	"github.com/opengrants/walletd/internal/infra/storage/postgres"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found")
	}

	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	dryRun := flag.Bool("dry-run", false, "List failed records without enqueueing")
	flag.Parse()

	stylelog.InitDefault()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Database.URL == "" {
		slog.Error("Database URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := postgres.NewWalletRepo(db)
	failed, err := repo.ListFailed(ctx)
	if err != nil {
		slog.Error("Failed to list failed records", "error", err)
		os.Exit(1)
	}

	if len(failed) == 0 {
		fmt.Println("No failed wallet records")
		return
	}

	for _, rec := range failed {
		code := ""
		if rec.ErrorCode != nil {
			code = *rec.ErrorCode
		}
		fmt.Printf("%s  %-28s  created %s\n", rec.UserID, code, rec.CreatedAt.Format(time.RFC3339))
	}

	if *dryRun {
		fmt.Printf("%d failed record(s), none enqueued (dry run)\n", len(failed))
		return
	}

	if cfg.Redis.URL == "" {
		slog.Error("Redis URL is required to enqueue retries")
		os.Exit(1)
	}
	client, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	queue := redisclient.NewRetryQueue(client)
	enqueued := 0
	for _, rec := range failed {
		if err := queue.Enqueue(ctx, rec.UserID); err != nil {
			slog.Error("Failed to enqueue record", "user_id", rec.UserID, "error", err)
			continue
		}
		enqueued++
	}

	fmt.Printf("Enqueued %d of %d failed record(s)\n", enqueued, len(failed))
}
