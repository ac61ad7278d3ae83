package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opengrants/walletd/internal/core/config"
	"github.com/opengrants/walletd/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show wallet provisioning counts by deployment status",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
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

	rows, err := db.QueryContext(ctx,
		`SELECT deployment_status, COUNT(*), COUNT(*) FILTER (WHERE degraded)
		 FROM wallet_records GROUP BY deployment_status ORDER BY deployment_status`)
	if err != nil {
		slog.Error("Failed to query wallet records", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = rows.Close()
	}()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "STATUS\tCOUNT\tDEGRADED")

	for rows.Next() {
		var status string
		var count, degraded int64
		if err := rows.Scan(&status, &count, &degraded); err != nil {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\n", status, count, degraded)
	}
	_ = w.Flush()
}
