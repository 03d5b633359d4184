package commands

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/yielddelta/backtester/pkg/config"
	"github.com/yielddelta/backtester/pkg/database"
	rcache "github.com/yielddelta/backtester/pkg/redis"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check configuration and archive/cache connectivity",
	Long: `Loads the configuration and tests the backends it points at.

This command:
- loads config from the environment (.env is read if present)
- pings PostgreSQL when ARCHIVE_DRIVER=postgres and shows pool statistics
- pings Redis when REDIS_ENABLED=true

Example:
  go run ./cmd/backtester check
  ARCHIVE_DRIVER=postgres go run ./cmd/backtester check`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Yield Delta Backtester Check ===")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("❌ Failed to load config: %w", err)
	}
	PrintSuccess(fmt.Sprintf("Config loaded (ENV: %s)", cfg.Env))
	PrintKeyValue("Archive", cfg.Archive.Driver, 10)
	PrintKeyValue("Asset", cfg.Market.AssetID, 10)
	PrintKeyValue("Pool", cfg.Market.PoolAddress, 10)
	PrintKeyValue("Workers", fmt.Sprintf("%d", cfg.Backtest.Workers), 10)
	fmt.Println()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	failed := false

	switch cfg.Archive.Driver {
	case "postgres":
		if err := checkPostgres(ctx, cfg); err != nil {
			PrintError(err.Error())
			failed = true
		}
	case "sqlite":
		PrintInfo("SQLite archive at " + cfg.Archive.SQLitePath)
	default:
		PrintInfo("Archive disabled")
	}

	if cfg.Redis.Enabled {
		rc, err := rcache.New(ctx, cfg)
		if err != nil {
			PrintError(fmt.Sprintf("Redis: %v", err))
			failed = true
		} else {
			_ = rc.Close()
			PrintSuccess(fmt.Sprintf("Redis reachable at %s:%s", cfg.Redis.Host, cfg.Redis.Port))
		}
	} else {
		PrintInfo("Redis cache disabled, series are cached in memory")
	}

	if failed {
		return fmt.Errorf("one or more checks failed")
	}
	fmt.Println()
	PrintSuccess("All checks passed")
	return nil
}

func checkPostgres(ctx context.Context, cfg *config.Config) error {
	fmt.Printf("Connecting to %s ...\n", maskPassword(cfg.Database.URL))
	db, err := database.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("PostgreSQL: %w", err)
	}
	defer db.Close()

	start := time.Now()
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("PostgreSQL ping: %w", err)
	}
	PrintSuccess(fmt.Sprintf("PostgreSQL ping in %v", time.Since(start).Round(time.Millisecond)))

	stats := db.Stats()
	fmt.Println("📊 Connection Pool Statistics:")
	PrintKeyValue("Max", fmt.Sprintf("%d", stats.MaxConns), 10)
	PrintKeyValue("Total", fmt.Sprintf("%d", stats.TotalConns), 10)
	PrintKeyValue("Acquired", fmt.Sprintf("%d", stats.AcquiredConns), 10)
	PrintKeyValue("Idle", fmt.Sprintf("%d", stats.IdleConns), 10)
	return nil
}

// maskPassword hides the password of a connection URL.
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
