// Package sweeper wires configuration for the abandonment sweeper.
//
// The sweeper runs one pass and exits, so a cron entry or systemd timer can
// own the schedule.
package sweeper

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/louisbranch/everpage/internal/cache"
	"github.com/louisbranch/everpage/internal/lifecycle"
	"github.com/louisbranch/everpage/internal/memory"
	"github.com/louisbranch/everpage/internal/payment/noop"
	platformcmd "github.com/louisbranch/everpage/internal/platform/cmd"
	"github.com/louisbranch/everpage/internal/storage/sqlite"
)

// Config holds the sweeper command configuration.
type Config struct {
	DBPath         string        `env:"EVERPAGE_DB_PATH" envDefault:"everpage.db"`
	SweepThreshold time.Duration `env:"EVERPAGE_SWEEP_THRESHOLD" envDefault:"24h"`

	// DryRun reports how many records would be swept without changing them.
	DryRun bool `env:"EVERPAGE_SWEEP_DRY_RUN" envDefault:"false"`
}

// ParseConfig loads environment defaults and then parses flags.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	fs.DurationVar(&cfg.SweepThreshold, "threshold", cfg.SweepThreshold, "age after which pending pages are abandoned")
	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "count stale pages without sweeping them")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run performs one sweep pass.
func Run(ctx context.Context, cfg Config) error {
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		_ = store.Close()
	}()

	svc, err := lifecycle.New(lifecycle.Config{
		Store:   store,
		Cache:   cache.New[memory.Memory](0, 0),
		Gateway: &noop.Gateway{},
	})
	if err != nil {
		return fmt.Errorf("init lifecycle service: %w", err)
	}

	if cfg.DryRun {
		count, err := svc.CountPendingOlderThan(ctx, cfg.SweepThreshold)
		if err != nil {
			return fmt.Errorf("count stale pages: %w", err)
		}
		log.Printf("dry run: %d pending pages older than %s", count, cfg.SweepThreshold)
		return nil
	}

	count, err := svc.SweepAbandoned(ctx, cfg.SweepThreshold)
	if err != nil {
		return fmt.Errorf("sweep stale pages: %w", err)
	}
	log.Printf("swept %d pending pages older than %s", count, cfg.SweepThreshold)
	return nil
}
