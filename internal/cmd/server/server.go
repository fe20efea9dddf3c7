// Package server wires configuration for the storefront API server.
package server

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/louisbranch/everpage/internal/cache"
	"github.com/louisbranch/everpage/internal/lifecycle"
	"github.com/louisbranch/everpage/internal/memory"
	"github.com/louisbranch/everpage/internal/payment/mercadopago"
	"github.com/louisbranch/everpage/internal/payment/noop"
	"github.com/louisbranch/everpage/internal/photos"
	"github.com/louisbranch/everpage/internal/photos/disk"
	platformcmd "github.com/louisbranch/everpage/internal/platform/cmd"
	"github.com/louisbranch/everpage/internal/server"
	"github.com/louisbranch/everpage/internal/storage/sqlite"
)

// Config holds the server command configuration.
type Config struct {
	HTTPAddr  string `env:"EVERPAGE_ADDR" envDefault:"localhost:8080"`
	DBPath    string `env:"EVERPAGE_DB_PATH" envDefault:"everpage.db"`
	PhotosDir string `env:"EVERPAGE_PHOTOS_DIR" envDefault:"photos"`

	// BaseURL is the public URL of this deployment, used in checkout
	// redirects and webhook registration.
	BaseURL string `env:"EVERPAGE_BASE_URL" envDefault:"http://localhost:8080"`

	// SigningKey signs photo access tokens. Required.
	SigningKey   string        `env:"EVERPAGE_SIGNING_KEY"`
	SignedURLTTL time.Duration `env:"EVERPAGE_SIGNED_URL_TTL" envDefault:"1h"`

	PriceCents int64  `env:"EVERPAGE_PRICE_CENTS" envDefault:"100"`
	Currency   string `env:"EVERPAGE_CURRENCY" envDefault:"BRL"`

	// SkipPayment swaps the hosted checkout for the auto-approving gateway.
	SkipPayment   bool   `env:"EVERPAGE_SKIP_PAYMENT" envDefault:"false"`
	MPAccessToken string `env:"EVERPAGE_MP_ACCESS_TOKEN"`

	// SweepToken guards the maintenance endpoints; empty disables them.
	SweepToken     string        `env:"EVERPAGE_SWEEP_TOKEN"`
	SweepThreshold time.Duration `env:"EVERPAGE_SWEEP_THRESHOLD" envDefault:"24h"`

	CacheEntries int           `env:"EVERPAGE_CACHE_ENTRIES" envDefault:"50"`
	CacheTTL     time.Duration `env:"EVERPAGE_CACHE_TTL" envDefault:"10m"`

	PhotoMaxBytes int64 `env:"EVERPAGE_PHOTO_MAX_BYTES"`
}

// ParseConfig loads environment defaults and then parses flags.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.PhotosDir, "photos-dir", cfg.PhotosDir, "photo storage directory")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, cfg.validate()
}

func (cfg Config) validate() error {
	if cfg.SigningKey == "" {
		return fmt.Errorf("EVERPAGE_SIGNING_KEY is required")
	}
	if !cfg.SkipPayment && cfg.MPAccessToken == "" {
		return fmt.Errorf("EVERPAGE_MP_ACCESS_TOKEN is required unless EVERPAGE_SKIP_PAYMENT is set")
	}
	return nil
}

// Run starts the storefront API server and blocks until the context ends.
func Run(ctx context.Context, cfg Config) error {
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		_ = store.Close()
	}()

	objects, err := disk.New(cfg.PhotosDir)
	if err != nil {
		return fmt.Errorf("open photo storage: %w", err)
	}
	photoSvc, err := photos.NewService(objects, cfg.PhotoMaxBytes)
	if err != nil {
		return fmt.Errorf("init photo service: %w", err)
	}
	signer, err := photos.NewSigner([]byte(cfg.SigningKey), cfg.SignedURLTTL)
	if err != nil {
		return fmt.Errorf("init photo signer: %w", err)
	}

	var gateway lifecycle.Gateway
	var notifications server.NotificationResolver
	if cfg.SkipPayment {
		gateway = &noop.Gateway{SiteBaseURL: cfg.BaseURL}
	} else {
		client, err := mercadopago.New(mercadopago.Config{
			AccessToken: cfg.MPAccessToken,
			SiteBaseURL: cfg.BaseURL,
		})
		if err != nil {
			return fmt.Errorf("init payment gateway: %w", err)
		}
		gateway = client
		notifications = client
	}

	svc, err := lifecycle.New(lifecycle.Config{
		Store:      store,
		Cache:      cache.New[memory.Memory](cfg.CacheEntries, cfg.CacheTTL),
		Gateway:    gateway,
		PriceCents: cfg.PriceCents,
		Currency:   cfg.Currency,
	})
	if err != nil {
		return fmt.Errorf("init lifecycle service: %w", err)
	}

	handler, err := server.NewHandler(server.HandlerConfig{
		Lifecycle:      svc,
		Photos:         photoSvc,
		Signer:         signer,
		Notifications:  notifications,
		SweepToken:     cfg.SweepToken,
		SweepThreshold: cfg.SweepThreshold,
	})
	if err != nil {
		return fmt.Errorf("init handler: %w", err)
	}

	httpServer, err := server.NewServer(cfg.HTTPAddr, handler)
	if err != nil {
		return fmt.Errorf("init http server: %w", err)
	}
	if err := httpServer.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve api: %w", err)
	}
	return nil
}
