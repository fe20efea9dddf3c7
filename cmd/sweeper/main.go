// Package main runs one abandonment sweep over stale pending pages.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	sweepercmd "github.com/louisbranch/everpage/internal/cmd/sweeper"
	platformcmd "github.com/louisbranch/everpage/internal/platform/cmd"
	"github.com/louisbranch/everpage/internal/platform/config"
)

func main() {
	cfg, err := sweepercmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse config: %v", err)
	}
	log.SetPrefix("[SWEEPER] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceSweeper, func(ctx context.Context) error {
		return sweepercmd.Run(ctx, cfg)
	})
	if err != nil {
		log.Fatalf("sweep failed: %v", err)
	}
}
