// REUNI engine - marketplace settlement and moderation for ticket resale
package main

import (
	"context"
	"os"

	"github.com/sagwira/reuni-engine/internal/config"
	"github.com/sagwira/reuni-engine/internal/logging"
	"github.com/sagwira/reuni-engine/internal/server"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	// Create logger
	logger := logging.New("info", "text")

	logger.Info("starting reuni-engine",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
	)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"env", cfg.Env,
		"flat_fee_pence", cfg.FlatFeePence,
		"platform_bps", cfg.PlatformBps,
		"offer_expiry", cfg.OfferExpiry,
	)

	// Create and run server
	srv, err := server.New(cfg, server.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
