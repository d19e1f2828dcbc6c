// Command seed fills an empty database with demo accounts and deals.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"

	"github.com/sethvargo/go-envconfig"

	"github.com/pinnity/pinnity/internal/app"
	"github.com/pinnity/pinnity/internal/config"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	var sc app.SeedConfig
	if err := envconfig.Process(ctx, &sc); err != nil {
		logger.Error("failed to load seed config", "error", err)
		os.Exit(1)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialise", "error", err)
		os.Exit(1)
	}
	defer a.Close(context.Background())

	res, err := a.Seed(ctx, sc)
	if errors.Is(err, app.ErrAlreadySeeded) {
		logger.Info("nothing to do", "reason", err)
		return
	}
	if err != nil {
		logger.Error("seed failed", "error", err)
		a.Close(context.Background())
		os.Exit(1)
	}

	logger.Info("seeded demo data", "admin", sc.AdminEmail, "vendor", sc.VendorEmail, "customer", sc.CustomerEmail, "deals", len(res.Deals))
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(res)
}
