// Command repair diagnoses and fixes rows written by older versions of the
// service.
//
//	repair diagnose
//	repair all
//	repair <job>   (backfill-approvals, verification-status, deal-status, expire, redemption-counts)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/pinnity/pinnity/internal/app"
	"github.com/pinnity/pinnity/internal/config"
	"github.com/pinnity/pinnity/internal/service"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: repair diagnose | all | %s\n", strings.Join(service.Jobs, " | "))
	os.Exit(2)
}

func main() {
	if len(os.Args) != 2 {
		usage()
	}
	cmd := os.Args[1]
	if cmd != "diagnose" && cmd != "all" && !slices.Contains(service.Jobs, cmd) {
		usage()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialise", "error", err)
		os.Exit(1)
	}
	defer a.Close(context.Background())

	var out any
	switch cmd {
	case "diagnose":
		out, err = a.Repair.Diagnose(ctx)
	case "all":
		out, err = a.Repair.RunAll(ctx)
	default:
		out, err = a.Repair.Run(ctx, cmd)
	}
	if err != nil {
		logger.Error("repair failed", "command", cmd, "error", err)
		a.Close(context.Background())
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}
