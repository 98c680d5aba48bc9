package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/calib-hub/condfetch/internal/app"
	"github.com/calib-hub/condfetch/internal/config"
	"github.com/calib-hub/condfetch/internal/logger"
	"github.com/calib-hub/condfetch/pkg/condb"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "condprobe failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		profile = flag.String("config", "", "profile name or file (defaults to CONDB_CONFIG, then test)")
		bound   = flag.Int("b", 100, "upper end of the probed [0, b] interval, seconds")
		calls   = flag.Int("n", 0, "number of fetch calls (default ceil(b/10))")
		seed    = flag.Int64("seed", 12345, "random source seed")
		once    = flag.Bool("once", false, "generate tag/domain/timestamp tokens only once")
	)
	flag.Parse()

	name := *profile
	if name == "" && os.Getenv("CONDB_CONFIG") == "" {
		name = "test"
	}

	cfg, err := config.Load(name)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	log, err := logger.Init(cfg.Verbosity)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	log.Infow("probe starting", "url", cfg.URL(), "bound", *bound, "calls", *calls, "seed", *seed)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := condb.New(cfg, nil, logger.Default())
	probe, err := app.NewProbe(cfg, client, logger.Default(), os.Stdout, app.ProbeOptions{
		Bound: *bound,
		Calls: *calls,
		Seed:  *seed,
		Once:  *once,
	})
	if err != nil {
		return err
	}

	if err := probe.Run(ctx); err != nil {
		return fmt.Errorf("probe run: %w", err)
	}
	return nil
}
