// Command redrive moves dead-lettered jobs back onto the main exchange.
//
//	redrive [-limit N] [-max-retries N]
//
// Jobs that already reached the retry ceiling, and bodies that are not valid
// envelopes, stay in the dead-letter queue.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrymomot/seoflow/pkg/config"
	"github.com/dmitrymomot/seoflow/pkg/logger"
	"github.com/dmitrymomot/seoflow/pkg/queue"
)

type appConfig struct {
	Logger logger.Config
	Queue  queue.Config
}

func main() {
	limit := flag.Int("limit", 0, "maximum number of dead letters to process, 0 for all")
	maxRetries := flag.Int("max-retries", -1, "retry ceiling, -1 uses QUEUE_REDRIVE_MAX_RETRIES")
	flag.Parse()

	if err := run(*limit, *maxRetries); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(limit, maxRetries int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}

	log, err := logger.FromConfig(cfg.Logger, logger.WithAttr(logger.Component("redrive")))
	if err != nil {
		return err
	}

	client := queue.NewClient(cfg.Queue, queue.WithClientLogger(log))
	defer func() { _ = client.Close() }()

	opts := []queue.RedriverOption{queue.WithRedriverLogger(log)}
	if maxRetries >= 0 {
		opts = append(opts, queue.WithRedriveMaxRetries(maxRetries))
	}
	redriver, err := queue.NewRedriver(client, opts...)
	if err != nil {
		return err
	}

	report, err := redriver.Redrive(ctx, limit)
	log.InfoContext(ctx, "redrive finished",
		slog.Int("republished", report.Republished),
		slog.Int("parked", report.Parked),
		slog.Int("malformed", report.Malformed))
	return err
}
