// Command worker consumes jobs and forwards each one to the provider that
// does the work, with per-provider concurrency gates, retries and status
// tracking. It also serves /metrics and health probes, and can redrive the
// dead-letter queue on a schedule.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/seoflow/pkg/config"
	"github.com/dmitrymomot/seoflow/pkg/gate"
	"github.com/dmitrymomot/seoflow/pkg/httpserver"
	"github.com/dmitrymomot/seoflow/pkg/jobs"
	"github.com/dmitrymomot/seoflow/pkg/jobstatus"
	"github.com/dmitrymomot/seoflow/pkg/logger"
	"github.com/dmitrymomot/seoflow/pkg/metrics"
	"github.com/dmitrymomot/seoflow/pkg/provider"
	"github.com/dmitrymomot/seoflow/pkg/queue"
)

type appConfig struct {
	Logger   logger.Config
	Queue    queue.Config
	Status   jobstatus.Config
	Provider provider.Config
	Routes   routeConfig

	MetricsAddr     string        `env:"METRICS_ADDR" envDefault:":9090"`
	RedriveInterval time.Duration `env:"REDRIVE_INTERVAL" envDefault:"0s"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}

	log, err := logger.FromConfig(cfg.Logger, logger.WithAttr(logger.Component("worker")))
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	if !cfg.Queue.Enabled || cfg.Queue.URL == "" {
		return errors.New("worker needs a broker: set AMQP_URL and QUEUE_ENABLED")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(reg)

	gates, err := cfg.Provider.Gates(gate.WithObserver(rec.GateObserver()))
	if err != nil {
		return err
	}

	status, err := jobstatus.Open(ctx, cfg.Status, log)
	if err != nil {
		return err
	}
	defer func() { _ = status.Close() }()

	mux := queue.NewMux()
	routes, err := cfg.Routes.build(cfg.Provider, gates, rec, log)
	if err != nil {
		return err
	}
	if err := jobs.Register(mux, jobstatus.NewTracker(status.Store, log).Track, routes...); err != nil {
		return err
	}
	for _, r := range routes {
		log.InfoContext(ctx, "job route registered",
			logger.JobType(string(r.Type)),
			logger.Label(r.Provider.Name()),
			slog.String("endpoint", r.Path))
	}

	client := queue.NewClient(cfg.Queue, queue.WithClientLogger(log))
	defer func() { _ = client.Close() }()

	consumer, err := queue.NewConsumer(client,
		queue.WithConsumerLogger(log),
		queue.WithConsumerMetrics(rec))
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Handle("/metrics", metrics.Handler(reg))
	r.Get("/health/live", httpserver.Liveness())
	r.Get("/health/ready", httpserver.Readiness(log, 3*time.Second,
		httpserver.Check{Name: "broker", Fn: client.Healthcheck},
		httpserver.Check{Name: "status_store", Fn: status.Ping},
	))
	srv := httpserver.New(httpserver.WithAddr(cfg.MetricsAddr), httpserver.WithLogger(log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(consumer.Run(ctx, mux.Serve))
	g.Go(srv.Start(ctx, r))
	if cfg.RedriveInterval > 0 {
		redriver, err := queue.NewRedriver(client, queue.WithRedriverLogger(log))
		if err != nil {
			return err
		}
		g.Go(redriveLoop(ctx, redriver, cfg.RedriveInterval, rec, log))
	}

	return g.Wait()
}

// redriveLoop runs a full redrive pass every interval until ctx is done.
// A failed pass is logged and retried on the next tick.
func redriveLoop(ctx context.Context, r *queue.Redriver, interval time.Duration, rec *metrics.Recorder, log *slog.Logger) func() error {
	return func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				report, err := r.Redrive(ctx, 0)
				rec.ObserveRedrive(report)
				if err != nil && ctx.Err() == nil {
					log.WarnContext(ctx, "redrive pass failed", logger.Error(err))
				}
			}
		}
	}
}
