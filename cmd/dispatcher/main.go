// Command dispatcher serves the job API: it publishes jobs to the broker and
// answers status and health requests.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/seoflow/pkg/config"
	"github.com/dmitrymomot/seoflow/pkg/httpserver"
	"github.com/dmitrymomot/seoflow/pkg/jobapi"
	"github.com/dmitrymomot/seoflow/pkg/jobstatus"
	"github.com/dmitrymomot/seoflow/pkg/logger"
	"github.com/dmitrymomot/seoflow/pkg/metrics"
	"github.com/dmitrymomot/seoflow/pkg/queue"
	"github.com/dmitrymomot/seoflow/pkg/ratelimiter"
	"github.com/dmitrymomot/seoflow/pkg/requestid"
)

type appConfig struct {
	Logger logger.Config
	Queue  queue.Config
	HTTP   httpserver.Config
	Status jobstatus.Config
	Limit  ratelimiter.Config
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

	log, err := logger.FromConfig(cfg.Logger,
		logger.WithAttr(logger.Component("dispatcher")),
		logger.WithContextExtractors(requestid.Extractor))
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(reg)

	client := queue.NewClient(cfg.Queue, queue.WithClientLogger(log))
	defer func() { _ = client.Close() }()

	if client.Enabled() {
		if _, err := client.EnsureTopology(ctx); err != nil {
			log.WarnContext(ctx, "broker unavailable at startup, jobs fall back until it recovers", logger.Error(err))
		}
	} else {
		log.WarnContext(ctx, "queue disabled or AMQP_URL empty, every job gets a fallback id")
	}

	pub, err := queue.NewPublisher(client,
		queue.WithPublisherLogger(log),
		queue.WithPublisherMetrics(rec))
	if err != nil {
		return err
	}

	status, err := jobstatus.Open(ctx, cfg.Status, log)
	if err != nil {
		return err
	}
	defer func() { _ = status.Close() }()

	limiter, closeLimiter, err := submitLimiter(ctx, cfg.Limit, cfg.Status.Redis, log)
	if err != nil {
		return err
	}
	defer closeLimiter()

	api, err := jobapi.New(pub, status.Store,
		jobapi.WithLogger(log),
		jobapi.WithSubmitLimiter(limiter),
		jobapi.WithReadinessChecks(
			httpserver.Check{Name: "broker", Fn: client.Healthcheck},
			httpserver.Check{Name: "status_store", Fn: status.Ping},
		))
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Handle("/metrics", metrics.Handler(reg))
	r.Mount("/", api.Router())

	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.Start(ctx, r))

	return g.Wait()
}
