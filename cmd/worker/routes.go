package main

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/samber/lo"

	"github.com/dmitrymomot/seoflow/pkg/gate"
	"github.com/dmitrymomot/seoflow/pkg/jobs"
	"github.com/dmitrymomot/seoflow/pkg/metrics"
	"github.com/dmitrymomot/seoflow/pkg/provider"
	"github.com/dmitrymomot/seoflow/pkg/queue"
)

// providerFor names the provider class whose gate and breaker a job type
// shares. Types absent here run ungated under their own name.
var providerFor = map[queue.JobType]string{
	queue.JobTypeCrawl:     "dataforseo",
	queue.JobTypeDiscovery: "dataforseo",
	queue.JobTypePlan:      "openai",
	queue.JobTypeGenerate:  "openai",
	queue.JobTypePublish:   "cms",
}

// routeConfig maps job types to the endpoint that performs them, e.g.
// JOB_ENDPOINTS="crawl=https://crawler.internal/run,generate=https://writer.internal/run".
// Types without an endpoint are not registered; their jobs are dead-lettered
// as unknown and can be redriven once the route exists.
type routeConfig struct {
	Endpoints map[string]string `env:"JOB_ENDPOINTS" envKeyValSeparator:"="`
	Token     string            `env:"JOB_ENDPOINT_TOKEN"`
	Secret    string            `env:"JOB_ENDPOINT_SECRET"`
}

func (rc routeConfig) build(cfg provider.Config, gates *gate.Registry, rec *metrics.Recorder, log *slog.Logger) ([]jobs.Route, error) {
	clients := make(map[string]*provider.Client)
	client := func(class string) *provider.Client {
		if c, ok := clients[class]; ok {
			return c
		}
		opts := append(cfg.Options(class, gates),
			provider.WithLogger(log),
			provider.WithRetryObserver(rec.RetryObserver(class)))
		if rc.Token != "" {
			opts = append(opts, provider.WithBearerToken(rc.Token))
		}
		if rc.Secret != "" {
			opts = append(opts, provider.WithSigningSecret(rc.Secret))
		}
		c := provider.New(class, opts...)
		clients[class] = c
		return c
	}

	types := lo.Keys(rc.Endpoints)
	slices.Sort(types)

	unknown := lo.Reject(types, func(t string, _ int) bool { return queue.JobType(t).Valid() })
	if len(unknown) > 0 {
		return nil, fmt.Errorf("JOB_ENDPOINTS: unknown job types %q", unknown)
	}

	return lo.Map(types, func(t string, _ int) jobs.Route {
		jt := queue.JobType(t)
		return jobs.Route{
			Type:     jt,
			Provider: client(lo.ValueOr(providerFor, jt, t)),
			Path:     rc.Endpoints[t],
		}
	}), nil
}
