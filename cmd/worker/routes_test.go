package main

import (
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/seoflow/pkg/metrics"
	"github.com/dmitrymomot/seoflow/pkg/provider"
	"github.com/dmitrymomot/seoflow/pkg/queue"
)

func TestRouteConfig_Build(t *testing.T) {
	t.Parallel()

	cfg := provider.Config{MaxAttempts: 3, Concurrency: map[string]int{"dataforseo": 2, "openai": 4}}
	gates, err := cfg.Gates()
	require.NoError(t, err)

	rc := routeConfig{Endpoints: map[string]string{
		"generate":  "https://writer.internal/run",
		"crawl":     "https://crawler.internal/run",
		"discovery": "https://crawler.internal/discover",
		"publish":   "https://cms.internal/post",
	}}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	routes, err := rc.build(cfg, gates, metrics.New(prometheus.NewRegistry()), log)
	require.NoError(t, err)
	require.Len(t, routes, 4)

	byType := make(map[queue.JobType]string)
	for _, r := range routes {
		byType[r.Type] = r.Provider.Name()
	}
	assert.Equal(t, "dataforseo", byType[queue.JobTypeCrawl])
	assert.Equal(t, "openai", byType[queue.JobTypeGenerate])
	assert.Equal(t, "cms", byType[queue.JobTypePublish])

	// Types mapped to one class share the client, and with it the breaker.
	assert.Same(t, routes[0].Provider, routes[1].Provider, "crawl and discovery")
	assert.Equal(t, queue.JobTypeCrawl, routes[0].Type)
	assert.Equal(t, "https://crawler.internal/run", routes[0].Path)
}

func TestRouteConfig_UnknownType(t *testing.T) {
	t.Parallel()

	rc := routeConfig{Endpoints: map[string]string{
		"index":  "https://x",
		"crawl":  "https://crawler.internal/run",
		"report": "https://y",
	}}
	routes, err := rc.build(provider.Config{}, nil, metrics.New(prometheus.NewRegistry()), slog.Default())
	assert.Nil(t, routes)
	assert.ErrorContains(t, err, `unknown job types ["index" "report"]`)
}
