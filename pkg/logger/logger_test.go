package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/seoflow/pkg/logger"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json by default", func(t *testing.T) {
		t.Parallel()

		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithAttr(slog.String("svc", "test")))
		log.Info("hello")

		entry := decodeLine(t, buf)
		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "hello", entry["msg"])
		assert.Equal(t, "test", entry["svc"])
	})

	t.Run("debug filtered at info level", func(t *testing.T) {
		t.Parallel()

		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf))
		log.Debug("hidden")
		assert.Zero(t, buf.Len())
	})

	t.Run("text format", func(t *testing.T) {
		t.Parallel()

		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithFormat(logger.FormatText))
		log.Info("hello")
		assert.Contains(t, buf.String(), "level=INFO")
		assert.Contains(t, buf.String(), "msg=hello")
	})

	t.Run("invalid format panics", func(t *testing.T) {
		t.Parallel()

		assert.Panics(t, func() { logger.New(logger.WithFormat("xml")) })
	})
}

func TestWithEnvironment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env      string
		wantEnv  string
		wantJSON bool
		debug    bool
	}{
		{"production", logger.EnvProduction, true, false},
		{"prod", logger.EnvProduction, true, false},
		{"stage", logger.EnvStaging, true, false},
		{"development", logger.EnvDevelopment, false, true},
		{"", logger.EnvDevelopment, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Parallel()

			buf := &bytes.Buffer{}
			log := logger.New(logger.WithOutput(buf), logger.WithEnvironment(tt.env, "worker"))
			log.Debug("level check")

			if !tt.debug {
				assert.Zero(t, buf.Len())
				log.Info("level check")
			}

			if tt.wantJSON {
				entry := decodeLine(t, buf)
				assert.Equal(t, "worker", entry["service"])
				assert.Equal(t, tt.wantEnv, entry["env"])
			} else {
				assert.Contains(t, buf.String(), "service=worker")
				assert.Contains(t, buf.String(), "env="+tt.wantEnv)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	l, err := logger.ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, l)

	l, err = logger.ParseLevel(" WARN ")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, l)

	_, err = logger.ParseLevel("loud")
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log, err := logger.FromConfig(logger.Config{Level: "warn", Env: "production", Service: "dispatcher"}, logger.WithOutput(buf))
	require.NoError(t, err)

	log.Info("dropped")
	assert.Zero(t, buf.Len())
	log.Warn("kept")
	assert.Equal(t, "dispatcher", decodeLine(t, buf)["service"])

	_, err = logger.FromConfig(logger.Config{Level: "nope"})
	assert.Error(t, err)
}

func TestWithJob(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.New(logger.WithOutput(buf))

	ctx := logger.WithJob(context.Background(), "job_abc_1", "crawl")
	id, jobType, ok := logger.JobFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "job_abc_1", id)
	assert.Equal(t, "crawl", jobType)

	log.InfoContext(ctx, "fetching sitemap")
	entry := decodeLine(t, buf)
	assert.Equal(t, map[string]any{"id": "job_abc_1", "type": "crawl"}, entry["job"])

	buf.Reset()
	log.InfoContext(context.Background(), "no job")
	assert.NotContains(t, decodeLine(t, buf), "job")
}

func TestAttrs(t *testing.T) {
	t.Parallel()

	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
	assert.Equal(t, "error", logger.Error(errors.New("x")).Key)
	assert.True(t, logger.Errors(nil, nil).Equal(slog.Attr{}))
	assert.Len(t, logger.Errors(errors.New("a"), nil, errors.New("b")).Value.Group(), 2)
	assert.True(t, logger.JobID("").Equal(slog.Attr{}))
	assert.Equal(t, "job_id", logger.JobID("job_1").Key)
	assert.Equal(t, "crawl.p1", logger.RoutingKey("crawl.p1").Value.String())
	assert.Equal(t, int64(2), logger.Attempt(2).Value.Int64())
	assert.Equal(t, 250*time.Millisecond, logger.Delay(250*time.Millisecond).Value.Duration())

	buf := &bytes.Buffer{}
	log := logger.New(logger.WithOutput(buf))
	log.Info("grouped", logger.Group("provider", logger.Label("openai"), logger.Component("retry")))
	assert.True(t, strings.Contains(buf.String(), `"provider":{"label":"openai","component":"retry"}`))
}
