package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/seoflow/pkg/httpserver"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
}

// startServer runs srv on a random port and returns the bound address.
func startServer(t *testing.T, ctx context.Context, srv *httpserver.Server, h http.Handler) (string, <-chan error) {
	t.Helper()

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, h) }()

	require.Eventually(t, func() bool { return srv.Addr() != "" }, time.Second, 5*time.Millisecond)
	return srv.Addr(), done
}

func TestRunAndShutdown(t *testing.T) {
	t.Parallel()

	srv := httpserver.New(httpserver.WithAddr("127.0.0.1:0"), httpserver.WithShutdownTimeout(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, done := startServer(t, ctx, srv, okHandler())

	resp, err := http.Get("http://" + addr)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, "ok", string(body))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		require.Fail(t, "run did not finish")
	}
	require.NoError(t, srv.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestManualShutdown(t *testing.T) {
	t.Parallel()

	srv := httpserver.New(httpserver.WithAddr("127.0.0.1:0"))
	_, done := startServer(t, context.Background(), srv, okHandler())

	require.NoError(t, srv.Shutdown(context.Background()))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		require.Fail(t, "run did not finish")
	}
}

func TestShutdownBeforeRun(t *testing.T) {
	t.Parallel()

	assert.NoError(t, httpserver.New().Shutdown(context.Background()))
}

func TestStartError(t *testing.T) {
	t.Parallel()

	srv := httpserver.New(httpserver.WithAddr(":invalid"))
	err := srv.Run(context.Background(), okHandler())
	require.Error(t, err)
	assert.ErrorIs(t, err, httpserver.ErrStart)
}

func TestStartError_AddressInUse(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	err = httpserver.New(httpserver.WithAddr(ln.Addr().String())).Run(context.Background(), okHandler())
	assert.ErrorIs(t, err, httpserver.ErrStart)
}

func TestRunTwice(t *testing.T) {
	t.Parallel()

	srv := httpserver.New(httpserver.WithAddr("127.0.0.1:0"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, done := startServer(t, ctx, srv, okHandler())

	assert.ErrorIs(t, srv.Run(ctx, okHandler()), httpserver.ErrAlreadyRunning)

	cancel()
	<-done
}

func TestListenHook(t *testing.T) {
	t.Parallel()

	bound := make(chan string, 1)
	srv := httpserver.New(
		httpserver.WithAddr("127.0.0.1:0"),
		httpserver.WithListenHook(func(addr string) { bound <- addr }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	g := srv.Start(ctx, okHandler())
	done := make(chan error, 1)
	go func() { done <- g() }()

	addr := <-bound
	assert.NotEqual(t, "127.0.0.1:0", addr)
	assert.Equal(t, addr, srv.Addr())

	cancel()
	require.NoError(t, <-done)
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	srv := httpserver.NewFromConfig(httpserver.Config{Addr: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())
	addr, done := startServer(t, ctx, srv, okHandler())
	assert.NotEmpty(t, addr)
	cancel()
	require.NoError(t, <-done)
}

func TestOptionPanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { httpserver.WithAddr("") })
	assert.Panics(t, func() { httpserver.WithReadTimeout(0) })
	assert.Panics(t, func() { httpserver.WithWriteTimeout(-time.Second) })
	assert.Panics(t, func() { httpserver.WithIdleTimeout(0) })
	assert.Panics(t, func() { httpserver.WithShutdownTimeout(0) })
	assert.Panics(t, func() { httpserver.WithListenHook(nil) })
}

func decodeHealth(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestLiveness(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	httpserver.Liveness()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "alive", decodeHealth(t, rec)["status"])
}

func TestReadiness(t *testing.T) {
	t.Parallel()

	ok := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name   string
		checks []httpserver.Check
		code   int
		status string
		result map[string]any
	}{
		{
			name:   "no checks",
			code:   http.StatusOK,
			status: "ready",
		},
		{
			name:   "all pass",
			checks: []httpserver.Check{{Name: "broker", Fn: ok}, {Name: "store", Fn: ok}},
			code:   http.StatusOK,
			status: "ready",
			result: map[string]any{"broker": "ok", "store": "ok"},
		},
		{
			name:   "one fails",
			checks: []httpserver.Check{{Name: "broker", Fn: fail}, {Name: "store", Fn: ok}},
			code:   http.StatusServiceUnavailable,
			status: "not_ready",
			result: map[string]any{"broker": "fail", "store": "ok"},
		},
		{
			name:   "nil check skipped",
			checks: []httpserver.Check{{Name: "store"}},
			code:   http.StatusOK,
			status: "ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			httpserver.Readiness(nil, time.Second, tt.checks...)(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.code, rec.Code)
			body := decodeHealth(t, rec)
			assert.Equal(t, tt.status, body["status"])
			if tt.result != nil {
				assert.Equal(t, tt.result, body["checks"])
			} else {
				assert.Empty(t, body["checks"])
			}
		})
	}
}

func TestReadiness_Timeout(t *testing.T) {
	t.Parallel()

	slow := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	rec := httptest.NewRecorder()
	httpserver.Readiness(nil, 20*time.Millisecond, httpserver.Check{Name: "broker", Fn: slow})(
		rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
