// Package httpserver runs the dispatcher API and the worker metrics endpoint.
//
// Server binds its listener eagerly so the real address is known before the
// first request, then serves until the context passed to Run is cancelled and
// drains connections within the configured shutdown timeout. Signal handling
// belongs to the caller (signal.NotifyContext in cmd/), which keeps the server
// usable from errgroup:
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	g.Go(srv.Start(ctx, router))
//
// Liveness and Readiness build the /health handlers. Readiness runs every
// named check with a per-probe deadline and answers 503 with the failing
// check names when any of them errors.
//
// Listen failures are wrapped with ErrStart and drain failures with
// ErrShutdown.
package httpserver
