package jobapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/seoflow/pkg/httpserver"
	"github.com/dmitrymomot/seoflow/pkg/jobstatus"
	"github.com/dmitrymomot/seoflow/pkg/logger"
	"github.com/dmitrymomot/seoflow/pkg/queue"
	"github.com/dmitrymomot/seoflow/pkg/ratelimiter"
	"github.com/dmitrymomot/seoflow/pkg/requestid"
)

const (
	defaultMaxBody        = 1 << 20
	defaultRequestTimeout = 30 * time.Second
	defaultReadyTimeout   = 3 * time.Second
)

// Publisher is the part of *queue.Publisher the API needs.
type Publisher interface {
	PublishResult(ctx context.Context, msg queue.JobMessage) queue.PublishResult
}

// Limiter is the part of *ratelimiter.Bucket the API needs.
type Limiter interface {
	Allow(ctx context.Context, key string) (*ratelimiter.Result, error)
}

// API serves the job routes.
type API struct {
	pub            Publisher
	store          jobstatus.Store
	limiter        Limiter
	logger         *slog.Logger
	checks         []httpserver.Check
	readyTimeout   time.Duration
	requestTimeout time.Duration
	maxBody        int64
	now            func() time.Time
}

// New creates an API publishing through pub and recording status in store.
func New(pub Publisher, store jobstatus.Store, opts ...Option) (*API, error) {
	if pub == nil {
		return nil, ErrNilPublisher
	}
	if store == nil {
		return nil, ErrNilStore
	}

	a := &API{
		pub:            pub,
		store:          store,
		logger:         slog.Default(),
		readyTimeout:   defaultReadyTimeout,
		requestTimeout: defaultRequestTimeout,
		maxBody:        defaultMaxBody,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Router returns the chi router with every route mounted.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestid.Middleware)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", httpserver.Liveness())
	r.Get("/health/ready", httpserver.Readiness(a.logger, a.readyTimeout, a.checks...))

	r.Route("/jobs", func(r chi.Router) {
		r.Use(middleware.Timeout(a.requestTimeout))
		r.Post("/", a.createJob)
		r.Get("/{id}", a.getJob)
	})

	return r
}

type createJobRequest struct {
	Type    queue.JobType  `json:"type"`
	Payload map[string]any `json:"payload"`
}

type createJobResponse struct {
	JobID   string          `json:"jobId"`
	Durable bool            `json:"durable"`
	State   jobstatus.State `json:"state"`
}

func (a *API) createJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := decodeCreate(http.MaxBytesReader(w, r.Body, a.maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err)
		return
	}

	msg := queue.JobMessage{Type: req.Type, Payload: req.Payload}
	if !a.allow(w, r, msg) {
		return
	}

	res := a.pub.PublishResult(ctx, msg)

	// A fast worker may have recorded progress already; that record wins.
	status := jobstatus.Accepted(res, msg, a.now())
	created, err := a.store.Create(ctx, status)
	switch {
	case err != nil:
		// The job is already published, a store failure is only logged.
		a.logger.ErrorContext(ctx, "failed to record accepted job",
			logger.JobID(res.ID),
			logger.JobType(string(req.Type)),
			logger.Error(err))
	case !created:
		if current, gerr := a.store.Get(ctx, res.ID); gerr == nil {
			status = current
		}
	}

	a.logger.InfoContext(ctx, "job accepted",
		logger.JobID(res.ID),
		logger.JobType(string(req.Type)),
		slog.Bool("durable", res.Durable),
		slog.String("request_id", requestid.FromContext(ctx)))

	writeJSON(w, http.StatusAccepted, createJobResponse{
		JobID:   res.ID,
		Durable: res.Durable,
		State:   status.State,
	})
}

// allow applies the submission limit per project, or per client address
// when the payload has no project. Limiter failures let the request through.
func (a *API) allow(w http.ResponseWriter, r *http.Request, msg queue.JobMessage) bool {
	if a.limiter == nil {
		return true
	}

	key := "ip:" + r.RemoteAddr
	if pid := (queue.JobEnvelope{Payload: msg.Payload}).ProjectID(); pid != "" {
		key = "project:" + pid
	}

	res, err := a.limiter.Allow(r.Context(), key)
	if err != nil {
		a.logger.WarnContext(r.Context(), "submission limiter unavailable", logger.Error(err))
		return true
	}

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(0, res.Remaining)))
	if res.Allowed() {
		return true
	}

	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter().Seconds()))))
	writeError(w, http.StatusTooManyRequests, "rate_limited", errors.New("too many jobs submitted, retry later"))
	return false
}

func decodeCreate(body io.Reader) (createJobRequest, error) {
	var req createJobRequest

	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	if !req.Type.Valid() {
		return req, fmt.Errorf("%w: %q", ErrUnknownJobType, req.Type)
	}
	if req.Payload == nil {
		return req, ErrPayloadRequired
	}
	return req, nil
}

func (a *API) getJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	status, err := a.store.Get(r.Context(), id)
	switch {
	case errors.Is(err, jobstatus.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("job %q not found", id))
	case err != nil:
		a.logger.ErrorContext(r.Context(), "failed to read job status", logger.JobID(id), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", errors.New("job status unavailable"))
	default:
		writeJSON(w, http.StatusOK, status)
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, code int, kind string, err error) {
	writeJSON(w, code, errorBody{Error: errorDetail{Code: kind, Message: err.Error()}})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
