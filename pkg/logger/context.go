package logger

import (
	"context"
	"log/slog"
)

// ContextExtractor pulls an attribute out of a context at log time.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

type jobContextKey struct{}

type jobInfo struct {
	id      string
	jobType string
}

// WithJob returns a copy of ctx that tags log records with the job id and type.
func WithJob(ctx context.Context, id, jobType string) context.Context {
	return context.WithValue(ctx, jobContextKey{}, jobInfo{id: id, jobType: jobType})
}

// JobFromContext returns the job id and type stored by WithJob.
func JobFromContext(ctx context.Context) (id, jobType string, ok bool) {
	info, ok := ctx.Value(jobContextKey{}).(jobInfo)
	return info.id, info.jobType, ok
}

// JobExtractor adds job_id and job_type to records logged with a WithJob context.
func JobExtractor(ctx context.Context) (slog.Attr, bool) {
	id, jobType, ok := JobFromContext(ctx)
	if !ok {
		return slog.Attr{}, false
	}
	return Group("job", slog.String("id", id), slog.String("type", jobType)), true
}

// decorator runs the extractors for every record before delegating.
type decorator struct {
	next       slog.Handler
	extractors []ContextExtractor
}

// NewDecorator wraps next so every record carries the attributes produced
// by extractors. Nil extractors are skipped.
func NewDecorator(next slog.Handler, extractors ...ContextExtractor) slog.Handler {
	clean := make([]ContextExtractor, 0, len(extractors))
	for _, ex := range extractors {
		if ex != nil {
			clean = append(clean, ex)
		}
	}
	return &decorator{next: next, extractors: clean}
}

func (h *decorator) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *decorator) Handle(ctx context.Context, rec slog.Record) error {
	if ctx != nil {
		for _, ex := range h.extractors {
			if attr, ok := ex(ctx); ok {
				rec.AddAttrs(attr)
			}
		}
	}
	return h.next.Handle(ctx, rec)
}

func (h *decorator) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &decorator{next: h.next.WithAttrs(attrs), extractors: h.extractors}
}

func (h *decorator) WithGroup(name string) slog.Handler {
	return &decorator{next: h.next.WithGroup(name), extractors: h.extractors}
}
