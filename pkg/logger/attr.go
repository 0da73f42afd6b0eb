package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Error records err under "error". A nil error yields an empty Attr, which
// slog drops.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Errors groups the non-nil errors under "errors", keyed by position.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// JobID records a job id under "job_id". Empty ids are dropped.
func JobID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("job_id", id)
}

// JobType records a job type under "job_type".
func JobType(t string) slog.Attr {
	if t == "" {
		return slog.Attr{}
	}
	return slog.String("job_type", t)
}

func RoutingKey(key string) slog.Attr {
	return slog.String("routing_key", key)
}

func Queue(name string) slog.Attr {
	return slog.String("queue", name)
}

func ConsumerTag(tag string) slog.Attr {
	return slog.String("consumer_tag", tag)
}

// RetryCount records the envelope's redrive counter under "retry_count".
func RetryCount(count int) slog.Attr {
	return slog.Int("retry_count", count)
}

// Attempt records the 1-based attempt number of a retried call.
func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

// Delay records a backoff delay under "delay".
func Delay(d time.Duration) slog.Attr {
	return slog.Duration("delay", d)
}

// Label records the retry or gate label, usually the provider name.
func Label(name string) slog.Attr {
	return slog.String("label", name)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Duration records how long something took under "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}
