package queue

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

const (
	jobIDPrefix      = "job_"
	fallbackIDPrefix = "job_local_"
	idSuffixLen      = 8
	base36Alphabet   = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// NewJobID returns job_<base36 millis>_<random base36 suffix>.
// Uniqueness is best-effort and only meant for correlation in logs and the
// status store, never as an idempotency key.
func NewJobID(now time.Time) string {
	var sb strings.Builder
	sb.Grow(len(jobIDPrefix) + 10 + 1 + idSuffixLen)
	sb.WriteString(jobIDPrefix)
	sb.WriteString(strconv.FormatInt(now.UnixMilli(), 36))
	sb.WriteByte('_')
	for range idSuffixLen {
		sb.WriteByte(base36Alphabet[rand.IntN(len(base36Alphabet))]) //nolint:gosec // correlation id, not a secret
	}
	return sb.String()
}

// FallbackID returns the id handed out when a job could not be enqueued.
func FallbackID(now time.Time) string {
	return fallbackIDPrefix + strconv.FormatInt(now.UnixMilli(), 36)
}

// IsFallbackID reports whether id was produced in degraded mode, i.e. the job
// was accepted but never reached the broker.
func IsFallbackID(id string) bool {
	return strings.HasPrefix(id, fallbackIDPrefix)
}
