package provider_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/seoflow/pkg/provider"
)

func TestCircuitBreaker(t *testing.T) {
	t.Parallel()

	t.Run("opens after threshold", func(t *testing.T) {
		t.Parallel()

		cb := provider.NewCircuitBreaker(3, 1, time.Hour)
		for range 2 {
			cb.RecordFailure()
			assert.True(t, cb.Allow())
		}
		cb.RecordFailure()
		assert.Equal(t, provider.CircuitOpen, cb.State())
		assert.False(t, cb.Allow())
	})

	t.Run("success resets failures", func(t *testing.T) {
		t.Parallel()

		cb := provider.NewCircuitBreaker(2, 1, time.Hour)
		cb.RecordFailure()
		cb.RecordSuccess()
		cb.RecordFailure()
		assert.Equal(t, provider.CircuitClosed, cb.State())
	})

	t.Run("half-open recovers", func(t *testing.T) {
		t.Parallel()

		cb := provider.NewCircuitBreaker(1, 2, 10*time.Millisecond)
		cb.RecordFailure()
		assert.False(t, cb.Allow())

		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, provider.CircuitHalfOpen, cb.State())
		assert.True(t, cb.Allow())

		cb.RecordSuccess()
		assert.Equal(t, provider.CircuitHalfOpen, cb.State())
		cb.RecordSuccess()
		assert.Equal(t, provider.CircuitClosed, cb.State())
	})

	t.Run("half-open failure reopens", func(t *testing.T) {
		t.Parallel()

		cb := provider.NewCircuitBreaker(1, 2, 10*time.Millisecond)
		cb.RecordFailure()
		time.Sleep(20 * time.Millisecond)
		assert.True(t, cb.Allow())

		cb.RecordFailure()
		assert.Equal(t, provider.CircuitOpen, cb.State())
		assert.False(t, cb.Allow())
	})

	t.Run("reset", func(t *testing.T) {
		t.Parallel()

		cb := provider.NewCircuitBreaker(1, 1, time.Hour)
		cb.RecordFailure()
		cb.Reset()
		assert.True(t, cb.Allow())
		assert.Equal(t, "closed", cb.State().String())
	})
}
