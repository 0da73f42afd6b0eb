package retry_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/seoflow/pkg/retry"
)

func TestExponentialBackoff(t *testing.T) {
	t.Parallel()

	t.Run("grows and caps with zero jitter", func(t *testing.T) {
		t.Parallel()

		b := retry.ExponentialBackoff{
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     time.Second,
			Multiplier:      2,
		}

		assert.Zero(t, b.NextInterval(0))
		assert.Equal(t, 100*time.Millisecond, b.NextInterval(1))
		assert.Equal(t, 200*time.Millisecond, b.NextInterval(2))
		assert.Equal(t, 400*time.Millisecond, b.NextInterval(3))
		assert.Equal(t, 800*time.Millisecond, b.NextInterval(4))
		assert.Equal(t, time.Second, b.NextInterval(5))
		assert.Equal(t, time.Second, b.NextInterval(50))
	})

	t.Run("jitter stays within bounds", func(t *testing.T) {
		t.Parallel()

		b := retry.ExponentialBackoff{InitialInterval: time.Second, MaxInterval: time.Minute, Multiplier: 2, JitterFactor: 0.3}
		for range 200 {
			d := b.NextInterval(2)
			assert.GreaterOrEqual(t, d, 1400*time.Millisecond)
			assert.LessOrEqual(t, d, 2600*time.Millisecond)
		}
	})

	t.Run("jitter spreads delays at the cap", func(t *testing.T) {
		t.Parallel()

		b := retry.ExponentialBackoff{InitialInterval: time.Second, MaxInterval: 10 * time.Second, Multiplier: 2, JitterFactor: 0.3}
		seen := make(map[time.Duration]struct{})
		for range 200 {
			d := b.NextInterval(12)
			assert.GreaterOrEqual(t, d, 6999*time.Millisecond)
			assert.LessOrEqual(t, d, 13001*time.Millisecond)
			seen[d] = struct{}{}
		}
		assert.Greater(t, len(seen), 1)
	})

	t.Run("zero value uses defaults", func(t *testing.T) {
		t.Parallel()

		var b retry.ExponentialBackoff
		assert.Equal(t, 200*time.Millisecond, b.NextInterval(1))
		assert.Equal(t, 10*time.Second, b.NextInterval(20))
	})
}

func TestDefaultBackoff(t *testing.T) {
	t.Parallel()

	b := retry.DefaultBackoff()
	for range 100 {
		d := b.NextInterval(1)
		assert.GreaterOrEqual(t, d, 140*time.Millisecond)
		assert.LessOrEqual(t, d, 260*time.Millisecond)
		assert.LessOrEqual(t, b.NextInterval(30), 13001*time.Millisecond)
	}
}

func TestLinearAndConstantBackoff(t *testing.T) {
	t.Parallel()

	l := retry.LinearBackoff{Interval: time.Second, MaxInterval: 3 * time.Second}
	assert.Zero(t, l.NextInterval(0))
	assert.Equal(t, 2*time.Second, l.NextInterval(2))
	assert.Equal(t, 3*time.Second, l.NextInterval(9))

	c := retry.ConstantBackoff{Interval: 50 * time.Millisecond}
	assert.Zero(t, c.NextInterval(0))
	assert.Equal(t, 50*time.Millisecond, c.NextInterval(7))
}
