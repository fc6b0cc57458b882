package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
)

var errBackend = errors.New("backend down")

func fail() (interface{}, error) { return nil, errBackend }

func TestNewBreaker(t *testing.T) {
	t.Run("Should stay closed below the minimum request count", func(t *testing.T) {
		cb := NewBreaker(DefaultBreakerConfig("test"), nil, nil)
		for i := 0; i < 4; i++ {
			_, _ = cb.Execute(fail)
		}
		assert.Equal(t, gobreaker.StateClosed, cb.State())
	})

	t.Run("Should open once the failure ratio is reached", func(t *testing.T) {
		cb := NewBreaker(DefaultBreakerConfig("test"), nil, nil)
		for i := 0; i < 5; i++ {
			_, _ = cb.Execute(fail)
		}
		assert.Equal(t, gobreaker.StateOpen, cb.State())

		_, err := cb.Execute(fail)
		assert.True(t, IsOpen(err))
		assert.False(t, IsOpen(errBackend))
	})

	t.Run("Should not count errors the caller treats as success", func(t *testing.T) {
		cb := NewBreaker(DefaultBreakerConfig("test"), func(err error) bool {
			return err == nil || errors.Is(err, errBackend)
		}, nil)
		for i := 0; i < 10; i++ {
			_, _ = cb.Execute(fail)
		}
		assert.Equal(t, gobreaker.StateClosed, cb.State())
	})

	t.Run("Should move to half-open after the timeout", func(t *testing.T) {
		cfg := DefaultBreakerConfig("test")
		cfg.Timeout = 10 * time.Millisecond
		cb := NewBreaker(cfg, nil, nil)
		for i := 0; i < 5; i++ {
			_, _ = cb.Execute(fail)
		}
		assert.Eventually(t, func() bool {
			return cb.State() == gobreaker.StateHalfOpen
		}, time.Second, 5*time.Millisecond)
	})
}
