package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	t.Run("Should treat invalid station and missing route as not found", func(t *testing.T) {
		assert.True(t, IsNotFound(NewInvalidStation("Station_Z")))
		assert.True(t, IsNotFound(NewRouteNotFound("Station_A", "Station_F")))
		assert.True(t, IsNotFound(NewNotFound("station")))
		assert.False(t, IsNotFound(NewUnavailable("routing service", context.DeadlineExceeded)))
	})

	t.Run("Should keep invalid station distinct from missing route", func(t *testing.T) {
		err := NewRouteNotFound("Station_A", "Station_F")
		assert.True(t, IsRouteNotFound(err))
		assert.False(t, IsInvalidStation(err))
	})

	t.Run("Should classify wrapped errors", func(t *testing.T) {
		err := fmt.Errorf("compute: %w", NewUnavailable("timeout", context.DeadlineExceeded))
		assert.True(t, IsUnavailable(err))
		assert.True(t, stderrors.Is(err, context.DeadlineExceeded))
	})

	t.Run("Should report empty type for foreign errors", func(t *testing.T) {
		assert.Equal(t, ErrorType(""), TypeOf(stderrors.New("boom")))
		assert.False(t, IsInternal(nil))
	})
}

func TestWrap(t *testing.T) {
	t.Run("Should preserve the type of application errors", func(t *testing.T) {
		err := Wrap(NewInvalidStation("X"), "load route")
		assert.True(t, IsInvalidStation(err))
		assert.Contains(t, err.Error(), "load route")
	})

	t.Run("Should turn foreign errors into internal errors", func(t *testing.T) {
		cause := stderrors.New("disk full")
		err := Wrap(cause, "write snapshot")
		assert.True(t, IsInternal(err))
		assert.ErrorIs(t, err, cause)
	})

	t.Run("Should return nil for nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, "noop"))
	})
}
