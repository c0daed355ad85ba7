package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker(t *testing.T) {
	clock := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(Settings{Name: "smtp", MaxFailures: 2, OpenTimeout: time.Minute})
	cb.now = func() time.Time { return clock }

	boom := errors.New("boom")
	calls := 0
	failing := func() error { calls++; return boom }
	ok := func() error { calls++; return nil }

	assert.ErrorIs(t, cb.Execute(failing), boom)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(failing), boom)
	assert.Equal(t, StateOpen, cb.State())

	assert.ErrorIs(t, cb.Execute(ok), ErrOpen)
	assert.Equal(t, 2, calls)

	clock = clock.Add(2 * time.Minute)
	assert.NoError(t, cb.Execute(ok))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 3, calls)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(Settings{Name: "smtp", MaxFailures: 1, OpenTimeout: time.Minute})
	cb.now = func() time.Time { return clock }

	boom := errors.New("boom")
	_ = cb.Execute(func() error { return boom })
	assert.Equal(t, StateOpen, cb.State())

	clock = clock.Add(time.Minute)
	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrOpen)
}
