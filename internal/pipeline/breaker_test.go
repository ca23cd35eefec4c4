package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test", 5, 50*time.Millisecond)
	boom := errors.New("boom")

	for i := 0; i < 5; i++ {
		assert.Equal(t, BreakerClosed, cb.State())
		err := cb.Execute(func() error { return boom })
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, BreakerOpen, cb.State())

	// Calls fail fast while open, without invoking fn
	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.False(t, called)

	var open *ErrBreakerOpen
	require.ErrorAs(t, err, &open)
	assert.Equal(t, "test", open.Service)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, 20*time.Millisecond)
	boom := errors.New("boom")

	cb.Execute(func() error { return boom })
	cb.Execute(func() error { return boom })
	assert.Equal(t, BreakerOpen, cb.State())

	time.Sleep(25 * time.Millisecond)
	assert.Equal(t, BreakerHalfOpen, cb.State())

	// Trial success closes the breaker and resets the counter
	err := cb.Execute(func() error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, BreakerClosed, cb.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 10*time.Millisecond)
	boom := errors.New("boom")

	cb.Execute(func() error { return boom })
	assert.Equal(t, BreakerOpen, cb.State())

	time.Sleep(15 * time.Millisecond)
	err := cb.Execute(func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, BreakerOpen, cb.State())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, time.Second)
	boom := errors.New("boom")

	cb.Execute(func() error { return boom })
	cb.Execute(func() error { return boom })
	cb.Execute(func() error { return nil })
	cb.Execute(func() error { return boom })
	cb.Execute(func() error { return boom })

	assert.Equal(t, BreakerClosed, cb.State())
}

func TestBreakerRegistryProfiles(t *testing.T) {
	registry := NewBreakerRegistry()

	gen := registry.Get("generator")
	assert.Equal(t, 5, gen.failureThreshold)
	assert.Equal(t, 30*time.Second, gen.recoveryTimeout)

	urls := registry.Get("url_validation")
	assert.Equal(t, 10, urls.failureThreshold)
	assert.Equal(t, 15*time.Second, urls.recoveryTimeout)

	img := registry.Get("image")
	assert.Equal(t, 3, img.failureThreshold)

	// Same instance returned per service
	assert.Same(t, gen, registry.Get("generator"))
}
