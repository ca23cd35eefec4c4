package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/scriptor/internal/common"
)

func TestBackoffMonotonic(t *testing.T) {
	for _, profile := range []RetryProfile{
		ProfileAPICalls, ProfileURLValidation, ProfileImageGeneration, ProfileCriticalOperations,
	} {
		t.Run(profile.Name, func(t *testing.T) {
			prev := time.Duration(0)
			for attempt := 0; attempt < 10; attempt++ {
				delay := profile.Backoff(attempt)
				assert.GreaterOrEqual(t, delay, prev, "attempt %d", attempt)
				assert.LessOrEqual(t, delay, profile.MaxDelay)
				prev = delay
			}
			assert.Equal(t, profile.MaxDelay, profile.Backoff(50))
		})
	}
}

func TestBackoffInitialDelay(t *testing.T) {
	assert.Equal(t, 2*time.Second, ProfileAPICalls.Backoff(0))
	assert.Equal(t, 4*time.Second, ProfileAPICalls.Backoff(1))
	assert.Equal(t, 8*time.Second, ProfileAPICalls.Backoff(2))
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	logger := common.GetLogger()
	profile := RetryProfile{Name: "test", MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}

	calls := 0
	err := Retry(context.Background(), logger, profile, func() error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("flaky"))
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryNeverRetriesAuthOrValidation(t *testing.T) {
	logger := common.GetLogger()
	profile := RetryProfile{Name: "test", MaxRetries: 5, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}

	for _, tagged := range []error{
		NewAuthError(errors.New("bad key")),
		NewValidationError(errors.New("missing field")),
	} {
		calls := 0
		err := Retry(context.Background(), logger, profile, func() error {
			calls++
			return tagged
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	}
}

func TestRetryExhaustsAndReturnsClassified(t *testing.T) {
	logger := common.GetLogger()
	profile := RetryProfile{Name: "test", MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}

	calls := 0
	err := Retry(context.Background(), logger, profile, func() error {
		calls++
		return NewRateLimitError(errors.New("429"))
	})

	assert.Equal(t, 3, calls) // initial + 2 retries

	var classified *Error
	assert.ErrorAs(t, err, &classified)
	assert.Equal(t, CategoryRateLimit, classified.Category)
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	logger := common.GetLogger()
	profile := RetryProfile{Name: "test", MaxRetries: 5, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 2}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Retry(ctx, logger, profile, func() error {
		return NewTransientError(errors.New("always fails"))
	})
	assert.Error(t, err)
}
