package pipeline

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/ternarybob/arbor"
)

// RetryProfile defines exponential backoff behavior for one class of calls
type RetryProfile struct {
	Name         string
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// Retry profiles per call class. Authentication and validation errors are
// never retried regardless of profile.
var (
	ProfileAPICalls = RetryProfile{
		Name:         "api_calls",
		MaxRetries:   3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	ProfileURLValidation = RetryProfile{
		Name:         "url_validation",
		MaxRetries:   2,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
	ProfileImageGeneration = RetryProfile{
		Name:         "image_generation",
		MaxRetries:   2,
		InitialDelay: 5 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
	}
	ProfileCriticalOperations = RetryProfile{
		Name:         "critical_operations",
		MaxRetries:   5,
		InitialDelay: time.Second,
		MaxDelay:     120 * time.Second,
		Multiplier:   2.0,
	}
)

// Backoff returns the un-jittered delay before retry attempt i (0-based):
// min(initial × multiplier^i, max). The sequence is non-decreasing.
func (p RetryProfile) Backoff(attempt int) time.Duration {
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt))
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// jitter scales a delay by a uniform factor in [0.5, 1.0]
func jitter(d time.Duration) time.Duration {
	factor := 0.5 + rand.Float64()*0.5
	return time.Duration(float64(d) * factor)
}

// Retry runs fn with the profile's backoff until it succeeds, a
// non-recoverable error occurs, or retries are exhausted. The returned error
// is always classified.
func Retry(ctx context.Context, logger arbor.ILogger, profile RetryProfile, fn func() error) error {
	var lastErr *Error

	for attempt := 0; attempt <= profile.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = Classify(err)
		if !lastErr.Recoverable {
			logger.Debug().
				Str("profile", profile.Name).
				Str("category", string(lastErr.Category)).
				Err(lastErr.Err).
				Msg("Non-recoverable error, not retrying")
			return lastErr
		}

		if attempt == profile.MaxRetries {
			break
		}

		delay := jitter(profile.Backoff(attempt))
		logger.Debug().
			Str("profile", profile.Name).
			Int("attempt", attempt+1).
			Int("max_retries", profile.MaxRetries).
			Dur("delay", delay).
			Err(lastErr.Err).
			Msg("Retrying after backoff")

		select {
		case <-ctx.Done():
			return Classify(ctx.Err())
		case <-time.After(delay):
		}
	}

	logger.Warn().
		Str("profile", profile.Name).
		Int("max_retries", profile.MaxRetries).
		Err(lastErr.Err).
		Msg("All retry attempts exhausted")

	return lastErr
}
