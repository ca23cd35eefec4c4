package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Category buckets an error for retry and reporting decisions
type Category string

const (
	CategoryTransient       Category = "transient"
	CategoryPermanent       Category = "permanent"
	CategoryRateLimit       Category = "rate_limit"
	CategoryAuthentication  Category = "authentication"
	CategoryValidation      Category = "validation"
	CategoryTimeout         Category = "timeout"
	CategoryExternalService Category = "external_service"
	CategoryInternal        Category = "internal"
	CategoryUnknown         Category = "unknown"
)

// Severity grades an error for reporting
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Error is a classified pipeline error. Stages attach the category at the
// throw site; Classify falls back to message matching only for foreign
// errors that arrive untagged.
type Error struct {
	Category    Category
	Severity    Severity
	Recoverable bool
	Stage       string
	Err         error
}

func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s [%s/%s]: %v", e.Stage, e.Category, e.Severity, e.Err)
	}
	return fmt.Sprintf("[%s/%s]: %v", e.Category, e.Severity, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError tags a non-recoverable validation failure
func NewValidationError(err error) *Error {
	return &Error{Category: CategoryValidation, Severity: SeverityHigh, Recoverable: false, Err: err}
}

// NewAuthError tags a non-recoverable credential failure
func NewAuthError(err error) *Error {
	return &Error{Category: CategoryAuthentication, Severity: SeverityCritical, Recoverable: false, Err: err}
}

// NewRateLimitError tags a recoverable rate-limit rejection
func NewRateLimitError(err error) *Error {
	return &Error{Category: CategoryRateLimit, Severity: SeverityMedium, Recoverable: true, Err: err}
}

// NewTransientError tags a recoverable transport failure
func NewTransientError(err error) *Error {
	return &Error{Category: CategoryTransient, Severity: SeverityMedium, Recoverable: true, Err: err}
}

// NewTimeoutError tags a recoverable timeout
func NewTimeoutError(err error) *Error {
	return &Error{Category: CategoryTimeout, Severity: SeverityMedium, Recoverable: true, Err: err}
}

// NewExternalServiceError tags a recoverable external-service degradation
func NewExternalServiceError(err error) *Error {
	return &Error{Category: CategoryExternalService, Severity: SeverityMedium, Recoverable: true, Err: err}
}

// NewInternalError tags a non-recoverable invariant violation
func NewInternalError(err error) *Error {
	return &Error{Category: CategoryInternal, Severity: SeverityCritical, Recoverable: false, Err: err}
}

// Classify maps any error to a classified pipeline error. Already-classified
// errors pass through. Foreign errors are categorized by type first, then by
// message substrings.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	// Typed checks before message sniffing
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Category: CategoryTimeout, Severity: SeverityMedium, Recoverable: true, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Category: CategoryPermanent, Severity: SeverityLow, Recoverable: false, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &Error{Category: CategoryTimeout, Severity: SeverityMedium, Recoverable: true, Err: err}
		}
		return &Error{Category: CategoryTransient, Severity: SeverityMedium, Recoverable: true, Err: err}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "429", "rate limit", "quota exceeded", "resource exhausted"):
		return &Error{Category: CategoryRateLimit, Severity: SeverityMedium, Recoverable: true, Err: err}
	case containsAny(msg, "401", "403", "unauthorized", "forbidden", "invalid api key", "permission denied"):
		return &Error{Category: CategoryAuthentication, Severity: SeverityCritical, Recoverable: false, Err: err}
	case containsAny(msg, "timeout", "timed out", "deadline exceeded"):
		return &Error{Category: CategoryTimeout, Severity: SeverityMedium, Recoverable: true, Err: err}
	case containsAny(msg, "validation", "missing required", "invalid input"):
		return &Error{Category: CategoryValidation, Severity: SeverityHigh, Recoverable: false, Err: err}
	case containsAny(msg, "connection refused", "connection reset", "no such host", "network", "502", "503", "504"):
		return &Error{Category: CategoryTransient, Severity: SeverityMedium, Recoverable: true, Err: err}
	case containsAny(msg, "500", "internal server error", "service unavailable"):
		return &Error{Category: CategoryExternalService, Severity: SeverityMedium, Recoverable: true, Err: err}
	}

	return &Error{Category: CategoryUnknown, Severity: SeverityMedium, Recoverable: false, Err: err}
}

func containsAny(msg string, patterns ...string) bool {
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
