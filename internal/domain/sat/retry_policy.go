package sat

import (
	"context"
	"errors"
	"time"
)

// FailureKind classifies a protocol failure for retry handling
type FailureKind string

const (
	FailureTransient   FailureKind = "transient"
	FailureRateLimited FailureKind = "rate_limited"
	FailurePermanent   FailureKind = "permanent"
)

// RetryPolicy decides when a failed or throttled request runs again.
// Backoff doubles per retry up to MaxDelay; throttles schedule a resume
// without consuming retry budget.
type RetryPolicy struct {
	// BaseDelay is the delay before the first retry
	BaseDelay time.Duration
	// MaxDelay caps the exponential backoff
	MaxDelay time.Duration
	// MaxRetries is the ceiling of automatic retries before operator reset
	MaxRetries int
	// MinuteQuotaWait is the pause applied on a per-minute quota rejection
	MinuteQuotaWait time.Duration
	// DailyQuotaResumeHour is the local hour at which daily-quota pauses resume
	DailyQuotaResumeHour int
}

// DefaultRetryPolicy returns the retry policy used in production
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay:            30 * time.Second,
		MaxDelay:             30 * time.Minute,
		MaxRetries:           5,
		MinuteQuotaWait:      2 * time.Minute,
		DailyQuotaResumeHour: 6,
	}
}

// Classify maps a client error to a failure kind
func (p RetryPolicy) Classify(err error) FailureKind {
	var throttle *ThrottleError
	if errors.As(err, &throttle) {
		return FailureRateLimited
	}
	switch {
	case errors.Is(err, ErrRequestRejected),
		errors.Is(err, ErrPackageExpired),
		errors.Is(err, ErrInvalidCredentials):
		return FailurePermanent
	case errors.Is(err, context.Canceled):
		return FailurePermanent
	}
	// Timeouts, connection resets and unknown remote errors are retryable
	return FailureTransient
}

// Exhausted returns true when the retry budget has been spent.
// retryCount is the number of retries already recorded.
func (p RetryPolicy) Exhausted(retryCount int) bool {
	return retryCount >= p.MaxRetries
}

// NextRetryAt computes the next retry time for a transient failure.
// retryCount is the count before the failing attempt, so the first
// failure waits BaseDelay and each subsequent one doubles it.
func (p RetryPolicy) NextRetryAt(retryCount int, now time.Time) time.Time {
	delay := p.BaseDelay
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}
	return now.Add(delay)
}

// ThrottleResumeAt computes when a throttled request may run again.
// Minute quotas resume after a short wait; daily quotas resume at the
// configured hour of the next day.
func (p RetryPolicy) ThrottleResumeAt(kind ThrottleKind, now time.Time) time.Time {
	if kind == ThrottleMinuteQuota {
		return now.Add(p.MinuteQuotaWait)
	}
	// The daily quota resets with the calendar day, so the earliest useful
	// resume is the configured hour of the next day
	next := time.Date(now.Year(), now.Month(), now.Day(), p.DailyQuotaResumeHour, 0, 0, 0, now.Location())
	return next.AddDate(0, 0, 1)
}
