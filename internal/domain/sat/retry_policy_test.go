package sat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicyClassify(t *testing.T) {
	policy := DefaultRetryPolicy()

	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"throttle error", NewThrottleError(ThrottleDailyQuota), FailureRateLimited},
		{"wrapped throttle error", errors.Join(errors.New("request failed"), NewThrottleError(ThrottleMinuteQuota)), FailureRateLimited},
		{"rejected request", ErrRequestRejected, FailurePermanent},
		{"expired package", ErrPackageExpired, FailurePermanent},
		{"bad credentials", ErrInvalidCredentials, FailurePermanent},
		{"cancelled context", context.Canceled, FailurePermanent},
		{"deadline exceeded", context.DeadlineExceeded, FailureTransient},
		{"unknown error", errors.New("connection reset by peer"), FailureTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Classify(tt.err))
		})
	}
}

func TestRetryPolicyBackoff(t *testing.T) {
	policy := DefaultRetryPolicy()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("doubles per retry", func(t *testing.T) {
		assert.Equal(t, now.Add(30*time.Second), policy.NextRetryAt(0, now))
		assert.Equal(t, now.Add(time.Minute), policy.NextRetryAt(1, now))
		assert.Equal(t, now.Add(2*time.Minute), policy.NextRetryAt(2, now))
		assert.Equal(t, now.Add(4*time.Minute), policy.NextRetryAt(3, now))
	})

	t.Run("caps at max delay", func(t *testing.T) {
		assert.Equal(t, now.Add(30*time.Minute), policy.NextRetryAt(10, now))
		assert.Equal(t, now.Add(30*time.Minute), policy.NextRetryAt(50, now))
	})

	t.Run("exhaustion at ceiling", func(t *testing.T) {
		assert.False(t, policy.Exhausted(4))
		assert.True(t, policy.Exhausted(5))
		assert.True(t, policy.Exhausted(6))
	})
}

func TestRetryPolicyThrottleResume(t *testing.T) {
	policy := DefaultRetryPolicy()

	t.Run("minute quota waits briefly", func(t *testing.T) {
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		assert.Equal(t, now.Add(2*time.Minute), policy.ThrottleResumeAt(ThrottleMinuteQuota, now))
	})

	t.Run("daily quota resumes next morning", func(t *testing.T) {
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		resume := policy.ThrottleResumeAt(ThrottleDailyQuota, now)
		assert.Equal(t, time.Date(2025, 6, 2, 6, 0, 0, 0, time.UTC), resume)
	})

	t.Run("daily quota before resume hour still waits for next day", func(t *testing.T) {
		now := time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC)
		resume := policy.ThrottleResumeAt(ThrottleDailyQuota, now)
		assert.Equal(t, time.Date(2025, 6, 2, 6, 0, 0, 0, time.UTC), resume)
	})
}
