package cache

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Humphrey-He/hquery/pkg/errors"
)

func TestRetryPolicyNext(t *testing.T) {
	p := DefaultRetryPolicy()
	tests := []struct {
		name      string
		err       error
		retries   int
		wantDelay time.Duration
		wantOK    bool
	}{
		{"server first", errors.FromStatus("GET", 500, ""), 0, time.Second, true},
		{"server exhausted", errors.FromStatus("GET", 502, ""), 2, time.Second, false},
		{"network", errors.Network("GET", context.DeadlineExceeded), 1, time.Second, true},
		{"timeout status", errors.FromStatus("GET", 408, ""), 0, time.Second, true},
		{"rate limited", errors.FromStatus("GET", 429, ""), 0, 5 * time.Second, true},
		{"rate limited with hint", &errors.APIError{Class: errors.ClassRateLimited, StatusCode: 429, RetryAfter: 30 * time.Second}, 0, 30 * time.Second, true},
		{"rate limited short hint", &errors.APIError{Class: errors.ClassRateLimited, StatusCode: 429, RetryAfter: time.Second}, 0, 5 * time.Second, true},
		{"auth once", errors.FromStatus("GET", 401, ""), 0, 0, true},
		{"auth twice", errors.FromStatus("GET", 403, ""), 1, 0, false},
		{"not found", errors.FromStatus("GET", 404, ""), 0, 0, false},
		{"validation", errors.FromStatus("POST", 422, ""), 0, 0, false},
		{"unknown once", stderrors.New("boom"), 0, time.Second, true},
		{"unknown twice", stderrors.New("boom"), 1, time.Second, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delay, ok := p.Next(tt.err, tt.retries)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantDelay, delay)
			}
		})
	}
}

func TestNoRetry(t *testing.T) {
	p := NoRetry()
	for _, err := range []error{
		errors.FromStatus("GET", 500, ""),
		errors.FromStatus("GET", 401, ""),
		errors.FromStatus("GET", 429, ""),
		stderrors.New("x"),
	} {
		_, ok := p.Next(err, 0)
		assert.False(t, ok, "%v", err)
	}
}

func TestRetryPolicyValidate(t *testing.T) {
	require.NoError(t, DefaultRetryPolicy().Validate())
	require.NoError(t, NoRetry().Validate())
	assert.Error(t, RetryPolicy{MaxRetries: -1}.Validate())
	assert.Error(t, RetryPolicy{Delay: -time.Second}.Validate())
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleep(context.Background(), time.Millisecond))
}
