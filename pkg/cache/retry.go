package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/Humphrey-He/hquery/pkg/errors"
)

// RetryPolicy decides whether a failed fetch is retried.
// Failures are classified by pkg/errors; validation and not-found
// failures are terminal, auth failures are retried only after a
// credential refresh.
//
// RetryPolicy 决定失败的请求是否重试。
type RetryPolicy struct {
	// MaxRetries bounds retries of server, network and rate-limited failures.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
	// Delay is the fixed wait before a server or network retry.
	Delay time.Duration `json:"delay" yaml:"delay"`
	// RateLimitDelay is the minimum wait before a rate-limited retry.
	RateLimitDelay time.Duration `json:"rate_limit_delay" yaml:"rate_limit_delay"`
	// AuthRetries bounds retries after a credential refresh.
	AuthRetries int `json:"auth_retries" yaml:"auth_retries"`
	// UnknownRetries bounds retries of unclassified failures.
	UnknownRetries int `json:"unknown_retries" yaml:"unknown_retries"`
}

// DefaultRetryPolicy returns two retries after one second, five seconds
// for rate limits, and one retry for auth and unknown failures.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     2,
		Delay:          time.Second,
		RateLimitDelay: 5 * time.Second,
		AuthRetries:    1,
		UnknownRetries: 1,
	}
}

// NoRetry returns a policy that never retries.
func NoRetry() RetryPolicy {
	return RetryPolicy{}
}

// Validate checks the policy for negative values.
func (p RetryPolicy) Validate() error {
	if p.MaxRetries < 0 || p.AuthRetries < 0 || p.UnknownRetries < 0 {
		return fmt.Errorf("retry counts must not be negative")
	}
	if p.Delay < 0 || p.RateLimitDelay < 0 {
		return fmt.Errorf("retry delays must not be negative")
	}
	return nil
}

// Next reports whether err may be retried after retries earlier retries
// of the same fetch, and how long to wait first.
//
// Next 判断在已重试retries次之后err是否可以重试，以及需要等待的时长。
//
// Parameters:
//   - err: The failure of the last attempt
//   - retries: Retries already made in this fetch
//
// Returns:
//   - time.Duration: Wait before the next attempt
//   - bool: True if another attempt is allowed
func (p RetryPolicy) Next(err error, retries int) (time.Duration, bool) {
	switch errors.ClassOf(err) {
	case errors.ClassAuth:
		return 0, retries < p.AuthRetries
	case errors.ClassNotFound, errors.ClassValidation:
		return 0, false
	case errors.ClassRateLimited:
		delay := p.RateLimitDelay
		if hint := errors.RetryAfterOf(err); hint > delay {
			delay = hint
		}
		return delay, retries < p.MaxRetries
	case errors.ClassServer, errors.ClassNetwork:
		return p.Delay, retries < p.MaxRetries
	}
	return p.Delay, retries < p.UnknownRetries
}

// CredentialRefresher renews the bearer credential after an auth failure.
//
// CredentialRefresher 在认证失败后刷新凭证。
type CredentialRefresher interface {
	Refresh(ctx context.Context) error
}

// RefresherFunc adapts a function into a CredentialRefresher.
type RefresherFunc func(ctx context.Context) error

// Refresh calls the function itself.
func (f RefresherFunc) Refresh(ctx context.Context) error {
	return f(ctx)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
