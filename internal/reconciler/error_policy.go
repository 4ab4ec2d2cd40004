package reconciler

import (
	"time"

	"k8s.io/client-go/util/workqueue"
)

const (
	// DefaultErrorRequeueInterval is the retry delay of FixedErrorPolicy.
	DefaultErrorRequeueInterval = 360 * time.Second

	defaultExponentialBaseDelay = 5 * time.Second
	defaultExponentialMaxDelay  = 15 * time.Minute
)

// ErrorPolicy decides how long to wait before retrying a failed reconcile.
type ErrorPolicy interface {
	// Backoff records a failure for key and returns the retry delay.
	Backoff(key Key, err error) time.Duration

	// Forget clears any failure history of key after a success.
	Forget(key Key)
}

// FixedErrorPolicy retries every failure after the same interval.
type FixedErrorPolicy struct {
	Interval time.Duration
}

// NewFixedErrorPolicy creates a policy retrying after interval, or after
// DefaultErrorRequeueInterval when interval is zero.
func NewFixedErrorPolicy(interval time.Duration) *FixedErrorPolicy {
	if interval <= 0 {
		interval = DefaultErrorRequeueInterval
	}
	return &FixedErrorPolicy{Interval: interval}
}

// Backoff implements ErrorPolicy.
func (p *FixedErrorPolicy) Backoff(Key, error) time.Duration {
	return p.Interval
}

// Forget implements ErrorPolicy.
func (p *FixedErrorPolicy) Forget(Key) {}

// ExponentialErrorPolicy doubles the retry delay of a key on each
// consecutive failure, from base up to max.
type ExponentialErrorPolicy struct {
	limiter workqueue.TypedRateLimiter[Key]
}

// NewExponentialErrorPolicy creates a per-key exponential policy.
func NewExponentialErrorPolicy(base, max time.Duration) *ExponentialErrorPolicy {
	if base <= 0 {
		base = defaultExponentialBaseDelay
	}
	if max <= 0 {
		max = defaultExponentialMaxDelay
	}
	return &ExponentialErrorPolicy{
		limiter: workqueue.NewTypedItemExponentialFailureRateLimiter[Key](base, max),
	}
}

// Backoff implements ErrorPolicy.
func (p *ExponentialErrorPolicy) Backoff(key Key, _ error) time.Duration {
	return p.limiter.When(key)
}

// Forget implements ErrorPolicy.
func (p *ExponentialErrorPolicy) Forget(key Key) {
	p.limiter.Forget(key)
}
