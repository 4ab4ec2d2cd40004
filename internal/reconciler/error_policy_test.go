package reconciler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedErrorPolicy(t *testing.T) {
	p := NewFixedErrorPolicy(0)
	key := testKey("foo1")
	err := errors.New("boom")

	for i := 0; i < 3; i++ {
		assert.Equal(t, DefaultErrorRequeueInterval, p.Backoff(key, err))
	}
	p.Forget(key)
	assert.Equal(t, 360*time.Second, p.Backoff(key, err))

	assert.Equal(t, time.Minute, NewFixedErrorPolicy(time.Minute).Backoff(key, err))
}

func TestExponentialErrorPolicy(t *testing.T) {
	p := NewExponentialErrorPolicy(time.Second, 5*time.Second)
	key := testKey("foo1")
	other := testKey("foo2")
	err := errors.New("boom")

	assert.Equal(t, time.Second, p.Backoff(key, err))
	assert.Equal(t, 2*time.Second, p.Backoff(key, err))
	assert.Equal(t, 4*time.Second, p.Backoff(key, err))
	assert.Equal(t, 5*time.Second, p.Backoff(key, err))
	assert.Equal(t, 4, p.limiter.NumRequeues(key))

	// Keys are independent.
	assert.Equal(t, time.Second, p.Backoff(other, err))

	p.Forget(key)
	assert.Equal(t, 0, p.limiter.NumRequeues(key))
	assert.Equal(t, time.Second, p.Backoff(key, err))
}
