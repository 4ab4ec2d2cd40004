package reconciler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

func testKey(name string) Key {
	return Key{Kind: FooKind, Namespace: "ns", Name: name}
}

func newFakeClock() *testingclock.FakeClock {
	return testingclock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestWorkQueue_AddAndGet(t *testing.T) {
	q := NewWorkQueue(nil)
	key := testKey("foo1")

	q.Add(key, 0)
	assert.Equal(t, 1, q.Len())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, ok := q.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, key, got)
	assert.True(t, q.InFlight(key))
	assert.Equal(t, 0, q.Len())

	q.Done(got)
	assert.False(t, q.InFlight(key))
}

func TestWorkQueue_MinCoalescing(t *testing.T) {
	clk := newFakeClock()
	q := NewWorkQueue(clk)
	key := testKey("foo1")
	now := clk.Now()

	q.Add(key, 10*time.Minute)
	q.Add(key, 5*time.Minute)
	q.Add(key, 20*time.Minute)

	assert.Equal(t, 1, q.Len())
	notBefore, ok := q.NotBefore(key)
	require.True(t, ok)
	assert.Equal(t, now.Add(5*time.Minute), notBefore)
}

func TestWorkQueue_GetWaitsForNotBefore(t *testing.T) {
	clk := newFakeClock()
	q := NewWorkQueue(clk)
	key := testKey("foo1")
	q.Add(key, time.Minute)

	got := make(chan Key, 1)
	go func() {
		k, ok := q.Get(context.Background())
		if ok {
			got <- k
		}
	}()

	require.Eventually(t, clk.HasWaiters, time.Second, time.Millisecond)
	select {
	case <-got:
		t.Fatal("key handed out before it was due")
	case <-time.After(20 * time.Millisecond):
	}

	clk.Step(time.Minute)
	select {
	case k := <-got:
		assert.Equal(t, key, k)
	case <-time.After(time.Second):
		t.Fatal("key not handed out once due")
	}
}

func TestWorkQueue_EarlierAddWakesWaiter(t *testing.T) {
	clk := newFakeClock()
	q := NewWorkQueue(clk)
	key := testKey("foo1")
	q.Add(key, time.Hour)

	got := make(chan Key, 1)
	go func() {
		k, ok := q.Get(context.Background())
		if ok {
			got <- k
		}
	}()
	require.Eventually(t, clk.HasWaiters, time.Second, time.Millisecond)

	q.Add(key, 0)
	select {
	case k := <-got:
		assert.Equal(t, key, k)
	case <-time.After(time.Second):
		t.Fatal("earlier add did not wake the waiter")
	}
}

func TestWorkQueue_ParksRequestsWhileInFlight(t *testing.T) {
	clk := newFakeClock()
	q := NewWorkQueue(clk)
	key := testKey("foo1")
	now := clk.Now()

	q.Add(key, 0)
	got, ok := q.Get(context.Background())
	require.True(t, ok)

	q.Add(key, 30*time.Minute)
	q.Add(key, 2*time.Minute)

	notBefore, ok := q.NotBefore(key)
	require.True(t, ok)
	assert.Equal(t, now.Add(2*time.Minute), notBefore)
	assert.True(t, q.InFlight(key))

	// Parked work must not be handed out while in flight.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	clk.Step(time.Hour)
	_, ok = q.Get(ctx)
	assert.False(t, ok)

	q.Done(got)
	assert.False(t, q.InFlight(key))

	again, ok := q.Get(context.Background())
	require.True(t, ok)
	assert.Equal(t, key, again)
	q.Done(again)

	_, ok = q.NotBefore(key)
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestWorkQueue_OrdersByNotBefore(t *testing.T) {
	clk := newFakeClock()
	q := NewWorkQueue(clk)

	q.Add(testKey("late"), 3*time.Second)
	q.Add(testKey("early"), time.Second)
	q.Add(testKey("middle"), 2*time.Second)
	clk.Step(time.Minute)

	ctx := context.Background()
	for _, name := range []string{"early", "middle", "late"} {
		got, ok := q.Get(ctx)
		require.True(t, ok)
		assert.Equal(t, name, got.Name)
	}
}

func TestWorkQueue_NoConcurrentDuplicateDequeue(t *testing.T) {
	q := NewWorkQueue(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	keys := []Key{testKey("a"), testKey("b"), testKey("c")}
	var (
		mu       sync.Mutex
		inFlight = make(map[Key]bool)
		overlap  atomic.Bool
		handled  atomic.Int64
		wg       sync.WaitGroup
	)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				key, ok := q.Get(ctx)
				if !ok {
					return
				}
				mu.Lock()
				if inFlight[key] {
					overlap.Store(true)
				}
				inFlight[key] = true
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inFlight[key] = false
				mu.Unlock()
				handled.Add(1)
				q.Done(key)
			}
		}()
	}

	for i := 0; i < 200; i++ {
		q.Add(keys[i%len(keys)], 0)
	}

	require.Eventually(t, func() bool { return q.Len() == 0 }, 5*time.Second, time.Millisecond)
	q.ShutDown()
	wg.Wait()

	assert.False(t, overlap.Load(), "a key was handed to two workers at once")
	assert.Positive(t, handled.Load())
}

func TestWorkQueue_ShutDown(t *testing.T) {
	q := NewWorkQueue(nil)

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Get(context.Background())
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.ShutDown()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Get did not return after ShutDown")
	}

	assert.True(t, q.ShuttingDown())
	q.Add(testKey("foo1"), 0)
	assert.Equal(t, 0, q.Len())
}

func TestWorkQueue_ContextCancellation(t *testing.T) {
	q := NewWorkQueue(nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Get(ctx)
		done <- ok
	}()

	cancel()
	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Get did not return after cancellation")
	}
}

func TestWorkQueue_InFlightKeyDoesNotBlockOthers(t *testing.T) {
	q := NewWorkQueue(newFakeClock())
	first := testKey("foo1")
	second := testKey("foo2")

	q.Add(first, 0)
	got, ok := q.Get(context.Background())
	require.True(t, ok)
	require.Equal(t, first, got)

	q.Add(first, 0)
	q.Add(second, 0)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	next, ok := q.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, second, next)
	assert.True(t, q.InFlight(first))
	assert.True(t, q.InFlight(second))
}
