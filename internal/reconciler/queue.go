package reconciler

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// queueEntry is the single representation of a key inside the queue.
//
// A key is in exactly one of three states: queued (pending, in the heap),
// in flight (handed to a worker, not in the heap) or in flight with a
// follow-up request parked (pending and in flight, not in the heap).
type queueEntry struct {
	key       Key
	notBefore time.Time
	pending   bool
	inFlight  bool

	// seq orders entries with the same notBefore by insertion.
	seq uint64

	// index is the position in the heap, or -1.
	index int
}

// entryHeap is a min-heap of queued entries ordered by notBefore.
type entryHeap []*queueEntry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].notBefore.Equal(h[j].notBefore) {
		return h[i].seq < h[j].seq
	}
	return h[i].notBefore.Before(h[j].notBefore)
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*queueEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// WorkQueue is a deduplicating delay queue of object keys.
//
// Each key has at most one entry. Adding a key that is already scheduled
// keeps the earlier of the two due times, so bursts of events collapse into
// one reconcile. A key handed out by Get is in flight until Done; it is never
// handed out again meanwhile, and requests arriving during that time are
// parked on the entry and become eligible once Done is called.
//
// A single mutex guards the entry map and the heap, so a key's state and
// its heap position always change together. It is held only for map and
// heap updates, never while a reconcile runs, and keys of different objects
// proceed independently once handed out.
type WorkQueue struct {
	mu sync.Mutex

	clock   clock.Clock
	entries map[Key]*queueEntry
	ready   entryHeap
	seq     uint64

	// changed is closed and replaced whenever a waiter may have become
	// eligible to proceed.
	changed chan struct{}

	shuttingDown bool
}

// NewWorkQueue creates an empty queue reading time from clk.
func NewWorkQueue(clk clock.Clock) *WorkQueue {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &WorkQueue{
		clock:   clk,
		entries: make(map[Key]*queueEntry),
		changed: make(chan struct{}),
	}
}

// notify wakes every blocked Get. Callers hold mu.
func (q *WorkQueue) notify() {
	close(q.changed)
	q.changed = make(chan struct{})
}

// Add schedules key to be handed out no earlier than now+delay. If the key
// is already scheduled its due time becomes the earlier of the two.
func (q *WorkQueue) Add(key Key, delay time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.shuttingDown {
		return
	}
	if delay < 0 {
		delay = 0
	}
	notBefore := q.clock.Now().Add(delay)

	e, ok := q.entries[key]
	if !ok {
		q.seq++
		e = &queueEntry{key: key, notBefore: notBefore, pending: true, seq: q.seq, index: -1}
		q.entries[key] = e
		heap.Push(&q.ready, e)
		q.notify()
		return
	}

	if !e.pending {
		// In flight with nothing parked yet.
		e.pending = true
		e.notBefore = notBefore
		return
	}

	if !notBefore.Before(e.notBefore) {
		return
	}
	e.notBefore = notBefore
	if e.index >= 0 {
		heap.Fix(&q.ready, e.index)
		q.notify()
	}
}

// Get blocks until a key is due and not in flight, marks it in flight and
// returns it. It returns false when the queue is shut down or ctx is done.
func (q *WorkQueue) Get(ctx context.Context) (Key, bool) {
	for {
		q.mu.Lock()
		if q.shuttingDown {
			q.mu.Unlock()
			return Key{}, false
		}

		wait := time.Duration(-1)
		if len(q.ready) > 0 {
			top := q.ready[0]
			now := q.clock.Now()
			if !top.notBefore.After(now) {
				heap.Pop(&q.ready)
				top.pending = false
				top.inFlight = true
				q.mu.Unlock()
				return top.key, true
			}
			wait = top.notBefore.Sub(now)
		}
		changed := q.changed
		q.mu.Unlock()

		var (
			timer  clock.Timer
			timerC <-chan time.Time
		)
		if wait >= 0 {
			timer = q.clock.NewTimer(wait)
			timerC = timer.C()
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return Key{}, false
		case <-changed:
		case <-timerC:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// Done marks key as no longer in flight. A request parked while it was in
// flight becomes eligible at its own due time; otherwise the key leaves the
// queue.
func (q *WorkQueue) Done(key Key) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[key]
	if !ok || !e.inFlight {
		return
	}
	e.inFlight = false

	if !e.pending {
		delete(q.entries, key)
		return
	}
	heap.Push(&q.ready, e)
	q.notify()
}

// Len returns the number of keys waiting to be handed out, including
// requests parked on in-flight keys.
func (q *WorkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, e := range q.entries {
		if e.pending {
			n++
		}
	}
	return n
}

// NotBefore returns the due time of a pending request for key.
func (q *WorkQueue) NotBefore(key Key) (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[key]
	if !ok || !e.pending {
		return time.Time{}, false
	}
	return e.notBefore, true
}

// InFlight reports whether key is currently handed out to a worker.
func (q *WorkQueue) InFlight(key Key) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[key]
	return ok && e.inFlight
}

// ShutDown makes every blocked and future Get return false. Keys in flight
// may still be marked Done.
func (q *WorkQueue) ShutDown() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.shuttingDown {
		return
	}
	q.shuttingDown = true
	q.notify()
}

// ShuttingDown reports whether ShutDown was called.
func (q *WorkQueue) ShuttingDown() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.shuttingDown
}
