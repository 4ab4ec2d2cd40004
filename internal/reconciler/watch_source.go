package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/utils/clock"

	"github.com/giantswarm/foo-controller/internal/store"
	"github.com/giantswarm/foo-controller/pkg/logging"
)

const (
	// DefaultResyncPeriod is how often every watched kind is re-listed.
	DefaultResyncPeriod = 5 * time.Minute

	// DefaultWatchMaxBackoff caps the delay between reconnect attempts.
	DefaultWatchMaxBackoff = 30 * time.Second

	defaultWatchInitialBackoff = 500 * time.Millisecond
)

var errWatchClosed = errors.New("watch channel closed")

// WatchSourceOption configures a WatchSource.
type WatchSourceOption func(*WatchSource)

// WithResyncPeriod sets the interval of full re-lists. Zero disables resync.
func WithResyncPeriod(d time.Duration) WatchSourceOption {
	return func(s *WatchSource) { s.resyncPeriod = d }
}

// WithWatchBackoff sets the initial and maximum reconnect delay.
func WithWatchBackoff(initial, max time.Duration) WatchSourceOption {
	return func(s *WatchSource) {
		if initial > 0 {
			s.initialBackoff = initial
		}
		if max > 0 {
			s.maxBackoff = max
		}
	}
}

// WithWatchClock sets the clock driving periodic resyncs.
func WithWatchClock(clk clock.WithTicker) WatchSourceOption {
	return func(s *WatchSource) { s.clock = clk }
}

// WatchSource implements ChangeDetector on top of a store.Store.
//
// For every kind it lists once, then follows a watch from the listed
// resource version. A failed or closed watch is replaced by a re-list and a
// new watch, retried with exponential backoff until it succeeds. The re-list
// reports every object as Resynced and every object that vanished meanwhile
// as Deleted, so no change is lost across a disconnect.
type WatchSource struct {
	mu sync.Mutex

	store store.Store
	clock clock.WithTicker

	resyncPeriod   time.Duration
	initialBackoff time.Duration
	maxBackoff     time.Duration

	// kinds maps Kind.String() to its watch state
	kinds map[string]*kindWatch

	changeChan chan<- ChangeEvent
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	running    bool
}

// kindWatch is the state of one watched kind. Apart from cancel it is only
// touched by the goroutine following the kind.
type kindWatch struct {
	kind            store.Kind
	resourceVersion string
	known           map[Key]struct{}
	cancel          context.CancelFunc
}

var _ ChangeDetector = (*WatchSource)(nil)

// NewWatchSource creates a watch source reading from s.
func NewWatchSource(s store.Store, opts ...WatchSourceOption) *WatchSource {
	w := &WatchSource{
		store:          s,
		clock:          clock.RealClock{},
		resyncPeriod:   DefaultResyncPeriod,
		initialBackoff: defaultWatchInitialBackoff,
		maxBackoff:     DefaultWatchMaxBackoff,
		kinds:          make(map[string]*kindWatch),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// AddResourceType starts following kind. If the source is already running
// the initial list happens in the background.
func (s *WatchSource) AddResourceType(kind store.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.kinds[kind.String()]; exists {
		return nil
	}
	kw := &kindWatch{kind: kind, known: make(map[Key]struct{})}
	s.kinds[kind.String()] = kw

	if s.running {
		s.startKind(kw, false)
	}
	return nil
}

// RemoveResourceType stops following kind.
func (s *WatchSource) RemoveResourceType(kind store.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kw, exists := s.kinds[kind.String()]
	if !exists {
		return nil
	}
	if kw.cancel != nil {
		kw.cancel()
	}
	delete(s.kinds, kind.String())
	return nil
}

// Start lists every registered kind, sending one Added event per object,
// and then follows each kind in its own goroutine. A failed initial list is
// returned as an error and nothing keeps running.
func (s *WatchSource) Start(ctx context.Context, changes chan<- ChangeEvent) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.ctx, s.cancelFunc = context.WithCancel(ctx)
	s.changeChan = changes
	kinds := make([]*kindWatch, 0, len(s.kinds))
	for _, kw := range s.kinds {
		kinds = append(kinds, kw)
	}
	s.mu.Unlock()

	for _, kw := range kinds {
		if err := s.relist(s.ctx, kw, OperationAdded); err != nil {
			s.cancelFunc()
			return fmt.Errorf("initial list of %s: %w", kw.kind, err)
		}
		logging.Info("WatchSource", "Initial list of %s returned %d objects", kw.kind, len(kw.known))
	}

	listed := make(map[*kindWatch]bool, len(kinds))
	for _, kw := range kinds {
		listed[kw] = true
	}

	s.mu.Lock()
	s.running = true
	for _, kw := range s.kinds {
		s.startKind(kw, listed[kw])
	}
	s.mu.Unlock()
	return nil
}

// startKind launches the goroutine following kw. Callers hold mu.
func (s *WatchSource) startKind(kw *kindWatch, listed bool) {
	ctx, cancel := context.WithCancel(s.ctx)
	kw.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.follow(ctx, kw, listed)
	}()
}

// Stop cancels every watch and waits for the goroutines to exit.
func (s *WatchSource) Stop() error {
	s.mu.Lock()
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// follow keeps a watch open on kw until ctx is done.
func (s *WatchSource) follow(ctx context.Context, kw *kindWatch, listed bool) {
	var (
		w   watch.Interface
		err error
	)
	if listed {
		w, err = s.store.Watch(ctx, kw.kind, kw.resourceVersion)
	} else if w, err = s.reconnect(ctx, kw); err != nil {
		return
	}

	for {
		if err == nil {
			err = s.consume(ctx, kw, w)
		}
		if ctx.Err() != nil {
			return
		}
		logging.Warn("WatchSource", "Watch of %s interrupted, re-listing: %v", kw.kind, err)

		w, err = s.reconnect(ctx, kw)
		if err != nil {
			// Only returned once ctx is done.
			return
		}
	}
}

// reconnect re-lists kw and opens a new watch, retrying with exponential
// backoff until both succeed or ctx is done.
func (s *WatchSource) reconnect(ctx context.Context, kw *kindWatch) (watch.Interface, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initialBackoff
	b.MaxInterval = s.maxBackoff

	return backoff.Retry(ctx, func() (watch.Interface, error) {
		if err := s.relist(ctx, kw, OperationResynced); err != nil {
			return nil, err
		}
		return s.store.Watch(ctx, kw.kind, kw.resourceVersion)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			logging.Warn("WatchSource", "Reconnecting to %s failed, retrying in %s: %v", kw.kind, next, err)
		}),
	)
}

// consume forwards events of w until it fails, closes or ctx is done.
// Periodic resyncs happen here so they never race with watch events.
func (s *WatchSource) consume(ctx context.Context, kw *kindWatch, w watch.Interface) error {
	defer w.Stop()

	var tick <-chan time.Time
	if s.resyncPeriod > 0 {
		ticker := s.clock.NewTicker(s.resyncPeriod)
		defer ticker.Stop()
		tick = ticker.C()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-tick:
			logging.Debug("WatchSource", "Periodic resync of %s", kw.kind)
			if err := s.relist(ctx, kw, OperationResynced); err != nil {
				logging.Warn("WatchSource", "Periodic resync of %s failed: %v", kw.kind, err)
			}

		case event, ok := <-w.ResultChan():
			if !ok {
				return errWatchClosed
			}
			if err := s.handleEvent(ctx, kw, event); err != nil {
				return err
			}
		}
	}
}

func (s *WatchSource) handleEvent(ctx context.Context, kw *kindWatch, event watch.Event) error {
	if event.Type == watch.Error {
		return apierrors.FromObject(event.Object)
	}

	obj, ok := event.Object.(*unstructured.Unstructured)
	if !ok {
		logging.Debug("WatchSource", "Ignoring %s event with object %T", event.Type, event.Object)
		return nil
	}
	if rv := obj.GetResourceVersion(); rv != "" {
		kw.resourceVersion = rv
	}

	key := KeyForObject(kw.kind, obj)
	var op ChangeOperation
	switch event.Type {
	case watch.Added:
		op = OperationAdded
		kw.known[key] = struct{}{}
	case watch.Modified:
		op = OperationModified
		kw.known[key] = struct{}{}
	case watch.Deleted:
		op = OperationDeleted
		delete(kw.known, key)
	default:
		return nil
	}
	s.send(ctx, ChangeEvent{Key: key, Operation: op, Timestamp: s.clock.Now(), Source: SourceWatch})
	return nil
}

// relist lists kw, sends op for every object and Deleted for every known
// key that is gone, and records the list resource version.
func (s *WatchSource) relist(ctx context.Context, kw *kindWatch, op ChangeOperation) error {
	list, err := s.store.List(ctx, kw.kind)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	seen := make(map[Key]struct{}, len(list.Items))
	for i := range list.Items {
		key := KeyForObject(kw.kind, &list.Items[i])
		seen[key] = struct{}{}
		if !s.send(ctx, ChangeEvent{Key: key, Operation: op, Timestamp: now, Source: SourceList}) {
			return ctx.Err()
		}
	}
	for key := range kw.known {
		if _, ok := seen[key]; ok {
			continue
		}
		if !s.send(ctx, ChangeEvent{Key: key, Operation: OperationDeleted, Timestamp: now, Source: SourceList}) {
			return ctx.Err()
		}
	}

	kw.known = seen
	kw.resourceVersion = list.GetResourceVersion()
	return nil
}

// send blocks until the event is accepted or ctx is done.
func (s *WatchSource) send(ctx context.Context, event ChangeEvent) bool {
	select {
	case s.changeChan <- event:
		return true
	case <-ctx.Done():
		return false
	}
}
