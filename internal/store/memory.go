package store

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/api/equality"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/utils/clock"

	"github.com/giantswarm/foo-controller/pkg/logging"
)

const (
	defaultHistoryLimit    = 1024
	defaultWatchQueueDepth = 1000
)

// Validator checks an object before the store accepts it.
type Validator interface {
	Validate(obj *unstructured.Unstructured) error
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithValidator validates every object of kind before it is stored.
func WithValidator(kind Kind, v Validator) MemoryOption {
	return func(m *Memory) {
		m.validators[kind] = v
	}
}

// WithHistoryLimit sets how many events per kind are retained for watches
// that resume from an older resource version.
func WithHistoryLimit(n int) MemoryOption {
	return func(m *Memory) {
		m.historyLimit = n
	}
}

// WithClock sets the clock used for creation timestamps.
func WithClock(c clock.PassiveClock) MemoryOption {
	return func(m *Memory) {
		m.clock = c
	}
}

// historyEntry is a past watch event with the resource version it produced.
type historyEntry struct {
	resourceVersion uint64
	event           watch.Event
}

// kindState holds everything the store knows about one kind.
type kindState struct {
	objects map[string]*unstructured.Unstructured

	// owners maps object key to status field to owning field manager.
	owners map[string]map[string]string

	history []historyEntry

	// compacted is the newest resource version dropped from history.
	compacted uint64

	broadcaster *watch.Broadcaster
}

// Memory is an in-process Store. It assigns monotonically increasing
// resource versions, replays recent history to resuming watchers and tracks
// status field ownership per field manager the way server-side apply does.
type Memory struct {
	mu sync.Mutex

	kinds           map[Kind]*kindState
	validators      map[Kind]Validator
	resourceVersion uint64
	historyLimit    int
	clock           clock.PassiveClock
	closed          bool
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		kinds:        make(map[Kind]*kindState),
		validators:   make(map[Kind]Validator),
		historyLimit: defaultHistoryLimit,
		clock:        clock.RealClock{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// state returns the per-kind state, creating it on first use. Callers hold mu.
func (m *Memory) state(kind Kind) *kindState {
	s, ok := m.kinds[kind]
	if !ok {
		s = &kindState{
			objects:     make(map[string]*unstructured.Unstructured),
			owners:      make(map[string]map[string]string),
			broadcaster: watch.NewBroadcaster(defaultWatchQueueDepth, watch.WaitIfChannelFull),
		}
		m.kinds[kind] = s
	}
	return s
}

// List implements Store.
func (m *Memory) List(ctx context.Context, kind Kind) (*unstructured.UnstructuredList, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Op: "list " + kind.String(), Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.state(kind)
	keys := make([]string, 0, len(s.objects))
	for key := range s.objects {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	list := &unstructured.UnstructuredList{}
	list.SetGroupVersionKind(kind.ListGroupVersionKind())
	list.SetResourceVersion(strconv.FormatUint(m.resourceVersion, 10))
	for _, key := range keys {
		list.Items = append(list.Items, *s.objects[key].DeepCopy())
	}
	return list, nil
}

// Watch implements Store. Events newer than resourceVersion that are still
// in the history are replayed first; a resourceVersion older than the
// retained history fails with an expired error so the caller relists.
func (m *Memory) Watch(ctx context.Context, kind Kind, resourceVersion string) (watch.Interface, error) {
	op := "watch " + kind.String()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("store is closed")}
	}

	s := m.state(kind)

	var prefix []watch.Event
	if resourceVersion != "" && resourceVersion != "0" {
		from, err := strconv.ParseUint(resourceVersion, 10, 64)
		if err != nil {
			return nil, &TransportError{Op: op, Err: apierrors.NewBadRequest(fmt.Sprintf("invalid resourceVersion %q", resourceVersion))}
		}
		if from < s.compacted {
			return nil, &TransportError{Op: op, Err: apierrors.NewResourceExpired(fmt.Sprintf("too old resource version: %d (%d)", from, s.compacted))}
		}
		for _, entry := range s.history {
			if entry.resourceVersion > from {
				prefix = append(prefix, watch.Event{Type: entry.event.Type, Object: entry.event.Object.DeepCopyObject()})
			}
		}
	}

	w, err := s.broadcaster.WatchWithPrefix(prefix)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	go func() {
		<-ctx.Done()
		w.Stop()
	}()

	return w, nil
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, kind Kind, namespace, name string) (*unstructured.Unstructured, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Op: "get " + kind.String(), Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.state(kind).objects[ObjectKey(namespace, name)]
	if !ok {
		return nil, &NotFoundError{Kind: kind.Kind, Namespace: namespace, Name: name}
	}
	return obj.DeepCopy(), nil
}

// Create stores a new object. Its status, if any, is kept as-is and is not
// owned by any field manager.
func (m *Memory) Create(ctx context.Context, kind Kind, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Op: "create " + kind.String(), Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.state(kind)
	key := ObjectKey(obj.GetNamespace(), obj.GetName())
	if _, exists := s.objects[key]; exists {
		return nil, &ConflictError{Kind: kind.Kind, Namespace: obj.GetNamespace(), Name: obj.GetName(), Reason: "already exists"}
	}

	created := obj.DeepCopy()
	created.SetGroupVersionKind(kind.GroupVersionKind)
	created.SetUID(types.UID(uuid.NewString()))
	created.SetGeneration(1)
	created.SetCreationTimestamp(metav1.NewTime(m.clock.Now()))

	if err := m.validate(kind, created); err != nil {
		return nil, err
	}

	m.commit(kind, s, key, watch.Added, created)
	return created.DeepCopy(), nil
}

// Update replaces the metadata labels, annotations and spec of an existing
// object, leaving its status untouched. A non-empty resourceVersion on obj
// must match the stored one.
func (m *Memory) Update(ctx context.Context, kind Kind, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Op: "update " + kind.String(), Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.state(kind)
	key := ObjectKey(obj.GetNamespace(), obj.GetName())
	current, ok := s.objects[key]
	if !ok {
		return nil, &NotFoundError{Kind: kind.Kind, Namespace: obj.GetNamespace(), Name: obj.GetName()}
	}
	if rv := obj.GetResourceVersion(); rv != "" && rv != current.GetResourceVersion() {
		return nil, &ConflictError{Kind: kind.Kind, Namespace: obj.GetNamespace(), Name: obj.GetName(), Reason: "the object has been modified; please apply your changes to the latest version and try again"}
	}

	updated := current.DeepCopy()
	updated.SetLabels(obj.GetLabels())
	updated.SetAnnotations(obj.GetAnnotations())

	spec, hasSpec, _ := unstructured.NestedFieldCopy(obj.Object, "spec")
	oldSpec, _, _ := unstructured.NestedFieldNoCopy(current.Object, "spec")
	if hasSpec {
		updated.Object["spec"] = spec
	} else {
		delete(updated.Object, "spec")
	}
	if !equality.Semantic.DeepEqual(oldSpec, spec) {
		updated.SetGeneration(current.GetGeneration() + 1)
	}

	if equality.Semantic.DeepEqual(current.Object, updated.Object) {
		return current.DeepCopy(), nil
	}

	if err := m.validate(kind, updated); err != nil {
		return nil, err
	}

	m.commit(kind, s, key, watch.Modified, updated)
	return updated.DeepCopy(), nil
}

// Upsert creates obj or updates it when it already exists, ignoring any
// resourceVersion set on obj.
func (m *Memory) Upsert(ctx context.Context, kind Kind, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	_, err := m.Get(ctx, kind, obj.GetNamespace(), obj.GetName())
	switch {
	case IsNotFound(err):
		return m.Create(ctx, kind, obj)
	case err != nil:
		return nil, err
	}

	obj = obj.DeepCopy()
	obj.SetResourceVersion("")
	return m.Update(ctx, kind, obj)
}

// Delete removes an object.
func (m *Memory) Delete(ctx context.Context, kind Kind, namespace, name string) error {
	if err := ctx.Err(); err != nil {
		return &TransportError{Op: "delete " + kind.String(), Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.state(kind)
	key := ObjectKey(namespace, name)
	current, ok := s.objects[key]
	if !ok {
		return &NotFoundError{Kind: kind.Kind, Namespace: namespace, Name: name}
	}

	m.commit(kind, s, key, watch.Deleted, current.DeepCopy())
	return nil
}

// PatchStatus implements Store with server-side apply semantics restricted
// to the top-level fields of .status: fields owned by another manager may
// only be changed with Force, and fields previously applied by this manager
// but missing from the patch are removed.
func (m *Memory) PatchStatus(ctx context.Context, kind Kind, namespace, name string, patch []byte, opts PatchOptions) (*unstructured.Unstructured, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Op: "patch status " + kind.String(), Err: err}
	}

	invalid := func(err error) error {
		return &ValidationError{Kind: kind.Kind, Namespace: namespace, Name: name, Err: err}
	}

	if opts.FieldManager == "" {
		return nil, invalid(fmt.Errorf("field manager is required for apply"))
	}

	applied := &unstructured.Unstructured{}
	if err := applied.UnmarshalJSON(patch); err != nil {
		return nil, invalid(fmt.Errorf("failed to decode apply patch: %w", err))
	}
	if applied.GroupVersionKind() != kind.GroupVersionKind {
		return nil, invalid(fmt.Errorf("apply patch has kind %s, expected %s", applied.GroupVersionKind(), kind.GroupVersionKind))
	}
	if n := applied.GetName(); n != "" && n != name {
		return nil, invalid(fmt.Errorf("apply patch names %q, expected %q", n, name))
	}

	appliedStatus, _, err := unstructured.NestedMap(applied.Object, "status")
	if err != nil {
		return nil, invalid(fmt.Errorf("status must be an object: %w", err))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.state(kind)
	key := ObjectKey(namespace, name)
	current, ok := s.objects[key]
	if !ok {
		return nil, &NotFoundError{Kind: kind.Kind, Namespace: namespace, Name: name}
	}
	if rv := applied.GetResourceVersion(); rv != "" && rv != current.GetResourceVersion() {
		return nil, &ConflictError{Kind: kind.Kind, Namespace: namespace, Name: name, Reason: "the object has been modified; please apply your changes to the latest version and try again"}
	}

	currentStatus, _, _ := unstructured.NestedMap(current.Object, "status")
	if currentStatus == nil {
		currentStatus = map[string]interface{}{}
	}

	owners := s.owners[key]
	var conflicts []string
	for field, value := range appliedStatus {
		owner, owned := owners[field]
		if !owned || owner == opts.FieldManager {
			continue
		}
		if existing, found := currentStatus[field]; !found || !equality.Semantic.DeepEqual(existing, value) {
			conflicts = append(conflicts, fmt.Sprintf(".status.%s (owned by %q)", field, owner))
		}
	}
	if len(conflicts) > 0 && !opts.Force {
		slices.Sort(conflicts)
		return nil, &ConflictError{
			Kind:      kind.Kind,
			Namespace: namespace,
			Name:      name,
			Reason:    fmt.Sprintf("Apply failed with %d conflict(s): %v", len(conflicts), conflicts),
		}
	}

	newStatus := make(map[string]interface{}, len(currentStatus))
	for field, value := range currentStatus {
		if owners[field] == opts.FieldManager {
			if _, kept := appliedStatus[field]; !kept {
				continue
			}
		}
		newStatus[field] = value
	}
	newOwners := make(map[string]string, len(owners)+len(appliedStatus))
	for field, owner := range owners {
		if _, present := newStatus[field]; present {
			newOwners[field] = owner
		}
	}
	for field, value := range appliedStatus {
		newStatus[field] = value
		if owner, owned := newOwners[field]; !owned || owner == opts.FieldManager || opts.Force {
			newOwners[field] = opts.FieldManager
		}
	}
	s.owners[key] = newOwners

	if equality.Semantic.DeepEqual(currentStatus, newStatus) {
		return current.DeepCopy(), nil
	}

	updated := current.DeepCopy()
	if err := unstructured.SetNestedMap(updated.Object, newStatus, "status"); err != nil {
		return nil, invalid(err)
	}
	if err := m.validate(kind, updated); err != nil {
		return nil, err
	}

	m.commit(kind, s, key, watch.Modified, updated)
	logging.Debug("MemoryStore", "Applied status of %s %s as %s (rv %s)", kind.Kind, key, opts.FieldManager, updated.GetResourceVersion())
	return updated.DeepCopy(), nil
}

// Close stops all watchers. Further watches fail.
func (m *Memory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	for _, s := range m.kinds {
		s.broadcaster.Shutdown()
	}
}

// validate runs the kind's validator, if any. Callers hold mu.
func (m *Memory) validate(kind Kind, obj *unstructured.Unstructured) error {
	v, ok := m.validators[kind]
	if !ok {
		return nil
	}
	if err := v.Validate(obj); err != nil {
		return &ValidationError{Kind: kind.Kind, Namespace: obj.GetNamespace(), Name: obj.GetName(), Err: err}
	}
	return nil
}

// commit assigns the next resource version, stores or removes obj, records
// the event in history and broadcasts it. Callers hold mu.
func (m *Memory) commit(kind Kind, s *kindState, key string, eventType watch.EventType, obj *unstructured.Unstructured) {
	m.resourceVersion++
	obj.SetResourceVersion(strconv.FormatUint(m.resourceVersion, 10))

	if eventType == watch.Deleted {
		delete(s.objects, key)
		delete(s.owners, key)
	} else {
		s.objects[key] = obj
	}

	s.history = append(s.history, historyEntry{
		resourceVersion: m.resourceVersion,
		event:           watch.Event{Type: eventType, Object: obj.DeepCopy()},
	})
	if over := len(s.history) - m.historyLimit; over > 0 {
		s.compacted = s.history[over-1].resourceVersion
		s.history = slices.Delete(s.history, 0, over)
	}

	if m.closed {
		return
	}
	if err := s.broadcaster.Action(eventType, obj.DeepCopy()); err != nil {
		logging.Warn("MemoryStore", "Failed to broadcast %s event for %s %s: %v", eventType, kind.Kind, key, err)
	}
}
