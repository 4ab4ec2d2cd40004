package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/watch"

	"github.com/giantswarm/foo-controller/internal/store"
)

func newFoo(namespace, name, info string) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "clux.dev/v1",
		"kind":       "Foo",
		"metadata": map[string]interface{}{
			"namespace": namespace,
			"name":      name,
		},
		"spec": map[string]interface{}{
			"name": name,
			"info": info,
		},
	}}
}

func createFoo(t *testing.T, s *store.Memory, namespace, name, info string) *unstructured.Unstructured {
	t.Helper()
	obj, err := s.Create(context.Background(), FooKind, newFoo(namespace, name, info))
	require.NoError(t, err)
	return obj
}

// receiveEvent reads one change event or fails after a second.
func receiveEvent(t *testing.T, changes <-chan ChangeEvent) ChangeEvent {
	t.Helper()
	select {
	case ev := <-changes:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change event")
	}
	return ChangeEvent{}
}

// expectNoEvent fails if an event arrives within a short window.
func expectNoEvent(t *testing.T, changes <-chan ChangeEvent) {
	t.Helper()
	select {
	case ev := <-changes:
		t.Fatalf("unexpected change event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

// conflictingStore rejects every status patch with a conflict.
type conflictingStore struct {
	*store.Memory
}

func (s *conflictingStore) PatchStatus(_ context.Context, kind store.Kind, namespace, name string, _ []byte, _ store.PatchOptions) (*unstructured.Unstructured, error) {
	return nil, &store.ConflictError{Kind: kind.Kind, Namespace: namespace, Name: name, Reason: "status.is_bad is owned by another manager"}
}

// scriptedWatchStore hands out fake watchers so tests can break them.
type scriptedWatchStore struct {
	*store.Memory
	watchers chan *watch.FakeWatcher
}

func newScriptedWatchStore(m *store.Memory) *scriptedWatchStore {
	return &scriptedWatchStore{Memory: m, watchers: make(chan *watch.FakeWatcher, 10)}
}

func (s *scriptedWatchStore) Watch(context.Context, store.Kind, string) (watch.Interface, error) {
	w := watch.NewFake()
	s.watchers <- w
	return w, nil
}

func (s *scriptedWatchStore) nextWatcher(t *testing.T) *watch.FakeWatcher {
	t.Helper()
	select {
	case w := <-s.watchers:
		return w
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a watch to be opened")
	}
	return nil
}
