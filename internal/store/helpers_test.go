package store

import (
	"testing"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/watch"

	foov1 "github.com/giantswarm/foo-controller/pkg/apis/foo/v1"
)

var fooKind = Kind{
	GroupVersionKind: foov1.FooGroupVersionKind(),
	Resource:         foov1.FooResource,
	Namespaced:       true,
}

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

func statusPatch(t *testing.T, namespace, name string, status map[string]interface{}) []byte {
	t.Helper()
	patch, err := MarshalStatusPatch(fooKind, namespace, name, status)
	if err != nil {
		t.Fatalf("failed to build patch: %v", err)
	}
	return patch
}

// nextEvent reads one event or fails after a second.
func nextEvent(t *testing.T, w watch.Interface) watch.Event {
	t.Helper()
	select {
	case ev, ok := <-w.ResultChan():
		if !ok {
			t.Fatal("watch closed unexpectedly")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for watch event")
	}
	return watch.Event{}
}

func unstructuredString(obj map[string]interface{}, fields ...string) (string, bool, error) {
	return unstructured.NestedString(obj, fields...)
}
