package store

import (
	"context"
	"encoding/json"
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/watch"
)

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_store.go -package=mocks github.com/giantswarm/foo-controller/internal/store Store

// Kind identifies a watched resource type.
type Kind struct {
	schema.GroupVersionKind

	// Resource is the plural, lower-case resource name ("foos").
	Resource string

	// Namespaced reports whether objects of this kind live in a namespace.
	Namespaced bool
}

// String returns the resource in "foos.clux.dev/v1" form.
func (k Kind) String() string {
	if k.Group == "" {
		return fmt.Sprintf("%s/%s", k.Resource, k.Version)
	}
	return fmt.Sprintf("%s.%s/%s", k.Resource, k.Group, k.Version)
}

// ListGroupVersionKind returns the GVK of a list of this kind.
func (k Kind) ListGroupVersionKind() schema.GroupVersionKind {
	return k.GroupVersion().WithKind(k.Kind + "List")
}

// PatchOptions controls a status apply patch.
type PatchOptions struct {
	// FieldManager names the actor owning the applied fields. Required.
	FieldManager string

	// Force takes ownership of fields currently owned by other managers
	// instead of failing with a ConflictError.
	Force bool
}

// Store is the cluster-state collaborator used by the watch source and the
// reconcilers.
type Store interface {
	// List returns every object of the given kind together with the list's
	// resource version, which can be passed to Watch.
	List(ctx context.Context, kind Kind) (*unstructured.UnstructuredList, error)

	// Watch streams changes to objects of the given kind that happened after
	// resourceVersion. An empty resourceVersion starts at the current state.
	// The watch ends when ctx is cancelled or the returned watcher is stopped.
	Watch(ctx context.Context, kind Kind, resourceVersion string) (watch.Interface, error)

	// Get reads a single object. A missing object yields a NotFoundError.
	Get(ctx context.Context, kind Kind, namespace, name string) (*unstructured.Unstructured, error)

	// PatchStatus server-side applies patch (a JSON document with apiVersion,
	// kind, metadata and status) to the status subresource.
	PatchStatus(ctx context.Context, kind Kind, namespace, name string, patch []byte, opts PatchOptions) (*unstructured.Unstructured, error)
}

// ObjectKey returns the "namespace/name" key of an object, or "name" for
// cluster-scoped objects.
func ObjectKey(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "/" + name
}

// MarshalStatusPatch builds an apply patch document for the status of the
// given object.
func MarshalStatusPatch(kind Kind, namespace, name string, status interface{}) ([]byte, error) {
	metadata := map[string]interface{}{"name": name}
	if namespace != "" {
		metadata["namespace"] = namespace
	}
	return json.Marshal(map[string]interface{}{
		"apiVersion": kind.GroupVersion().String(),
		"kind":       kind.Kind,
		"metadata":   metadata,
		"status":     status,
	})
}
