package store

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/rest"
	"k8s.io/utils/ptr"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/giantswarm/foo-controller/pkg/logging"
)

// Kubernetes implements Store against a Kubernetes API server.
type Kubernetes struct {
	client client.WithWatch

	// namespace restricts list and watch; empty means all namespaces.
	namespace string
}

// NewKubernetes creates a Kubernetes store from a REST config.
func NewKubernetes(restConfig *rest.Config, namespace string) (*Kubernetes, error) {
	c, err := client.NewWithWatch(restConfig, client.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}
	return NewKubernetesWithClient(c, namespace), nil
}

// NewKubernetesWithClient wraps an existing controller-runtime client.
func NewKubernetesWithClient(c client.WithWatch, namespace string) *Kubernetes {
	return &Kubernetes{client: c, namespace: namespace}
}

// Client returns the underlying controller-runtime client.
func (k *Kubernetes) Client() client.WithWatch {
	return k.client
}

// GetRestConfig returns the REST config from kubeconfig or the in-cluster
// service account, following controller-runtime's lookup rules.
func GetRestConfig() (*rest.Config, error) {
	return ctrl.GetConfig()
}

// List implements Store.
func (k *Kubernetes) List(ctx context.Context, kind Kind) (*unstructured.UnstructuredList, error) {
	list := &unstructured.UnstructuredList{}
	list.SetGroupVersionKind(kind.ListGroupVersionKind())

	if err := k.client.List(ctx, list, k.listOptions(kind, "")); err != nil {
		return nil, fromAPIError("list "+kind.String(), kind, k.namespace, "", err)
	}
	return list, nil
}

// Watch implements Store.
func (k *Kubernetes) Watch(ctx context.Context, kind Kind, resourceVersion string) (watch.Interface, error) {
	list := &unstructured.UnstructuredList{}
	list.SetGroupVersionKind(kind.ListGroupVersionKind())

	w, err := k.client.Watch(ctx, list, k.listOptions(kind, resourceVersion))
	if err != nil {
		return nil, fromAPIError("watch "+kind.String(), kind, k.namespace, "", err)
	}

	logging.Debug("KubernetesStore", "Watching %s from resourceVersion %q", kind, resourceVersion)
	return w, nil
}

// Get implements Store.
func (k *Kubernetes) Get(ctx context.Context, kind Kind, namespace, name string) (*unstructured.Unstructured, error) {
	obj := &unstructured.Unstructured{}
	obj.SetGroupVersionKind(kind.GroupVersionKind)

	if err := k.client.Get(ctx, client.ObjectKey{Namespace: namespace, Name: name}, obj); err != nil {
		return nil, fromAPIError("get "+kind.String(), kind, namespace, name, err)
	}
	return obj, nil
}

// PatchStatus implements Store using a server-side apply patch on the status
// subresource.
func (k *Kubernetes) PatchStatus(ctx context.Context, kind Kind, namespace, name string, patch []byte, opts PatchOptions) (*unstructured.Unstructured, error) {
	if opts.FieldManager == "" {
		return nil, &ValidationError{Kind: kind.Kind, Namespace: namespace, Name: name, Err: fmt.Errorf("field manager is required for apply")}
	}

	obj := &unstructured.Unstructured{}
	obj.SetGroupVersionKind(kind.GroupVersionKind)
	obj.SetNamespace(namespace)
	obj.SetName(name)

	err := k.client.Status().Patch(ctx, obj, client.RawPatch(types.ApplyPatchType, patch), &client.SubResourcePatchOptions{
		PatchOptions: client.PatchOptions{
			FieldManager: opts.FieldManager,
			Force:        ptr.To(opts.Force),
		},
	})
	if err != nil {
		return nil, fromAPIError("patch status "+kind.String(), kind, namespace, name, err)
	}
	return obj, nil
}

func (k *Kubernetes) listOptions(kind Kind, resourceVersion string) *client.ListOptions {
	opts := &client.ListOptions{
		Raw: &metav1.ListOptions{
			ResourceVersion:     resourceVersion,
			AllowWatchBookmarks: false,
		},
	}
	if kind.Namespaced && k.namespace != "" {
		opts.Namespace = k.namespace
	}
	return opts
}
