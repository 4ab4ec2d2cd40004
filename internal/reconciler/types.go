package reconciler

import (
	"context"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/giantswarm/foo-controller/internal/store"
)

// Key identifies one object across all watched kinds.
type Key struct {
	// Kind is the resource type of the object.
	Kind store.Kind

	// Namespace is empty for cluster-scoped kinds.
	Namespace string

	// Name is the object name.
	Name string
}

// String returns the key in "Kind/namespace/name" form.
func (k Key) String() string {
	return k.Kind.Kind + "/" + store.ObjectKey(k.Namespace, k.Name)
}

// KeyForObject builds the key of a stored object.
func KeyForObject(kind store.Kind, obj *unstructured.Unstructured) Key {
	return Key{Kind: kind, Namespace: obj.GetNamespace(), Name: obj.GetName()}
}

// ChangeEvent represents a detected change in a resource.
type ChangeEvent struct {
	// Key identifies the object that changed.
	Key Key

	// Operation describes what kind of change occurred.
	Operation ChangeOperation

	// Timestamp is when the change was detected.
	Timestamp time.Time

	// Source indicates where the change came from.
	Source ChangeSource
}

// ChangeOperation represents the type of change detected.
type ChangeOperation string

const (
	// OperationAdded indicates a new object was observed.
	OperationAdded ChangeOperation = "Added"

	// OperationModified indicates an existing object was modified.
	OperationModified ChangeOperation = "Modified"

	// OperationDeleted indicates an object disappeared.
	OperationDeleted ChangeOperation = "Deleted"

	// OperationResynced indicates an object was re-listed without a known change.
	OperationResynced ChangeOperation = "Resynced"
)

// ChangeSource indicates where a change originated.
type ChangeSource string

const (
	// SourceWatch indicates the change came from a store watch.
	SourceWatch ChangeSource = "Watch"

	// SourceList indicates the change came from a full list (startup, relist or resync).
	SourceList ChangeSource = "List"

	// SourceManual indicates the change was triggered manually (e.g., API call).
	SourceManual ChangeSource = "Manual"
)

// ReconcileResult represents the outcome of a reconciliation attempt.
//
// A nil Error is a success; the object is checked again after RequeueAfter,
// or after the manager's default interval when RequeueAfter is zero. A
// non-nil Error is a failure and the error policy decides the retry delay.
type ReconcileResult struct {
	// RequeueAfter specifies when to check the object again on success.
	RequeueAfter time.Duration

	// Error is any error that occurred during reconciliation.
	Error error
}

// Success returns a successful result asking to be requeued after d.
func Success(d time.Duration) ReconcileResult {
	return ReconcileResult{RequeueAfter: d}
}

// Failure returns a failed result.
func Failure(err error) ReconcileResult {
	return ReconcileResult{Error: err}
}

// Reconciler is the interface that resource-specific reconcilers must implement.
type Reconciler interface {
	// Reconcile drives the status of obj, a fresh read from the store,
	// toward its desired state. It must be idempotent: calling it multiple
	// times with the same input must produce the same writes.
	Reconcile(ctx context.Context, obj *unstructured.Unstructured) ReconcileResult

	// ResourceKind returns the kind this reconciler handles.
	ResourceKind() store.Kind
}

// ReconcilerFunc adapts a function to the Reconciler interface.
type ReconcilerFunc struct {
	Kind store.Kind
	Func func(ctx context.Context, obj *unstructured.Unstructured) ReconcileResult
}

// Reconcile implements Reconciler.
func (f ReconcilerFunc) Reconcile(ctx context.Context, obj *unstructured.Unstructured) ReconcileResult {
	return f.Func(ctx, obj)
}

// ResourceKind implements Reconciler.
func (f ReconcilerFunc) ResourceKind() store.Kind {
	return f.Kind
}

// ChangeDetector is the interface for components that detect changes in resources.
type ChangeDetector interface {
	// Start performs the initial synchronisation of every registered kind
	// and then keeps sending change events to the provided channel until ctx
	// is cancelled. An error is returned only if the initial
	// synchronisation fails.
	Start(ctx context.Context, changes chan<- ChangeEvent) error

	// Stop gracefully stops the change detector.
	Stop() error

	// AddResourceType adds a kind to watch.
	AddResourceType(kind store.Kind) error

	// RemoveResourceType removes a kind from watching.
	RemoveResourceType(kind store.Kind) error
}

// ManagerConfig holds configuration for the Manager.
type ManagerConfig struct {
	// WorkerCount is the number of concurrent reconciliation workers.
	// Defaults to 2 if not specified.
	WorkerCount int

	// DefaultRequeueInterval is used when a reconcile succeeds without
	// asking for a specific requeue delay. Defaults to 1 hour.
	DefaultRequeueInterval time.Duration

	// ReconcileTimeout bounds a single reconcile call. Defaults to 30 seconds.
	ReconcileTimeout time.Duration

	// GracePeriod is how long Stop waits for in-flight reconciles.
	// Defaults to 30 seconds.
	GracePeriod time.Duration

	// ResyncPeriod is how often every object is re-listed. Defaults to 5 minutes.
	ResyncPeriod time.Duration

	// WatchMaxBackoff caps the delay between watch reconnect attempts.
	// Defaults to 30 seconds.
	WatchMaxBackoff time.Duration

	// ErrorPolicy decides the retry delay after a failed reconcile.
	// Defaults to a fixed 360 second delay.
	ErrorPolicy ErrorPolicy

	// DisabledResourceTypes is a set of kinds (by Kind name) that should not
	// be reconciled.
	DisabledResourceTypes map[string]bool
}

// ReconcileStatus represents the current status of reconciliation for a resource.
type ReconcileStatus struct {
	// Kind is the kind name of the resource.
	Kind string `json:"kind"`

	// Name is the name of the resource.
	Name string `json:"name"`

	// Namespace is empty for cluster-scoped resources.
	Namespace string `json:"namespace,omitempty"`

	// LastReconcileTime is when the resource was last successfully reconciled.
	LastReconcileTime *time.Time `json:"lastReconcileTime,omitempty"`

	// NextReconcileTime is when the resource is scheduled to be checked again.
	NextReconcileTime *time.Time `json:"nextReconcileTime,omitempty"`

	// LastError is the most recent error, if any.
	LastError string `json:"lastError,omitempty"`

	// RetryCount is the number of consecutive failed attempts.
	RetryCount int `json:"retryCount"`

	// TraceID is the trace id of the most recent reconcile.
	TraceID string `json:"traceId,omitempty"`

	// State describes the current reconciliation state.
	State ReconcileState `json:"state"`
}

// ReconcileState represents the state of a resource's reconciliation.
type ReconcileState string

const (
	// StatePending means the resource is awaiting reconciliation.
	StatePending ReconcileState = "Pending"

	// StateReconciling means reconciliation is in progress.
	StateReconciling ReconcileState = "Reconciling"

	// StateSynced means the resource is successfully reconciled.
	StateSynced ReconcileState = "Synced"

	// StateError means reconciliation failed and will be retried.
	StateError ReconcileState = "Error"

	// StateDeleted means the resource was not found in the store.
	StateDeleted ReconcileState = "Deleted"
)
