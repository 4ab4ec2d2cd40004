package reconciler

import (
	"context"
	"fmt"
	"strings"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/utils/clock"

	"github.com/giantswarm/foo-controller/internal/events"
	"github.com/giantswarm/foo-controller/internal/store"
	foov1 "github.com/giantswarm/foo-controller/pkg/apis/foo/v1"
	"github.com/giantswarm/foo-controller/pkg/logging"
)

const (
	// FieldManager owns the status fields written by this controller.
	FieldManager = "cntrlr"

	// FooRequeueInterval is how long a reconciled Foo waits for its next check.
	FooRequeueInterval = 30 * time.Minute
)

// FooKind is the store kind of foov1.Foo.
var FooKind = store.Kind{
	GroupVersionKind: foov1.FooGroupVersionKind(),
	Resource:         foov1.FooResource,
	Namespaced:       true,
}

// FooPredicate decides the is_bad verdict of a Foo.
type FooPredicate func(spec foov1.FooSpec) bool

// ContainsBad reports whether spec.info mentions "bad".
func ContainsBad(spec foov1.FooSpec) bool {
	return strings.Contains(spec.Info, "bad")
}

// FooReconciler keeps status.is_bad of every Foo in line with its spec.
type FooReconciler struct {
	// Store receives the status patches.
	Store store.Store

	// Predicate computes is_bad. Defaults to ContainsBad.
	Predicate FooPredicate

	// Clock stamps last_updated. Defaults to the real clock.
	Clock clock.PassiveClock

	// Events records verdict changes and failed status writes. Optional.
	Events *events.EventGenerator
}

var _ Reconciler = (*FooReconciler)(nil)

// NewFooReconciler creates a reconciler patching through s.
func NewFooReconciler(s store.Store) *FooReconciler {
	return &FooReconciler{
		Store:     s,
		Predicate: ContainsBad,
		Clock:     clock.RealClock{},
	}
}

// ResourceKind implements Reconciler.
func (r *FooReconciler) ResourceKind() store.Kind {
	return FooKind
}

// Reconcile implements Reconciler. The status last_updated only moves when
// the verdict changes, so reconciling an unchanged Foo applies an identical
// patch.
func (r *FooReconciler) Reconcile(ctx context.Context, obj *unstructured.Unstructured) ReconcileResult {
	key := KeyForObject(FooKind, obj)

	var foo foov1.Foo
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(obj.Object, &foo); err != nil {
		return Failure(NewReconcileLogicError(key, fmt.Errorf("failed to decode Foo: %w", err)))
	}

	status := r.desiredStatus(&foo)
	patch, err := store.MarshalStatusPatch(FooKind, foo.Namespace, foo.Name, status)
	if err != nil {
		return Failure(NewReconcileLogicError(key, fmt.Errorf("failed to encode status patch: %w", err)))
	}

	_, err = r.Store.PatchStatus(ctx, FooKind, foo.Namespace, foo.Name, patch, store.PatchOptions{
		FieldManager: FieldManager,
		Force:        true,
	})
	if err != nil {
		r.emit(ctx, obj, events.ReasonStatusUpdateFailed, events.EventData{Error: SanitizeErrorMessage(err.Error())})
		return Failure(fmt.Errorf("failed to patch status of %s: %w", key, err))
	}

	switch {
	case status.IsBad && (foo.Status == nil || !foo.Status.IsBad):
		r.emit(ctx, obj, events.ReasonFooMarkedBad, events.EventData{Info: foo.Spec.Info})
	case !status.IsBad && foo.Status != nil && foo.Status.IsBad:
		r.emit(ctx, obj, events.ReasonFooMarkedGood, events.EventData{})
	}

	logging.DebugContext(ctx, "FooReconciler", "Reconciled %s (is_bad=%t)", key, status.IsBad)
	return Success(FooRequeueInterval)
}

func (r *FooReconciler) emit(ctx context.Context, obj *unstructured.Unstructured, reason events.EventReason, data events.EventData) {
	if r.Events == nil {
		return
	}
	if err := r.Events.Emit(ctx, obj, reason, data); err != nil {
		logging.WarnContext(ctx, "FooReconciler", "Failed to record %s event for %s/%s: %v",
			reason, obj.GetNamespace(), obj.GetName(), err)
	}
}

func (r *FooReconciler) desiredStatus(foo *foov1.Foo) *foov1.FooStatus {
	predicate := r.Predicate
	if predicate == nil {
		predicate = ContainsBad
	}
	clk := r.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}

	status := &foov1.FooStatus{IsBad: predicate(foo.Spec)}
	if foo.Status != nil && foo.Status.IsBad == status.IsBad && foo.Status.LastUpdated != nil {
		status.LastUpdated = foo.Status.LastUpdated
		return status
	}
	now := metav1.NewTime(clk.Now())
	status.LastUpdated = &now
	return status
}
