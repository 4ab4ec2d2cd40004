// Package reconciler implements the control loop of foo-controller.
//
// # Overview
//
// Objects are observed through a store.Store and reconciled by
// kind-specific Reconciler implementations. The loop is level-triggered: a
// change event only says that a key needs attention, and the reconciler
// always works from a fresh read of the object.
//
// # Architecture
//
// The reconciliation system consists of several key components:
//
//   - WatchSource: lists and watches every registered kind, re-listing
//     after disconnects and periodically, and emits ChangeEvents
//   - WorkQueue: deduplicating delay queue; one entry per key, the earliest
//     requested time wins, a key is never handed to two workers at once
//   - Manager: drains the queue with a worker pool, calls the reconciler
//     and schedules the next check of the key
//   - ErrorPolicy: decides the retry delay of failed reconciles
//   - Metrics: Prometheus collectors on a private registry
//
// Every reconcile ends with exactly one new queue entry for its key: after
// the requested or default interval on success, after the error policy's
// delay on failure. An object that is read as missing twice in a row is
// forgotten.
//
// # Usage
//
//	mgr := reconciler.NewManager(s, reconciler.ManagerConfig{})
//	if err := mgr.RegisterReconciler(reconciler.NewFooReconciler(s)); err != nil {
//	    return err
//	}
//	if err := mgr.Start(ctx); err != nil {
//	    return fmt.Errorf("failed to start reconciliation: %w", err)
//	}
//	defer mgr.Stop()
package reconciler
