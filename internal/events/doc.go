// Package events records Kubernetes Events for objects the controller
// reconciles.
//
// An EventGenerator renders a message for an EventReason from a template and
// hands it to a Recorder. Two recorders exist:
//
//   - KubernetesRecorder creates core/v1 Events next to the involved object,
//     so they show up in "kubectl describe".
//   - LogRecorder writes the event to the process log, for the filesystem and
//     memory stores where there is no API server to hold Events.
//
// Failures to record an event are returned to the caller, which logs them;
// they never fail a reconcile.
//
// Example:
//
//	gen := events.NewEventGenerator(events.NewLogRecorder())
//	_ = gen.Emit(ctx, obj, events.ReasonFooMarkedBad, events.EventData{Info: "a bad thing"})
package events
