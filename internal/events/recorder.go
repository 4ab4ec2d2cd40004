package events

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/giantswarm/foo-controller/pkg/logging"
)

// DefaultComponent is reported as the source of every event.
const DefaultComponent = "foo-controller"

// Recorder stores one rendered event.
type Recorder interface {
	Record(ctx context.Context, ref ObjectRef, reason EventReason, message string, eventType EventType) error
}

// KubernetesRecorder creates core/v1 Events through the API server.
type KubernetesRecorder struct {
	client    client.Client
	component string
	clock     clock.PassiveClock
}

// NewKubernetesRecorder creates a recorder writing Events with c.
func NewKubernetesRecorder(c client.Client) *KubernetesRecorder {
	return &KubernetesRecorder{client: c, component: DefaultComponent, clock: clock.RealClock{}}
}

// Record implements Recorder.
func (r *KubernetesRecorder) Record(ctx context.Context, ref ObjectRef, reason EventReason, message string, eventType EventType) error {
	now := metav1.NewTime(r.clock.Now())
	event := &corev1.Event{
		ObjectMeta: metav1.ObjectMeta{
			GenerateName: ref.Name + "-",
			Namespace:    eventNamespace(ref),
		},
		InvolvedObject: corev1.ObjectReference{
			APIVersion: ref.APIVersion,
			Kind:       ref.Kind,
			Name:       ref.Name,
			Namespace:  ref.Namespace,
			UID:        types.UID(ref.UID),
		},
		Reason:              string(reason),
		Message:             message,
		Type:                string(eventType),
		Source:              corev1.EventSource{Component: r.component},
		ReportingController: r.component,
		FirstTimestamp:      now,
		LastTimestamp:       now,
		Count:               1,
	}

	if err := r.client.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create Kubernetes Event: %w", err)
	}
	return nil
}

// eventNamespace places events of cluster-scoped objects in "default".
func eventNamespace(ref ObjectRef) string {
	if ref.Namespace == "" {
		return metav1.NamespaceDefault
	}
	return ref.Namespace
}

// LogRecorder writes events to the process log.
type LogRecorder struct{}

// NewLogRecorder creates a recorder for stores without an API server.
func NewLogRecorder() *LogRecorder {
	return &LogRecorder{}
}

// Record implements Recorder.
func (LogRecorder) Record(ctx context.Context, ref ObjectRef, reason EventReason, message string, eventType EventType) error {
	if eventType == EventTypeWarning {
		logging.WarnContext(ctx, "event", "Event for %s %s/%s: %s - %s", ref.Kind, ref.Namespace, ref.Name, reason, message)
		return nil
	}
	logging.InfoContext(ctx, "event", "Event for %s %s/%s: %s - %s", ref.Kind, ref.Namespace, ref.Name, reason, message)
	return nil
}
