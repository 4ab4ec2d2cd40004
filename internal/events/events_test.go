package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"
)

type recordedEvent struct {
	ref       ObjectRef
	reason    EventReason
	message   string
	eventType EventType
}

type captureRecorder struct {
	events []recordedEvent
	err    error
}

func (c *captureRecorder) Record(_ context.Context, ref ObjectRef, reason EventReason, message string, eventType EventType) error {
	c.events = append(c.events, recordedEvent{ref: ref, reason: reason, message: message, eventType: eventType})
	return c.err
}

func testFoo() *unstructured.Unstructured {
	obj := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "clux.dev/v1",
		"kind":       "Foo",
		"metadata":   map[string]interface{}{"namespace": "ns", "name": "foo1"},
	}}
	obj.SetUID("uid-1")
	return obj
}

func TestRenderTemplates(t *testing.T) {
	engine := NewMessageTemplateEngine()

	tests := []struct {
		name   string
		reason EventReason
		data   EventData
		want   string
	}{
		{
			name:   "bad with info",
			reason: ReasonFooMarkedBad,
			data:   EventData{Kind: "Foo", Name: "foo1", Info: "a bad thing"},
			want:   "Foo foo1 marked bad: info is a bad thing",
		},
		{
			name:   "bad without info",
			reason: ReasonFooMarkedBad,
			data:   EventData{Kind: "Foo", Name: "foo1"},
			want:   "Foo foo1 marked bad",
		},
		{
			name:   "good",
			reason: ReasonFooMarkedGood,
			data:   EventData{Kind: "Foo", Name: "foo1"},
			want:   "Foo foo1 no longer bad",
		},
		{
			name:   "failure with error",
			reason: ReasonStatusUpdateFailed,
			data:   EventData{Kind: "Foo", Name: "foo1", Error: "conflict"},
			want:   "Failed to update status of Foo foo1: conflict",
		},
		{
			name:   "unknown reason",
			reason: "Other",
			data:   EventData{Name: "foo1"},
			want:   "Other foo1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.Render(tt.reason, tt.data))
		})
	}
}

func TestSetTemplate(t *testing.T) {
	engine := NewMessageTemplateEngine()
	engine.SetTemplate(ReasonFooMarkedGood, "{{.Namespace}}/{{.Name}} is fine")

	tmpl, ok := engine.GetTemplate(ReasonFooMarkedGood)
	require.True(t, ok)
	assert.Equal(t, "{{.Namespace}}/{{.Name}} is fine", tmpl)
	assert.Equal(t, "ns/foo1 is fine", engine.Render(ReasonFooMarkedGood, EventData{Namespace: "ns", Name: "foo1"}))
}

func TestEmitFillsObjectReference(t *testing.T) {
	rec := &captureRecorder{}
	gen := NewEventGenerator(rec)

	require.NoError(t, gen.Emit(context.Background(), testFoo(), ReasonFooMarkedBad, EventData{Info: "bad"}))

	require.Len(t, rec.events, 1)
	got := rec.events[0]
	assert.Equal(t, ObjectRef{APIVersion: "clux.dev/v1", Kind: "Foo", Namespace: "ns", Name: "foo1", UID: "uid-1"}, got.ref)
	assert.Equal(t, EventTypeWarning, got.eventType)
	assert.Equal(t, "Foo foo1 marked bad: info is bad", got.message)
}

func TestEmitReturnsRecorderError(t *testing.T) {
	rec := &captureRecorder{err: errors.New("boom")}
	gen := NewEventGenerator(rec)

	err := gen.Emit(context.Background(), testFoo(), ReasonFooMarkedGood, EventData{})
	assert.EqualError(t, err, "boom")
}

func TestKubernetesRecorderCreatesEvent(t *testing.T) {
	c := fake.NewClientBuilder().Build()
	gen := NewEventGenerator(NewKubernetesRecorder(c))

	require.NoError(t, gen.Emit(context.Background(), testFoo(), ReasonFooMarkedGood, EventData{}))

	var list corev1.EventList
	require.NoError(t, c.List(context.Background(), &list, client.InNamespace("ns")))
	require.Len(t, list.Items, 1)

	event := list.Items[0]
	assert.Equal(t, "FooMarkedGood", event.Reason)
	assert.Equal(t, "Normal", event.Type)
	assert.Equal(t, "Foo foo1 no longer bad", event.Message)
	assert.Equal(t, "Foo", event.InvolvedObject.Kind)
	assert.Equal(t, "foo1", event.InvolvedObject.Name)
	assert.Equal(t, DefaultComponent, event.Source.Component)
	assert.EqualValues(t, 1, event.Count)
}

func TestKubernetesRecorderWrapsCreateError(t *testing.T) {
	c := fake.NewClientBuilder().WithInterceptorFuncs(interceptor.Funcs{
		Create: func(ctx context.Context, c client.WithWatch, obj client.Object, opts ...client.CreateOption) error {
			return errors.New("forbidden")
		},
	}).Build()

	err := NewKubernetesRecorder(c).Record(context.Background(), ObjectRef{Kind: "Foo", Name: "foo1"}, ReasonFooMarkedBad, "msg", EventTypeWarning)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create Kubernetes Event")
}

func TestLogRecorderNeverFails(t *testing.T) {
	r := NewLogRecorder()
	assert.NoError(t, r.Record(context.Background(), ObjectRef{Kind: "Foo", Name: "foo1"}, ReasonFooMarkedBad, "msg", EventTypeWarning))
	assert.NoError(t, r.Record(context.Background(), ObjectRef{Kind: "Foo", Name: "foo1"}, ReasonFooMarkedGood, "msg", EventTypeNormal))
}
