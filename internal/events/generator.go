package events

import (
	"context"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/giantswarm/foo-controller/pkg/logging"
)

// EventGenerator renders and records events.
type EventGenerator struct {
	recorder  Recorder
	templates *MessageTemplateEngine
}

// NewEventGenerator creates a generator recording through r.
func NewEventGenerator(r Recorder) *EventGenerator {
	return &EventGenerator{
		recorder:  r,
		templates: NewMessageTemplateEngine(),
	}
}

// Emit records reason for obj. Kind, Name and Namespace of data are filled
// from obj.
func (g *EventGenerator) Emit(ctx context.Context, obj *unstructured.Unstructured, reason EventReason, data EventData) error {
	ref := ObjectRef{
		APIVersion: obj.GetAPIVersion(),
		Kind:       obj.GetKind(),
		Namespace:  obj.GetNamespace(),
		Name:       obj.GetName(),
		UID:        string(obj.GetUID()),
	}
	data.Kind = ref.Kind
	data.Name = ref.Name
	data.Namespace = ref.Namespace

	message := g.templates.Render(reason, data)
	eventType := getEventType(reason)

	logging.DebugContext(ctx, "events", "Generating %s event: reason=%s, message=%s, type=%s",
		ref.Kind, reason, message, eventType)

	return g.recorder.Record(ctx, ref, reason, message, eventType)
}

// SetTemplate overrides the message template of reason.
func (g *EventGenerator) SetTemplate(reason EventReason, template string) {
	g.templates.SetTemplate(reason, template)
}
