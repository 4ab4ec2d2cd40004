package events

// EventType is the Kubernetes event type.
type EventType string

const (
	// EventTypeNormal is used for expected state changes.
	EventTypeNormal EventType = "Normal"

	// EventTypeWarning is used for states that need attention.
	EventTypeWarning EventType = "Warning"
)

// EventReason is the machine-readable reason of an event.
type EventReason string

const (
	// ReasonFooMarkedBad is recorded when a Foo's status.is_bad turns true.
	ReasonFooMarkedBad EventReason = "FooMarkedBad"

	// ReasonFooMarkedGood is recorded when a Foo's status.is_bad turns false.
	ReasonFooMarkedGood EventReason = "FooMarkedGood"

	// ReasonStatusUpdateFailed is recorded when writing status fails.
	ReasonStatusUpdateFailed EventReason = "StatusUpdateFailed"
)

// EventData holds the values substituted into message templates.
type EventData struct {
	// Kind is the kind of the involved object.
	Kind string

	// Name is the name of the involved object.
	Name string

	// Namespace is the namespace of the involved object.
	Namespace string

	// Info is the free-form spec text of a Foo.
	Info string

	// Error contains error information for failure events.
	Error string
}

// ObjectRef identifies the object an event is about.
type ObjectRef struct {
	APIVersion string
	Kind       string
	Namespace  string
	Name       string
	UID        string
}

func getEventType(reason EventReason) EventType {
	switch reason {
	case ReasonFooMarkedBad, ReasonStatusUpdateFailed:
		return EventTypeWarning
	default:
		return EventTypeNormal
	}
}
