package events

import (
	"strings"
)

// MessageTemplateEngine renders event messages from per-reason templates.
//
// Templates support the placeholders {{.Kind}}, {{.Name}}, {{.Namespace}},
// {{.Info}} and {{.Error}}, and one level of {{if .Error}}...{{end}} or
// {{if .Info}}...{{end}}.
type MessageTemplateEngine struct {
	templates map[EventReason]string
}

// NewMessageTemplateEngine creates an engine with the default templates.
func NewMessageTemplateEngine() *MessageTemplateEngine {
	engine := &MessageTemplateEngine{
		templates: make(map[EventReason]string),
	}
	engine.loadDefaultTemplates()
	return engine
}

func (e *MessageTemplateEngine) loadDefaultTemplates() {
	e.templates[ReasonFooMarkedBad] = "{{.Kind}} {{.Name}} marked bad{{if .Info}}: info is {{.Info}}{{end}}"
	e.templates[ReasonFooMarkedGood] = "{{.Kind}} {{.Name}} no longer bad"
	e.templates[ReasonStatusUpdateFailed] = "Failed to update status of {{.Kind}} {{.Name}}{{if .Error}}: {{.Error}}{{end}}"
}

// Render returns the message for reason. Unknown reasons render as the
// reason itself followed by the object name.
func (e *MessageTemplateEngine) Render(reason EventReason, data EventData) string {
	template, ok := e.templates[reason]
	if !ok {
		return string(reason) + " " + data.Name
	}

	result := e.renderConditional(template, "{{if .Info}}", "{{end}}", data.Info != "")
	result = e.renderConditional(result, "{{if .Error}}", "{{end}}", data.Error != "")

	result = strings.ReplaceAll(result, "{{.Kind}}", data.Kind)
	result = strings.ReplaceAll(result, "{{.Name}}", data.Name)
	result = strings.ReplaceAll(result, "{{.Namespace}}", data.Namespace)
	result = strings.ReplaceAll(result, "{{.Info}}", data.Info)
	result = strings.ReplaceAll(result, "{{.Error}}", data.Error)
	return result
}

// SetTemplate overrides the template of reason.
func (e *MessageTemplateEngine) SetTemplate(reason EventReason, template string) {
	e.templates[reason] = template
}

// GetTemplate returns the template of reason.
func (e *MessageTemplateEngine) GetTemplate(reason EventReason) (string, bool) {
	t, ok := e.templates[reason]
	return t, ok
}

// renderConditional keeps or drops the first startMarker...endMarker block.
func (e *MessageTemplateEngine) renderConditional(template, startMarker, endMarker string, condition bool) string {
	startIndex := strings.Index(template, startMarker)
	if startIndex == -1 {
		return template
	}

	endIndex := strings.Index(template[startIndex:], endMarker)
	if endIndex == -1 {
		return template
	}
	endIndex += startIndex

	before := template[:startIndex]
	after := template[endIndex+len(endMarker):]
	if condition {
		return before + template[startIndex+len(startMarker):endIndex] + after
	}
	return before + after
}
