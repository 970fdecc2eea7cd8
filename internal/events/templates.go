package events

import (
	"fmt"
	"strings"
)

// MessageTemplateEngine provides dynamic message generation for events.
type MessageTemplateEngine struct {
	templates map[EventReason]string
}

// NewMessageTemplateEngine creates a new message template engine with default templates.
func NewMessageTemplateEngine() *MessageTemplateEngine {
	engine := &MessageTemplateEngine{
		templates: make(map[EventReason]string),
	}
	engine.loadDefaultTemplates()
	return engine
}

func (e *MessageTemplateEngine) loadDefaultTemplates() {
	e.templates[ReasonProjectRegistered] = "Project {{.Name}} registered at {{.Path}}"
	e.templates[ReasonProjectUnregistered] = "Project {{.ID}} unregistered"
	e.templates[ReasonProjectSelected] = "Project {{.Name}} selected"
	e.templates[ReasonProjectRenamed] = "Project {{.ID}} renamed to {{.Name}}"

	e.templates[ReasonStructureValid] = "Project structure at {{.Path}} is complete"
	e.templates[ReasonStructureInvalid] = "Project structure at {{.Path}} has {{.Count}} issue(s)"
	e.templates[ReasonStructureRepaired] = "Created {{.Count}} missing entries under {{.Path}}"
	e.templates[ReasonStructureConflict] = "Repair of {{.Path}} stopped{{if .Error}}: {{.Error}}{{end}}"

	e.templates[ReasonCatalogScanned] = "Catalog scan found {{.Count}} package(s)"
	e.templates[ReasonCatalogDiagnostics] = "Catalog scan found {{.Count}} package(s) with diagnostics{{if .Error}}: {{.Error}}{{end}}"

	e.templates[ReasonLaunchStarted] = "Launched {{.Name}} {{.Version}} (pid {{.PID}}), log {{.Path}}"
	e.templates[ReasonLaunchDegraded] = "Launched {{.Name}} {{.Version}} (pid {{.PID}}) without a log{{if .Error}}: {{.Error}}{{end}}"
	e.templates[ReasonLaunchFailed] = "Launch of {{.Name}} {{.Version}} failed{{if .Error}}: {{.Error}}{{end}}"
}

// Render generates a message for the given event reason and data.
func (e *MessageTemplateEngine) Render(reason EventReason, data EventData) string {
	template, exists := e.templates[reason]
	if !exists {
		return fmt.Sprintf("Event: %s for %s", string(reason), data.Name)
	}

	return e.renderTemplate(template, data)
}

// SetTemplate allows customizing the message template for a specific event reason.
func (e *MessageTemplateEngine) SetTemplate(reason EventReason, template string) {
	e.templates[reason] = template
}

// GetTemplate returns the template for a specific event reason.
func (e *MessageTemplateEngine) GetTemplate(reason EventReason) (string, bool) {
	template, exists := e.templates[reason]
	return template, exists
}

// renderTemplate performs simple variable substitution with EventData.
func (e *MessageTemplateEngine) renderTemplate(template string, data EventData) string {
	result := e.renderConditional(template, "{{if .Error}}", "{{end}}", data.Error != "")

	result = strings.ReplaceAll(result, "{{.Name}}", data.Name)
	result = strings.ReplaceAll(result, "{{.ID}}", data.ID)
	result = strings.ReplaceAll(result, "{{.Path}}", data.Path)
	result = strings.ReplaceAll(result, "{{.Version}}", data.Version)
	result = strings.ReplaceAll(result, "{{.Error}}", data.Error)
	result = strings.ReplaceAll(result, "{{.Count}}", fmt.Sprintf("%d", data.Count))
	result = strings.ReplaceAll(result, "{{.PID}}", fmt.Sprintf("%d", data.PID))

	return strings.Join(strings.Fields(result), " ")
}

// renderConditional handles a single {{if .X}}...{{end}} block.
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
	if !condition {
		return before + after
	}
	content := template[startIndex+len(startMarker) : endIndex]
	return before + content + after
}
