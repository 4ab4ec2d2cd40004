package config

import (
	"fmt"
	"strings"
)

// ConfigurationError is a structured problem found while loading or
// validating the configuration.
type ConfigurationError struct {
	FilePath    string   `json:"filePath,omitempty"` // File the value came from, if any
	Section     string   `json:"section"`            // Top-level section (server, controller, ...)
	Field       string   `json:"field"`              // Dotted key of the offending value
	ErrorType   string   `json:"errorType"`          // Type of error (parse, validation, ...)
	Message     string   `json:"message"`            // Human-readable error message
	Details     string   `json:"details,omitempty"`  // Additional details about the error
	Suggestions []string `json:"suggestions,omitempty"`
}

// Error implements the error interface
func (ce ConfigurationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", ce.Section, ce.Field, ce.Message)
}

// DetailedError returns a detailed error message with all context
func (ce ConfigurationError) DetailedError() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Configuration Error in section %s", ce.Section))
	if ce.FilePath != "" {
		parts = append(parts, fmt.Sprintf("  File: %s", ce.FilePath))
	}
	parts = append(parts, fmt.Sprintf("  Field: %s", ce.Field))
	parts = append(parts, fmt.Sprintf("  Type: %s", ce.ErrorType))
	parts = append(parts, fmt.Sprintf("  Error: %s", ce.Message))

	if ce.Details != "" {
		parts = append(parts, fmt.Sprintf("  Details: %s", ce.Details))
	}

	if len(ce.Suggestions) > 0 {
		parts = append(parts, "  Suggestions:")
		for _, suggestion := range ce.Suggestions {
			parts = append(parts, fmt.Sprintf("    - %s", suggestion))
		}
	}

	return strings.Join(parts, "\n")
}

// ConfigurationErrorCollection holds multiple configuration errors
type ConfigurationErrorCollection struct {
	Errors []ConfigurationError `json:"errors"`
}

// Error implements the error interface for the collection
func (cec ConfigurationErrorCollection) Error() string {
	if len(cec.Errors) == 0 {
		return "no configuration errors"
	}

	if len(cec.Errors) == 1 {
		return cec.Errors[0].Error()
	}

	return fmt.Sprintf("%d configuration errors: %s (and %d more)",
		len(cec.Errors), cec.Errors[0].Error(), len(cec.Errors)-1)
}

// HasErrors returns true if there are any errors in the collection
func (cec *ConfigurationErrorCollection) HasErrors() bool {
	return len(cec.Errors) > 0
}

// Count returns the number of errors in the collection
func (cec *ConfigurationErrorCollection) Count() int {
	return len(cec.Errors)
}

// Add adds a new error to the collection
func (cec *ConfigurationErrorCollection) Add(err ConfigurationError) {
	cec.Errors = append(cec.Errors, err)
}

// AddValidation records a failed field check. A nil err is ignored.
func (cec *ConfigurationErrorCollection) AddValidation(section string, err error, suggestions ...string) {
	if err == nil {
		return
	}
	ce := ConfigurationError{
		Section:     section,
		ErrorType:   "validation",
		Message:     err.Error(),
		Suggestions: suggestions,
	}
	if ve, ok := err.(ValidationError); ok {
		ce.Field = ve.Field
		ce.Message = ve.Message
	}
	cec.Add(ce)
}

// GetErrorsBySection returns errors filtered by section
func (cec *ConfigurationErrorCollection) GetErrorsBySection(section string) []ConfigurationError {
	var filtered []ConfigurationError
	for _, err := range cec.Errors {
		if err.Section == section {
			filtered = append(filtered, err)
		}
	}
	return filtered
}

// Sections returns the sections with errors in the order they were first
// reported.
func (cec *ConfigurationErrorCollection) Sections() []string {
	seen := make(map[string]bool)
	var sections []string
	for _, err := range cec.Errors {
		if !seen[err.Section] {
			seen[err.Section] = true
			sections = append(sections, err.Section)
		}
	}
	return sections
}

// GetDetailedReport returns a detailed report of all errors, grouped by
// section
func (cec *ConfigurationErrorCollection) GetDetailedReport() string {
	if len(cec.Errors) == 0 {
		return "No configuration errors to report"
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("Detailed Configuration Error Report (%d errors):", len(cec.Errors)))
	parts = append(parts, strings.Repeat("=", 60))

	n := 0
	for _, section := range cec.Sections() {
		errs := cec.GetErrorsBySection(section)
		parts = append(parts, fmt.Sprintf("\nSection %s (%d errors)", section, len(errs)))
		parts = append(parts, strings.Repeat("-", 40))
		for _, err := range errs {
			n++
			parts = append(parts, fmt.Sprintf("Error %d:", n))
			parts = append(parts, err.DetailedError())
		}
	}

	return strings.Join(parts, "\n")
}

// NewConfigurationErrorCollection creates a new empty error collection
func NewConfigurationErrorCollection() *ConfigurationErrorCollection {
	return &ConfigurationErrorCollection{
		Errors: make([]ConfigurationError, 0),
	}
}
