package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/giantswarm/foo-controller/pkg/logging"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidateRequired checks if a required string field is not empty
func ValidateRequired(field, value, reason string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("is required %s", reason),
		}
	}
	return nil
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// ValidatePositive checks that an integer is at least one.
func ValidatePositive(field string, value int) error {
	if value < 1 {
		return ValidationError{Field: field, Value: value, Message: "must be at least 1"}
	}
	return nil
}

// ValidatePositiveDuration checks that a duration is greater than zero.
func ValidatePositiveDuration(field string, value time.Duration) error {
	if value <= 0 {
		return ValidationError{Field: field, Value: value, Message: "must be a positive duration"}
	}
	return nil
}

// ValidateNonNegativeDuration checks that a duration is zero or more.
func ValidateNonNegativeDuration(field string, value time.Duration) error {
	if value < 0 {
		return ValidationError{Field: field, Value: value, Message: "must not be negative"}
	}
	return nil
}

// ValidateListenAddr checks a host:port listen address.
func ValidateListenAddr(field, value string) error {
	_, port, err := net.SplitHostPort(value)
	if err != nil {
		return ValidationError{Field: field, Value: value, Message: fmt.Sprintf("must be host:port: %v", err)}
	}
	if p, err := strconv.Atoi(port); err != nil || p < 0 || p > 65535 {
		return ValidationError{Field: field, Value: value, Message: "port must be a number between 0 and 65535"}
	}
	return nil
}

// Validate checks the whole configuration and returns a
// *ConfigurationErrorCollection listing every problem, or nil.
func (c *Config) Validate() error {
	errs := NewConfigurationErrorCollection()

	errs.AddValidation("server", ValidateListenAddr("server.addr", c.Server.Addr),
		"Use a value such as 0.0.0.0:8080 or :8080")

	errs.AddValidation("controller", ValidatePositive("controller.workers", c.Controller.Workers))
	errs.AddValidation("controller", ValidatePositiveDuration("controller.defaultRequeue", c.Controller.DefaultRequeue))
	errs.AddValidation("controller", ValidatePositiveDuration("controller.reconcileTimeout", c.Controller.ReconcileTimeout))
	errs.AddValidation("controller", ValidateNonNegativeDuration("controller.gracePeriod", c.Controller.GracePeriod))
	errs.AddValidation("controller", ValidateOneOf("controller.errorPolicy", string(c.Controller.ErrorPolicy),
		[]string{string(ErrorPolicyFixed), string(ErrorPolicyExponential)}))
	errs.AddValidation("controller", ValidatePositiveDuration("controller.errorRequeue", c.Controller.ErrorRequeue))
	if c.Controller.ErrorPolicy == ErrorPolicyExponential && c.Controller.ErrorMaxBackoff < c.Controller.ErrorRequeue {
		errs.AddValidation("controller", ValidationError{
			Field:   "controller.errorMaxBackoff",
			Value:   c.Controller.ErrorMaxBackoff,
			Message: "must not be smaller than controller.errorRequeue",
		})
	}

	errs.AddValidation("watch", ValidateNonNegativeDuration("watch.resyncPeriod", c.Watch.ResyncPeriod))
	errs.AddValidation("watch", ValidatePositiveDuration("watch.maxBackoff", c.Watch.MaxBackoff))

	errs.AddValidation("store", ValidateOneOf("store.type", string(c.Store.Type),
		[]string{string(StoreKubernetes), string(StoreFilesystem), string(StoreMemory)}))
	if c.Store.Type == StoreFilesystem {
		errs.AddValidation("store", ValidateRequired("store.path", c.Store.Path, "for the filesystem store"),
			"Point store.path at a directory containing a foos/ subdirectory")
	}

	errs.AddValidation("metrics", ValidateRequired("metrics.namespace", c.Metrics.Namespace, "to name metrics"))

	if err := c.Tracing.Validate(); err != nil {
		errs.AddValidation("tracing", ValidationError{Field: "tracing", Message: err.Error()})
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs.AddValidation("logging", ValidationError{Field: "logging.level", Value: c.Logging.Level, Message: err.Error()})
	}
	if _, err := logging.ParseFormat(c.Logging.Format); err != nil {
		errs.AddValidation("logging", ValidationError{Field: "logging.format", Value: c.Logging.Format, Message: err.Error()})
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
