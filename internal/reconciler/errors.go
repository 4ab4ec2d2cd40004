package reconciler

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/giantswarm/foo-controller/internal/store"
)

// ReconcileLogicError reports a failure inside a reconcile function that is
// not caused by the store, such as an object that cannot be decoded.
type ReconcileLogicError struct {
	Key Key
	Err error
}

func (e *ReconcileLogicError) Error() string {
	return fmt.Sprintf("reconcile %s: %v", e.Key, e.Err)
}

func (e *ReconcileLogicError) Unwrap() error {
	return e.Err
}

// NewReconcileLogicError wraps err as a ReconcileLogicError for key.
func NewReconcileLogicError(key Key, err error) error {
	return &ReconcileLogicError{Key: key, Err: err}
}

// IsReconcileLogicError reports whether err is or wraps a ReconcileLogicError.
func IsReconcileLogicError(err error) bool {
	var target *ReconcileLogicError
	return errors.As(err, &target)
}

// Failure reasons used as metric labels.
const (
	ReasonConflict   = "conflict"
	ReasonTransport  = "transport"
	ReasonNotFound   = "not_found"
	ReasonValidation = "validation"
	ReasonLogic      = "logic"
	ReasonTimeout    = "timeout"
	ReasonUnknown    = "unknown"
)

// ErrorReason classifies err for metrics and logs.
func ErrorReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case store.IsConflict(err):
		return ReasonConflict
	case store.IsNotFound(err):
		return ReasonNotFound
	case store.IsValidation(err):
		return ReasonValidation
	case store.IsTransport(err):
		return ReasonTransport
	case IsReconcileLogicError(err):
		return ReasonLogic
	default:
		return ReasonUnknown
	}
}

var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9\-._~+/]+=*`),
	regexp.MustCompile(`(?i)((?:token|password|secret|apikey|api_key)\s*[=:]\s*)[^\s,;&"']+`),
	regexp.MustCompile(`(https?://)[^/\s:@]+:[^/\s@]+@`),
}

// SanitizeErrorMessage removes credentials from an error message before it
// is exposed in reconcile status.
func SanitizeErrorMessage(msg string) string {
	msg = sensitivePatterns[0].ReplaceAllString(msg, "${1}[REDACTED]")
	msg = sensitivePatterns[1].ReplaceAllString(msg, "${1}[REDACTED]")
	msg = sensitivePatterns[2].ReplaceAllString(msg, "${1}[REDACTED]@")
	return msg
}
