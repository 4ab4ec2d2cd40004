package store

import (
	"errors"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
)

// crdHint is appended to errors caused by a missing CRD.
const crdHint = "is the CRD installed? please run: foo-controller crdgen | kubectl apply -f -"

// NotFoundError reports that an object does not exist.
type NotFoundError struct {
	Kind      string
	Namespace string
	Name      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, ObjectKey(e.Namespace, e.Name))
}

// ConflictError reports a failed optimistic-concurrency precondition or a
// field ownership conflict on apply.
type ConflictError struct {
	Kind      string
	Namespace string
	Name      string
	Reason    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s %q: %s", e.Kind, ObjectKey(e.Namespace, e.Name), e.Reason)
}

// ValidationError reports an object or patch rejected by schema validation.
type ValidationError struct {
	Kind      string
	Namespace string
	Name      string
	Err       error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %q is invalid: %v", e.Kind, ObjectKey(e.Namespace, e.Name), e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// TransportError reports that the store could not be reached or answered
// with an unexpected failure. Such errors are retried by the caller.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsConflict reports whether err is or wraps a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsTransport reports whether err is or wraps a TransportError.
func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

// fromAPIError maps an API server error onto the store error taxonomy.
func fromAPIError(op string, kind Kind, namespace, name string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case apierrors.IsNotFound(err) && name != "":
		return &NotFoundError{Kind: kind.Kind, Namespace: namespace, Name: name}
	case apierrors.IsConflict(err):
		return &ConflictError{Kind: kind.Kind, Namespace: namespace, Name: name, Reason: err.Error()}
	case apierrors.IsInvalid(err), apierrors.IsBadRequest(err):
		return &ValidationError{Kind: kind.Kind, Namespace: namespace, Name: name, Err: err}
	case meta.IsNoMatchError(err), apierrors.IsNotFound(err):
		return &TransportError{Op: op, Err: fmt.Errorf("%w (%s)", err, crdHint)}
	default:
		return &TransportError{Op: op, Err: err}
	}
}
