// Package v1 contains API Schema definitions for the clux.dev v1 API group.
//
// # API Group: clux.dev/v1
//
// ## Foo
//
// Foo is the example resource driven by foo-controller. Its spec is owned by
// users; its status is owned by the controller and written exclusively through
// server-side apply on the status subresource.
//
// Example:
//
//	apiVersion: clux.dev/v1
//	kind: Foo
//	metadata:
//	  name: foo1
//	  namespace: default
//	spec:
//	  name: foo1
//	  info: "a bad thing"
//
// After reconciliation the object carries:
//
//	status:
//	  is_bad: true
//	  last_updated: "2026-01-01T00:00:00Z"
//
// +kubebuilder:object:generate=true
// +groupName=clux.dev
package v1
