// Package store is the controller's view of cluster state.
//
// A Store lists, watches and reads custom objects and writes their status
// through server-side apply. Three implementations exist:
//
//   - Kubernetes: backed by a controller-runtime client against an API server
//   - Memory: an in-process store with resource versions, watch history and
//     per-field status ownership, used for tests and as the base of Filesystem
//   - Filesystem: loads YAML manifests from a directory tree and keeps them in
//     sync with fsnotify, holding status in memory
//
// All implementations report failures with the same error taxonomy
// (NotFoundError, ConflictError, ValidationError and TransportError), so the
// reconciler can route them without knowing which backend it talks to.
package store
