// Package logging provides the structured logger used throughout
// foo-controller.
//
// It is built on log/slog. Every record carries a subsystem attribute, an
// optional error attribute and, for the *Context variants, the OpenTelemetry
// trace id of the span stored in the context, so log lines of one reconcile
// can be correlated with its trace.
//
// # Initialization
//
//	logging.Init(logging.LevelInfo, logging.FormatJSON, os.Stderr)
//
//	logging.Info("Bootstrap", "Starting controller %s", version)
//	logging.Debug("Config", "Loaded configuration from %s", path)
//	logging.Error("Store", err, "Failed to list %s", kind)
//	logging.InfoContext(ctx, "ReconcileManager", "Reconciled %s", key)
//
// Init also installs the handler as the controller-runtime logger and as the
// klog backend, so client-go and controller-runtime output is formatted the
// same way and honours the same level.
//
// Until Init is called all records are discarded.
package logging
