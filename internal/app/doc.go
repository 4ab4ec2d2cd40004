// Package app wires the controller together and runs it.
//
// Bootstrapping happens in two phases. NewApplication resolves the
// configuration, initializes logging and builds every component:
//
//   - the object store (Kubernetes, filesystem or in-memory)
//   - the tracer provider
//   - the reconcile manager with the Foo reconciler registered
//   - the HTTP server exposing /health, /metrics and /status
//
// Run then starts them under one errgroup. The initial list of every watched
// kind must succeed before the HTTP server starts; a failure there is fatal.
// Once the server is listening, systemd is told the service is ready. When
// the context is cancelled (SIGINT or SIGTERM in the serve command) the
// manager drains in-flight reconciles within its grace period and the server
// shuts down.
//
// Example usage:
//
//	cfg := app.NewConfig(false, "/etc/foo-controller/config.yaml")
//	application, err := app.NewApplication(ctx, cfg)
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	return application.Run(ctx)
package app
