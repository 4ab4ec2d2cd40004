// Package server exposes the controller over HTTP.
//
// Routes:
//
//	GET /health   liveness, {"status":"ok"}; not request-logged
//	GET /metrics  metrics snapshot in the Prometheus text format
//	GET /status   JSON array of per-object reconcile statuses
//
// The router is built with chi; Server wraps it in an http.Server that shuts
// down gracefully when its context is cancelled.
package server
