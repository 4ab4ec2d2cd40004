package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/foo-controller/internal/reconciler"
)

type fakeStatuses []reconciler.ReconcileStatus

func (f fakeStatuses) GetAllStatuses() []reconciler.ReconcileStatus {
	return f
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	router := NewRouter(reconciler.NewMetrics(""))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "ok", response["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	metrics := reconciler.NewMetrics("")
	metrics.RecordEvent("Foo")
	metrics.RecordReconcileFailure("Foo", reconciler.ReasonConflict)

	router := NewRouter(metrics)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/plain")

	body := rr.Body.String()
	assert.Contains(t, body, `foo_controller_handled_events{kind="Foo"} 1`)
	assert.Contains(t, body, `foo_controller_reconcile_errors_total{kind="Foo",reason="conflict"} 1`)
	assert.Contains(t, body, "# TYPE foo_controller_handled_events counter")
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()
	statuses := fakeStatuses{
		{Kind: "Foo", Namespace: "ns", Name: "foo1", State: reconciler.StateSynced},
		{Kind: "Foo", Namespace: "ns", Name: "foo2", State: reconciler.StateError, LastError: "conflict", RetryCount: 2},
	}
	router := NewRouter(reconciler.NewMetrics(""), WithStatusSource(statuses))

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var got []reconciler.ReconcileStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, reconciler.StateError, got[1].State)
	assert.Equal(t, 2, got[1].RetryCount)
}

func TestStatusEndpointDisabled(t *testing.T) {
	t.Parallel()
	router := NewRouter(reconciler.NewMetrics(""))

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMiddlewaresApplied(t *testing.T) {
	t.Parallel()
	var seen []string
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = append(seen, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
	router := NewRouter(reconciler.NewMetrics(""), WithMiddlewares(mw))

	for _, path := range []string{"/health", "/metrics"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	}
	assert.Equal(t, []string{"/health", "/metrics"}, seen)
}
