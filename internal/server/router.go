package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/giantswarm/foo-controller/internal/reconciler"
	"github.com/giantswarm/foo-controller/internal/store"
	"github.com/giantswarm/foo-controller/pkg/logging"
)

// MetricsSource provides the metric families served on /metrics.
type MetricsSource interface {
	Snapshot() []*dto.MetricFamily
}

// StatusSource provides the reconcile statuses served on /status.
type StatusSource interface {
	GetAllStatuses() []reconciler.ReconcileStatus
}

// ControlSource accepts manual reconcile requests and toggles kinds on the
// control routes.
type ControlSource interface {
	KindForName(name string) (store.Kind, bool)
	TriggerReconcile(key reconciler.Key) error
	EnableResourceType(kind string) error
	DisableResourceType(kind string) error
	GetEnabledResourceTypes() []string
}

// RouterOption configures the router.
type RouterOption func(*routerConfig)

type routerConfig struct {
	middlewares []func(http.Handler) http.Handler
	statuses    StatusSource
	control     ControlSource
}

// WithMiddlewares adds middleware applied to every route.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) RouterOption {
	return func(cfg *routerConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithStatusSource enables the /status route.
func WithStatusSource(s StatusSource) RouterOption {
	return func(cfg *routerConfig) {
		cfg.statuses = s
	}
}

// WithControlSource enables the /kinds and /reconcile routes.
func WithControlSource(c ControlSource) RouterOption {
	return func(cfg *routerConfig) {
		cfg.control = c
	}
}

// NewRouter creates the HTTP router serving health, metrics and status.
func NewRouter(metrics MetricsSource, opts ...RouterOption) *chi.Mux {
	cfg := &routerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.Get("/health", healthHandler)

	r.Group(func(r chi.Router) {
		r.Use(LoggingMiddleware)
		r.Get("/metrics", metricsHandler(metrics))
		if cfg.statuses != nil {
			r.Get("/status", statusHandler(cfg.statuses))
		}
		if cfg.control != nil {
			r.Get("/kinds", kindsHandler(cfg.control))
			r.Post("/kinds/{kind}/enable", toggleKindHandler(cfg.control, true))
			r.Post("/kinds/{kind}/disable", toggleKindHandler(cfg.control, false))
			r.Post("/reconcile/{kind}/{name}", reconcileHandler(cfg.control))
			r.Post("/reconcile/{kind}/{namespace}/{name}", reconcileHandler(cfg.control))
		}
	})

	return r
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logging.Info("HTTP", "%s %s %d %s %s",
			r.Method,
			r.URL.Path,
			ww.Status(),
			time.Since(start),
			middleware.GetReqID(r.Context()),
		)
	})
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func metricsHandler(metrics MetricsSource) http.HandlerFunc {
	format := expfmt.NewFormat(expfmt.TypeTextPlain)

	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", string(format))
		w.WriteHeader(http.StatusOK)

		enc := expfmt.NewEncoder(w, format)
		for _, mf := range metrics.Snapshot() {
			if err := enc.Encode(mf); err != nil {
				logging.Warn("HTTP", "Failed to encode metric family %s: %v", mf.GetName(), err)
				return
			}
		}
	}
}

func statusHandler(statuses StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, statuses.GetAllStatuses())
	}
}

func kindsHandler(control ControlSource) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]string{"enabled": control.GetEnabledResourceTypes()})
	}
}

func toggleKindHandler(control ControlSource, enable bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "kind")
		if _, ok := control.KindForName(name); !ok {
			writeError(w, http.StatusNotFound, "unknown kind "+name)
			return
		}

		toggle := control.DisableResourceType
		if enable {
			toggle = control.EnableResourceType
		}
		if err := toggle(name); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"enabled": control.GetEnabledResourceTypes()})
	}
}

func reconcileHandler(control ControlSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "kind")
		kind, ok := control.KindForName(name)
		if !ok {
			writeError(w, http.StatusNotFound, "unknown kind "+name)
			return
		}

		key := reconciler.Key{Kind: kind, Namespace: chi.URLParam(r, "namespace"), Name: chi.URLParam(r, "name")}
		if err := control.TriggerReconcile(key); err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"queued": key.String()})
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("HTTP", "Failed to encode response: %v", err)
	}
}
