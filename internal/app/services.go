package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/foo-controller/internal/config"
	"github.com/giantswarm/foo-controller/internal/events"
	"github.com/giantswarm/foo-controller/internal/reconciler"
	"github.com/giantswarm/foo-controller/internal/server"
	"github.com/giantswarm/foo-controller/internal/store"
	"github.com/giantswarm/foo-controller/internal/telemetry"
	foov1 "github.com/giantswarm/foo-controller/pkg/apis/foo/v1"
	"github.com/giantswarm/foo-controller/pkg/logging"
)

// storeCheckTimeout bounds the startup probe of the store.
const storeCheckTimeout = 10 * time.Second

// Services holds every component built during bootstrap.
type Services struct {
	// InstanceID identifies this controller process in traces and logs.
	InstanceID string

	// Store is the object store the manager reads from and patches.
	Store store.Store

	// Filesystem is set when manifests are loaded from disk; its watcher
	// runs alongside the manager.
	Filesystem *store.Filesystem

	// Memory is the in-process store behind the filesystem and memory
	// backends, nil for Kubernetes.
	Memory *store.Memory

	// Events records Foo verdict changes as Kubernetes Events, or logs them
	// when there is no API server.
	Events *events.EventGenerator

	Metrics        *reconciler.Metrics
	TracerProvider trace.TracerProvider
	Manager        *reconciler.Manager
	Server         *server.Server
}

// InitializeServices builds the store, telemetry, manager and HTTP server
// from cfg.Settings. The store is probed once so a missing CRD or an
// unreachable API server is reported before anything starts.
func InitializeServices(ctx context.Context, cfg *Config) (*Services, error) {
	settings := cfg.Settings
	svc := &Services{InstanceID: uuid.NewString()}
	logging.Info("Bootstrap", "Controller instance %s (version %s)", svc.InstanceID, cfg.Version)

	if err := svc.initStore(ctx, settings.Store); err != nil {
		return nil, err
	}
	if err := checkStoreReady(ctx, svc.Store); err != nil {
		return nil, err
	}

	tp, err := telemetry.NewTracerProvider(ctx,
		telemetry.WithTracingConfig(&settings.Tracing),
		telemetry.WithTracerServiceVersion(cfg.Version),
		telemetry.WithTracerInstanceID(svc.InstanceID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer provider: %w", err)
	}
	svc.TracerProvider = tp

	svc.Metrics = reconciler.NewMetrics(settings.Metrics.Namespace)
	svc.Manager = reconciler.NewManager(svc.Store, managerConfig(settings),
		reconciler.WithMetrics(svc.Metrics),
		reconciler.WithTracerProvider(tp),
	)
	fooReconciler := reconciler.NewFooReconciler(svc.Store)
	fooReconciler.Events = svc.Events
	if err := svc.Manager.RegisterReconciler(fooReconciler); err != nil {
		return nil, fmt.Errorf("failed to register Foo reconciler: %w", err)
	}

	var routerOpts []server.RouterOption
	if settings.Server.EnableStatus {
		routerOpts = append(routerOpts, server.WithStatusSource(svc.Manager))
	}
	if settings.Server.EnableControl {
		routerOpts = append(routerOpts, server.WithControlSource(svc.Manager))
	}
	svc.Server = server.New(settings.Server.Addr, server.NewRouter(svc.Metrics, routerOpts...))

	return svc, nil
}

func (s *Services) initStore(ctx context.Context, sc config.StoreConfig) error {
	switch sc.Type {
	case config.StoreKubernetes:
		restConfig, err := store.GetRestConfig()
		if err != nil {
			return fmt.Errorf("failed to get Kubernetes config: %w", err)
		}
		k, err := store.NewKubernetes(restConfig, sc.Namespace)
		if err != nil {
			return err
		}
		s.Store = k
		s.Events = events.NewEventGenerator(events.NewKubernetesRecorder(k.Client()))
		logging.Info("Bootstrap", "Using Kubernetes store (host %s)", restConfig.Host)

	case config.StoreFilesystem, config.StoreMemory:
		mem, err := newValidatingMemory()
		if err != nil {
			return err
		}
		s.Memory = mem
		s.Store = mem
		s.Events = events.NewEventGenerator(events.NewLogRecorder())

		if sc.Type == config.StoreFilesystem {
			fs := store.NewFilesystem(sc.Path, []store.Kind{reconciler.FooKind}, store.WithMemory(mem))
			if err := fs.Load(ctx); err != nil {
				return fmt.Errorf("failed to load manifests from %s: %w", sc.Path, err)
			}
			s.Filesystem = fs
			s.Store = fs
			logging.Info("Bootstrap", "Using filesystem store at %s", sc.Path)
		} else {
			logging.Info("Bootstrap", "Using in-memory store")
		}

	default:
		return fmt.Errorf("unknown store type %q", sc.Type)
	}
	return nil
}

// newValidatingMemory returns a memory store that rejects Foo objects not
// matching the published schema.
func newValidatingMemory() (*store.Memory, error) {
	validator, err := store.NewSchemaValidator(foov1.CustomResourceDefinition(), foov1.GroupVersion.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to build Foo schema validator: %w", err)
	}
	return store.NewMemory(store.WithValidator(reconciler.FooKind, validator)), nil
}

// checkStoreReady lists Foo objects once.
func checkStoreReady(ctx context.Context, s store.Store) error {
	ctx, cancel := context.WithTimeout(ctx, storeCheckTimeout)
	defer cancel()

	if _, err := s.List(ctx, reconciler.FooKind); err != nil {
		return fmt.Errorf("store not ready for %s: %w", reconciler.FooKind, err)
	}
	return nil
}

func managerConfig(settings *config.Config) reconciler.ManagerConfig {
	resync := settings.Watch.ResyncPeriod
	if resync == 0 {
		// Zero disables resync here; the manager treats zero as "default".
		resync = -1
	}

	disabled := make(map[string]bool, len(settings.Controller.DisabledKinds))
	for _, kind := range settings.Controller.DisabledKinds {
		disabled[kind] = true
	}

	return reconciler.ManagerConfig{
		WorkerCount:            settings.Controller.Workers,
		DefaultRequeueInterval: settings.Controller.DefaultRequeue,
		ReconcileTimeout:       settings.Controller.ReconcileTimeout,
		GracePeriod:            settings.Controller.GracePeriod,
		ResyncPeriod:           resync,
		WatchMaxBackoff:        settings.Watch.MaxBackoff,
		ErrorPolicy:            errorPolicy(settings.Controller),
		DisabledResourceTypes:  disabled,
	}
}

func errorPolicy(cc config.ControllerConfig) reconciler.ErrorPolicy {
	if cc.ErrorPolicy == config.ErrorPolicyExponential {
		return reconciler.NewExponentialErrorPolicy(cc.ErrorRequeue, cc.ErrorMaxBackoff)
	}
	return reconciler.NewFixedErrorPolicy(cc.ErrorRequeue)
}

// OpenStore builds the configured store without starting anything, for
// one-shot commands.
func OpenStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	svc := &Services{}
	if err := svc.initStore(ctx, sc); err != nil {
		return nil, err
	}
	return svc.Store, nil
}
