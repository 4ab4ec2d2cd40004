package app

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"

	"github.com/giantswarm/foo-controller/internal/telemetry"
	"github.com/giantswarm/foo-controller/pkg/logging"
)

const telemetryShutdownTimeout = 5 * time.Second

// Run starts every component and blocks until ctx is cancelled or one of
// them fails. The manager's initial list must succeed before the HTTP
// server starts.
func (a *Application) Run(ctx context.Context) error {
	svc := a.services

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx, svc.TracerProvider); err != nil {
			logging.Warn("App", "Failed to flush traces: %v", err)
		}
		if svc.Memory != nil {
			svc.Memory.Close()
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	if svc.Filesystem != nil {
		g.Go(func() error {
			return svc.Filesystem.Run(gctx)
		})
	}

	if err := svc.Manager.Start(gctx); err != nil {
		cancel()
		_ = g.Wait()
		return fmt.Errorf("failed to start reconcile manager: %w", err)
	}

	g.Go(func() error {
		<-gctx.Done()
		notifySystemd(daemon.SdNotifyStopping)
		return svc.Manager.Stop()
	})

	g.Go(func() error {
		return svc.Server.Run(gctx)
	})

	g.Go(func() error {
		select {
		case <-svc.Server.Ready():
			logging.Info("App", "Controller ready, serving on %s", svc.Server.Addr())
			notifySystemd(daemon.SdNotifyReady)
		case <-gctx.Done():
		}
		return nil
	})

	return g.Wait()
}

// notifySystemd sends state to the service manager when running under
// systemd with Type=notify; it is a no-op otherwise.
func notifySystemd(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		logging.Warn("App", "Failed to notify systemd: %v", err)
		return
	}
	if sent {
		logging.Debug("App", "Notified systemd: %s", state)
	}
}
