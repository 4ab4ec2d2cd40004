package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/giantswarm/foo-controller/pkg/logging"
)

const (
	// DefaultAddr is the listen address of the HTTP surface.
	DefaultAddr = "0.0.0.0:8080"

	// DefaultReadHeaderTimeout is the default timeout for reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second
	// DefaultWriteTimeout is the default timeout for writing responses.
	DefaultWriteTimeout = 30 * time.Second
	// DefaultIdleTimeout is the default idle timeout for keepalive connections.
	DefaultIdleTimeout = 120 * time.Second

	defaultShutdownTimeout = 10 * time.Second
)

// Server serves a handler until its context is cancelled.
type Server struct {
	addr    string
	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

// New creates a server listening on addr.
func New(addr string, handler http.Handler) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Server{addr: addr, handler: handler, ready: make(chan struct{})}
}

// Addr returns the bound address once the server is listening, or the
// configured one before.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Ready is closed once the server accepts connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Run listens and serves until ctx is cancelled, then shuts down
// gracefully. A failure to listen is returned immediately.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	close(s.ready)

	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("HTTP", "Listening on %s", ln.Addr())
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	logging.Info("HTTP", "Shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
