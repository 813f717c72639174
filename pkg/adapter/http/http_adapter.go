// Package httpadapter serves the JSON API over HTTP with gin.
package httpadapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/marmos91/mozaichub/internal/logger"
	"github.com/marmos91/mozaichub/internal/ratelimiter"
	"github.com/marmos91/mozaichub/pkg/metrics"
	"github.com/marmos91/mozaichub/pkg/registry"
)

// HTTPAdapter implements the adapter.Adapter interface for the JSON API.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. http.Server.Shutdown closes the listener and waits for in-flight
//     requests, bounded by ShutdownTimeout (or the Stop context)
//  3. Serve returns nil
//
// Thread safety:
// All methods are safe for concurrent use. Shutdown is guarded by sync.Once
// so Stop() may be called any number of times.
type HTTPAdapter struct {
	config  Config
	tokens  *tokens
	metrics metrics.HTTPMetrics

	// authLimiter throttles the /auth routes; nil when disabled
	authLimiter *ratelimiter.Limiter

	// reg is injected by SetRegistry before Serve
	reg *registry.Registry

	engine *gin.Engine
	server *http.Server

	// port holds the bound port once the listener is up
	port atomic.Int32

	// ready is closed once the listener is bound
	ready chan struct{}

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates an HTTPAdapter in a stopped state. Call SetRegistry to
// inject the services, then Serve to start listening.
//
// Zero values in config are replaced with defaults. httpMetrics may be nil.
func New(config Config, tokenConfig TokenConfig, httpMetrics metrics.HTTPMetrics) (*HTTPAdapter, error) {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid HTTP config: %w", err)
	}

	tokenConfig.applyDefaults()
	if err := tokenConfig.validate(); err != nil {
		return nil, fmt.Errorf("invalid token config: %w", err)
	}

	if httpMetrics == nil {
		httpMetrics = metrics.NewNoopHTTPMetrics()
	}

	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	a := &HTTPAdapter{
		config:  config,
		tokens:  newTokens(tokenConfig),
		metrics: httpMetrics,
		ready:   make(chan struct{}),

		authLimiter: ratelimiter.New(config.AuthRateLimit.RequestsPerMinute, config.AuthRateLimit.Burst),
	}
	a.port.Store(int32(config.Port))
	a.engine = a.routes()
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      a.engine,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return a, nil
}

// SetRegistry injects the shared services.
func (a *HTTPAdapter) SetRegistry(reg *registry.Registry) {
	a.reg = reg
	logger.Debug("HTTP adapter registry configured")
}

// Handler returns the gin engine serving the API.
func (a *HTTPAdapter) Handler() http.Handler {
	return a.engine
}

// Serve binds the listener and serves until ctx is cancelled or Stop is
// called.
func (a *HTTPAdapter) Serve(ctx context.Context) error {
	if a.reg == nil {
		return fmt.Errorf("HTTP adapter started without a registry")
	}

	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to create HTTP listener on port %d: %w", a.config.Port, err)
	}
	a.port.Store(int32(ln.Addr().(*net.TCPAddr).Port))
	close(a.ready)

	logger.Info("HTTP server listening on port %d", a.Port())
	logger.Debug("HTTP config: read_timeout=%v write_timeout=%v idle_timeout=%v",
		a.config.ReadTimeout, a.config.WriteTimeout, a.config.IdleTimeout)

	errChan := make(chan error, 1)
	go func() {
		errChan <- a.server.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		logger.Info("HTTP shutdown signal received: %v", ctx.Err())
		// ctx is already cancelled and would abort the drain immediately
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
		defer cancel()
		if err := a.Stop(shutdownCtx); err != nil {
			return err
		}
		<-errChan
		return nil
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			// Stop was called directly
			return nil
		}
		return fmt.Errorf("HTTP server failed: %w", err)
	}
}

// Stop gracefully shuts the server down. Safe to call multiple times and
// concurrently with Serve.
func (a *HTTPAdapter) Stop(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		if err := a.server.Shutdown(ctx); err != nil {
			a.shutdownErr = fmt.Errorf("HTTP shutdown error: %w", err)
			logger.Warn("HTTP shutdown did not drain cleanly: %v", err)
			_ = a.server.Close()
			return
		}
		logger.Info("HTTP server stopped")
	})
	return a.shutdownErr
}

// Ready is closed once the listener is bound.
func (a *HTTPAdapter) Ready() <-chan struct{} {
	return a.ready
}

// Protocol returns "HTTP".
func (a *HTTPAdapter) Protocol() string {
	return "HTTP"
}

// Port returns the listening port.
func (a *HTTPAdapter) Port() int {
	return int(a.port.Load())
}
