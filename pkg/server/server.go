package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/mozaichub/internal/logger"
	"github.com/marmos91/mozaichub/pkg/adapter"
	"github.com/marmos91/mozaichub/pkg/metrics"
	"github.com/marmos91/mozaichub/pkg/registry"
)

// MozaicServer runs the transport adapters, the deletion sweeper and the
// optional metrics listener of one instance around a shared registry.
//
// Lifecycle:
//  1. Creation: New() with the registry
//  2. Registration: AddAdapter() for each transport
//  3. Startup: Serve() starts the sweeper, the metrics server and every
//     adapter concurrently
//  4. Shutdown: context cancellation or an adapter failure stops the
//     adapters in reverse order, then the sweeper and the metrics server
//
// Serve does not close the registry; the caller owns it.
//
// Example usage:
//
//	srv := server.New(reg, server.Options{StopTimeout: 30 * time.Second})
//	if err := srv.AddAdapter(httpAdapter); err != nil {
//	    return err
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
//	    return err
//	}
type MozaicServer struct {
	reg     *registry.Registry
	metrics *metrics.Server
	options Options

	// mu protects adapters and served
	mu       sync.Mutex
	adapters []adapter.Adapter
	served   bool
}

// Options tunes the orchestrator.
type Options struct {
	// StopTimeout bounds the shutdown of adapters and the sweeper
	// (default: 30s)
	StopTimeout time.Duration

	// Metrics, when set, is started and stopped with the server
	Metrics *metrics.Server
}

const defaultStopTimeout = 30 * time.Second

// New creates a server around reg. Panics if reg is nil.
func New(reg *registry.Registry, opts Options) *MozaicServer {
	if reg == nil {
		panic("registry cannot be nil")
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = defaultStopTimeout
	}
	return &MozaicServer{
		reg:      reg,
		metrics:  opts.Metrics,
		options:  opts,
		adapters: make([]adapter.Adapter, 0, 2),
	}
}

// AddAdapter injects the registry into a and registers it. Two adapters may
// not share a protocol or a fixed port.
func (s *MozaicServer) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		return fmt.Errorf("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		return fmt.Errorf("cannot add adapter after Serve() has been called")
	}

	protocol, port := a.Protocol(), a.Port()
	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if port != 0 && existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter", port, existing.Protocol())
		}
	}

	a.SetRegistry(s.reg)
	s.adapters = append(s.adapters, a)

	logger.Info("Registered %s adapter on port %d", protocol, port)
	return nil
}

// Adapters returns a snapshot of the registered adapters.
func (s *MozaicServer) Adapters() []adapter.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]adapter.Adapter, len(s.adapters))
	copy(out, s.adapters)
	return out
}

// Serve runs everything until ctx is cancelled or an adapter fails.
//
// Returns:
//   - ctx.Err() after a graceful shutdown triggered by cancellation
//   - the adapter error if an adapter stopped on its own
//   - an error if Serve was already called or no adapter is registered
func (s *MozaicServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return fmt.Errorf("Serve() has already been called on this server instance")
	}
	s.served = true
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	s.mu.Unlock()

	if len(adapters) == 0 {
		return fmt.Errorf("no adapters registered; call AddAdapter() before Serve()")
	}

	logger.Info("Starting MozaicHub with %d adapter(s)", len(adapters))

	// Step 1: background services
	s.reg.Sweeper.Start()

	metricsCtx, stopMetrics := context.WithCancel(context.Background())
	metricsDone := make(chan struct{})
	if s.metrics != nil {
		go func() {
			defer close(metricsDone)
			if err := s.metrics.Start(metricsCtx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	} else {
		close(metricsDone)
	}

	// Step 2: adapters
	errChan := make(chan adapterError, len(adapters))
	var wg sync.WaitGroup

	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			protocol := a.Protocol()
			logger.Info("Starting %s adapter on port %d", protocol, a.Port())

			err := a.Serve(ctx)
			switch {
			case err == nil:
				if ctx.Err() == nil {
					// Returned on its own: treat as a failure so the
					// rest of the server does not run half-up
					errChan <- adapterError{protocol: protocol, err: errors.New("adapter stopped unexpectedly")}
					return
				}
				logger.Info("%s adapter stopped", protocol)
			case errors.Is(err, context.Canceled) || ctx.Err() != nil:
				logger.Debug("%s adapter stopped gracefully", protocol)
			default:
				logger.Error("%s adapter failed: %v", protocol, err)
				errChan <- adapterError{protocol: protocol, err: err}
			}
		}(adp)
	}

	// Step 3: wait for a shutdown trigger
	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		shutdownErr = ctx.Err()
	case failed := <-errChan:
		logger.Error("Adapter %s failed: %v - initiating shutdown of all adapters", failed.protocol, failed.err)
		shutdownErr = fmt.Errorf("%s adapter error: %w", failed.protocol, failed.err)
	}

	// Step 4: shut down in reverse start order
	stopCtx, cancel := context.WithTimeout(context.Background(), s.options.StopTimeout)
	defer cancel()

	s.stopAllAdapters(stopCtx, adapters)
	wg.Wait()

	if err := s.reg.Sweeper.Stop(stopCtx); err != nil {
		logger.Warn("Deletion sweeper did not stop cleanly: %v", err)
	}

	stopMetrics()
	<-metricsDone

	logger.Info("MozaicHub stopped")
	return shutdownErr
}

// adapterError pairs an adapter protocol name with its error.
type adapterError struct {
	protocol string
	err      error
}

// stopAllAdapters signals every adapter to stop, last registered first.
// Errors are logged; the remaining adapters are still stopped.
func (s *MozaicServer) stopAllAdapters(ctx context.Context, adapters []adapter.Adapter) {
	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		if err := adp.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", adp.Protocol(), err)
		} else {
			logger.Debug("%s adapter stop signal sent", adp.Protocol())
		}
	}
}
