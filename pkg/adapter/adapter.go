package adapter

import (
	"context"

	"github.com/marmos91/mozaichub/pkg/registry"
)

// Adapter is a transport that exposes the services of a registry to
// clients and is managed by the server orchestrator.
//
// Lifecycle:
//  1. Creation: the adapter is created with its transport configuration
//  2. Registry injection: SetRegistry() provides the shared services
//  3. Startup: Serve() starts listening and blocks until shutdown
//  4. Shutdown: Stop() initiates graceful shutdown bounded by a context
//
// Thread safety:
// Implementations must be safe for concurrent use. SetRegistry() is called
// once before Serve(), but Stop() may be called concurrently with Serve().
type Adapter interface {
	// Serve starts the transport and blocks until the context is cancelled
	// or an unrecoverable error occurs.
	//
	// When the context is cancelled, Serve must stop accepting requests,
	// drain in-flight ones and return nil or context.Canceled.
	//
	// If Serve returns before context cancellation, the orchestrator treats
	// it as fatal and stops every other adapter.
	Serve(ctx context.Context) error

	// SetRegistry injects the shared registry of stores and services.
	//
	// Called exactly once before Serve(), no synchronization needed.
	SetRegistry(reg *registry.Registry)

	// Stop initiates graceful shutdown. It must be idempotent and safe to
	// call concurrently with Serve(); ctx bounds the drain.
	Stop(ctx context.Context) error

	// Protocol returns the human-readable transport name for logging and
	// metrics (e.g. "HTTP").
	Protocol() string

	// Port returns the TCP port the adapter listens on. After Serve() has
	// bound its listener this is the real port, even when 0 was configured.
	Port() int
}
