// Package registry wires the stores and domain services of a running
// instance together and hands them to transport adapters as one unit.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/marmos91/mozaichub/pkg/access"
	"github.com/marmos91/mozaichub/pkg/content"
	"github.com/marmos91/mozaichub/pkg/gc"
	"github.com/marmos91/mozaichub/pkg/identity"
	"github.com/marmos91/mozaichub/pkg/library"
	"github.com/marmos91/mozaichub/pkg/messaging"
	"github.com/marmos91/mozaichub/pkg/metadata"
	"github.com/marmos91/mozaichub/pkg/metrics"
	"github.com/marmos91/mozaichub/pkg/notify"
	"github.com/marmos91/mozaichub/pkg/quota"
	"github.com/marmos91/mozaichub/pkg/render"
	"github.com/marmos91/mozaichub/pkg/social"
)

// Registry holds every store and service of one instance.
//
// Example usage:
//
//	reg, err := registry.New(metaStore, contentStore, publisher, registry.Options{})
//	defer reg.Close()
//
//	user, err := reg.Identity.Authenticate(ctx, "alice", "secret")
//	feed, err := reg.Library.Feed(ctx, access.ViewerOf(user))
type Registry struct {
	Metadata  metadata.Store
	Content   content.ContentStore
	Publisher notify.Publisher
	Clock     clockwork.Clock

	Identity  *identity.Service
	Graph     *social.Graph
	Access    *access.Resolver
	Quota     *quota.Ledger
	Notify    *notify.Service
	Library   *library.Service
	Messaging *messaging.Service
	Sweeper   *gc.Sweeper

	closeOnce sync.Once
	closeErr  error
}

// Options tunes the services built by New. Zero values pick each
// service's defaults.
type Options struct {
	Clock    clockwork.Clock
	Hasher   identity.Hasher
	Renderer render.Renderer

	Identity identity.Config
	Library  library.Config
	Deletion gc.Config

	DeletionMetrics     metrics.DeletionMetrics
	QuotaMetrics        metrics.QuotaMetrics
	NotificationMetrics metrics.NotificationMetrics
}

// New builds the service graph on top of the given stores. publisher may be
// nil. The registry takes ownership of the stores and the publisher: Close
// releases them.
func New(metaStore metadata.Store, contentStore content.ContentStore, publisher notify.Publisher, opts Options) (*Registry, error) {
	if metaStore == nil {
		return nil, fmt.Errorf("cannot build registry without a metadata store")
	}
	if contentStore == nil {
		return nil, fmt.Errorf("cannot build registry without a content store")
	}
	if publisher == nil {
		publisher = notify.NoopPublisher{}
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Hasher == nil {
		opts.Hasher = identity.NewBcryptHasher(0)
	}
	if opts.Renderer == nil {
		opts.Renderer = render.NewMarkdown()
	}

	r := &Registry{
		Metadata:  metaStore,
		Content:   contentStore,
		Publisher: publisher,
		Clock:     opts.Clock,
	}

	// Leaves first: every service below only depends on services above it
	r.Sweeper = gc.NewSweeper(metaStore, contentStore, opts.Clock, opts.Deletion, opts.DeletionMetrics)
	r.Graph = social.NewGraph(metaStore, opts.Clock)
	r.Access = access.NewResolver(metaStore, opts.Clock)
	r.Quota = quota.NewLedger(metaStore, opts.QuotaMetrics)
	r.Notify = notify.NewService(metaStore, publisher, opts.Clock, opts.NotificationMetrics)
	r.Identity = identity.NewService(metaStore, opts.Hasher, r.Sweeper, opts.Clock, opts.Identity)
	r.Messaging = messaging.NewService(metaStore, r.Graph, r.Notify, opts.Clock)
	r.Library = library.New(library.Deps{
		Metadata: metaStore,
		Content:  contentStore,
		Access:   r.Access,
		Quota:    r.Quota,
		Notify:   r.Notify,
		Graph:    r.Graph,
		Sweeper:  r.Sweeper,
		Renderer: opts.Renderer,
		Clock:    opts.Clock,
	}, opts.Library)

	return r, nil
}

// Close releases the publisher and both stores. Safe to call multiple
// times; later calls return the first result.
func (r *Registry) Close() error {
	r.closeOnce.Do(func() {
		var errs []error
		if err := r.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
		if err := r.Content.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close content store: %w", err))
		}
		if err := r.Metadata.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close metadata store: %w", err))
		}
		r.closeErr = errors.Join(errs...)
	})
	return r.closeErr
}
