package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memcontent "github.com/marmos91/mozaichub/pkg/content/memory"
	"github.com/marmos91/mozaichub/pkg/metadata/memory"
	"github.com/marmos91/mozaichub/pkg/registry"
)

// fakeAdapter blocks in Serve until ctx is done, Stop is called or fail
// is closed.
type fakeAdapter struct {
	protocol string
	port     int
	failWith error

	mu      sync.Mutex
	reg     *registry.Registry
	stopped bool
	order   *[]string
	started chan struct{}
	fail    chan struct{}
	stopCh  chan struct{}
}

func newFakeAdapter(protocol string, port int, order *[]string) *fakeAdapter {
	return &fakeAdapter{
		protocol: protocol,
		port:     port,
		order:    order,
		started:  make(chan struct{}),
		fail:     make(chan struct{}),
		stopCh:   make(chan struct{}),
	}
}

func (f *fakeAdapter) Serve(ctx context.Context) error {
	close(f.started)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.fail:
		return f.failWith
	case <-f.stopCh:
		return nil
	}
}

func (f *fakeAdapter) SetRegistry(reg *registry.Registry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reg = reg
}

func (f *fakeAdapter) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.stopped {
		close(f.stopCh)
	}
	f.stopped = true
	if f.order != nil {
		*f.order = append(*f.order, f.protocol)
	}
	return nil
}

func (f *fakeAdapter) Protocol() string { return f.protocol }
func (f *fakeAdapter) Port() int        { return f.port }

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	contentStore, err := memcontent.NewMemoryContentStore(context.Background())
	require.NoError(t, err)

	reg, err := registry.New(memory.NewMemoryMetadataStore(), contentStore, nil, registry.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

func TestNew_PanicsWithoutRegistry(t *testing.T) {
	assert.Panics(t, func() { New(nil, Options{}) })
}

func TestAddAdapter(t *testing.T) {
	reg := newTestRegistry(t)
	srv := New(reg, Options{})

	a := newFakeAdapter("HTTP", 8080, nil)
	require.NoError(t, srv.AddAdapter(a))
	assert.Same(t, reg, a.reg)

	assert.ErrorContains(t, srv.AddAdapter(newFakeAdapter("HTTP", 9090, nil)), "already registered")
	assert.ErrorContains(t, srv.AddAdapter(newFakeAdapter("GRPC", 8080, nil)), "port 8080")
	assert.Error(t, srv.AddAdapter(nil))

	// Ephemeral ports never conflict
	require.NoError(t, srv.AddAdapter(newFakeAdapter("A", 0, nil)))
	require.NoError(t, srv.AddAdapter(newFakeAdapter("B", 0, nil)))

	assert.Len(t, srv.Adapters(), 3)
}

func TestServe_NoAdapters(t *testing.T) {
	srv := New(newTestRegistry(t), Options{})
	assert.Error(t, srv.Serve(context.Background()))
}

func TestServe_CancellationStopsInReverseOrder(t *testing.T) {
	var order []string
	srv := New(newTestRegistry(t), Options{StopTimeout: time.Second})

	first := newFakeAdapter("first", 1, &order)
	second := newFakeAdapter("second", 2, &order)
	require.NoError(t, srv.AddAdapter(first))
	require.NoError(t, srv.AddAdapter(second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	<-first.started
	<-second.started
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}

	assert.Equal(t, []string{"second", "first"}, order)
	assert.Error(t, srv.Serve(context.Background()), "second Serve must fail")
	assert.Error(t, srv.AddAdapter(newFakeAdapter("late", 3, nil)))
}

func TestServe_AdapterFailureStopsOthers(t *testing.T) {
	srv := New(newTestRegistry(t), Options{StopTimeout: time.Second})

	healthy := newFakeAdapter("healthy", 1, nil)
	broken := newFakeAdapter("broken", 2, nil)
	broken.failWith = errors.New("listener lost")
	require.NoError(t, srv.AddAdapter(healthy))
	require.NoError(t, srv.AddAdapter(broken))

	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background()) }()

	<-healthy.started
	<-broken.started
	close(broken.fail)

	select {
	case err := <-done:
		assert.ErrorContains(t, err, "broken adapter error")
		assert.ErrorContains(t, err, "listener lost")
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}

	healthy.mu.Lock()
	defer healthy.mu.Unlock()
	assert.True(t, healthy.stopped)
}
