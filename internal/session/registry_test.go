package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/productdesk/pkg/backend"
	"github.com/angelmondragon/productdesk/pkg/config"
	"github.com/angelmondragon/productdesk/pkg/metrics"
)

type emptySessions struct{}

func (emptySessions) Load(context.Context, string) (*backend.Session, error) { return nil, nil }
func (emptySessions) Save(context.Context, string, *backend.Session) error  { return nil }
func (emptySessions) Delete(context.Context, string) error                  { return nil }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRegistry(t *testing.T, clock *fakeClock) *Registry {
	t.Helper()
	svc, err := backend.NewService(backend.ServiceParams{
		Backend:  config.BackendConfig{URL: "http://backend.invalid", AnonKey: "anon"},
		Sessions: emptySessions{},
	})
	require.NoError(t, err)

	reg, err := NewRegistry(RegistryParams{
		Backend: svc,
		IdleTTL: 30 * time.Minute,
		Metrics: metrics.NewSessionMetrics(prometheus.NewRegistry()),
		Now:     clock.Now,
	})
	require.NoError(t, err)
	t.Cleanup(reg.Close)
	return reg
}

func TestRegistryAcquireReusesTab(t *testing.T) {
	reg := newTestRegistry(t, &fakeClock{now: time.Now()})

	a, err := reg.Acquire(context.Background(), "browser-a")
	require.NoError(t, err)
	again, err := reg.Acquire(context.Background(), "browser-a")
	require.NoError(t, err)
	require.Same(t, a, again)

	b, err := reg.Acquire(context.Background(), "browser-b")
	require.NoError(t, err)
	require.NotSame(t, a.Client, b.Client)
	require.Equal(t, 2, reg.Len())

	require.Eventually(t, func() bool { return !a.Store.Snapshot().Loading }, time.Second, 5*time.Millisecond)
	require.Nil(t, a.Store.Snapshot().User)
}

func TestRegistryRejectsBlankID(t *testing.T) {
	reg := newTestRegistry(t, &fakeClock{now: time.Now()})
	_, err := reg.Acquire(context.Background(), " ")
	require.Error(t, err)
}

func TestRegistryEvictsIdleTabs(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	reg := newTestRegistry(t, clock)

	stale, err := reg.Acquire(context.Background(), "stale")
	require.NoError(t, err)
	clock.Advance(20 * time.Minute)
	_, err = reg.Acquire(context.Background(), "fresh")
	require.NoError(t, err)
	clock.Advance(15 * time.Minute)

	require.Equal(t, 1, reg.EvictIdle())
	require.Equal(t, 1, reg.Len())

	ch, cancel := stale.Store.Watch()
	defer cancel()
	<-ch
	_, ok := <-ch
	require.False(t, ok, "evicted store must be closed")
}

func TestRegistryReleaseAndClose(t *testing.T) {
	reg := newTestRegistry(t, &fakeClock{now: time.Now()})

	_, err := reg.Acquire(context.Background(), "a")
	require.NoError(t, err)
	reg.Release("a")
	reg.Release("missing")
	require.Zero(t, reg.Len())

	_, err = reg.Acquire(context.Background(), "b")
	require.NoError(t, err)
	reg.Close()
	require.Zero(t, reg.Len())

	_, err = reg.Acquire(context.Background(), "c")
	require.Error(t, err)
}

func TestRegistryRunStopsWithContext(t *testing.T) {
	reg := newTestRegistry(t, &fakeClock{now: time.Now()})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reg.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestNewRegistryValidation(t *testing.T) {
	_, err := NewRegistry(RegistryParams{IdleTTL: time.Minute})
	require.Error(t, err)
}
