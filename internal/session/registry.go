package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/productdesk/pkg/backend"
	"github.com/angelmondragon/productdesk/pkg/logger"
	"github.com/angelmondragon/productdesk/pkg/metrics"
)

// Tab is the live state of one browser session: its backend client and its store.
type Tab struct {
	BrowserID string
	Client    *backend.Client
	Store     *Store

	lastSeen time.Time
}

type clientFactory interface {
	Client(browserID string) *backend.Client
}

// RegistryParams wires a Registry.
type RegistryParams struct {
	Backend  clientFactory
	IdleTTL  time.Duration
	Interval time.Duration
	Metrics  *metrics.SessionMetrics
	Logger   *logger.Logger
	Now      func() time.Time
}

// Registry owns the tabs of every browser session served by this process.
type Registry struct {
	backend  clientFactory
	idleTTL  time.Duration
	interval time.Duration
	metrics  *metrics.SessionMetrics
	logg     *logger.Logger
	now      func() time.Time

	mu     sync.Mutex
	tabs   map[string]*Tab
	closed bool
}

func NewRegistry(params RegistryParams) (*Registry, error) {
	if params.Backend == nil {
		return nil, fmt.Errorf("backend service is required")
	}
	if params.IdleTTL <= 0 {
		return nil, fmt.Errorf("idle ttl must be positive")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Registry{
		backend:  params.Backend,
		idleTTL:  params.IdleTTL,
		interval: interval,
		metrics:  params.Metrics,
		logg:     logg,
		now:      now,
		tabs:     map[string]*Tab{},
	}, nil
}

// Acquire returns the tab for browserID, creating and starting it on first use.
func (r *Registry) Acquire(ctx context.Context, browserID string) (*Tab, error) {
	if strings.TrimSpace(browserID) == "" {
		return nil, fmt.Errorf("browser id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, fmt.Errorf("session registry closed")
	}
	if tab, ok := r.tabs[browserID]; ok {
		tab.lastSeen = r.now()
		return tab, nil
	}

	client := r.backend.Client(browserID)
	store := NewStore(AuthSource(client.Auth()), r.logg)
	store.Start(context.WithoutCancel(ctx))

	tab := &Tab{
		BrowserID: browserID,
		Client:    client,
		Store:     store,
		lastSeen:  r.now(),
	}
	r.tabs[browserID] = tab
	r.metrics.SetActive(len(r.tabs))
	r.logg.Debug(r.logg.WithBrowserID(ctx, browserID), "session.tab_started")
	return tab, nil
}

// Release tears the tab down immediately.
func (r *Registry) Release(browserID string) {
	r.mu.Lock()
	tab, ok := r.tabs[browserID]
	if ok {
		delete(r.tabs, browserID)
		r.metrics.SetActive(len(r.tabs))
	}
	r.mu.Unlock()

	if ok {
		tab.Store.Close()
	}
}

// Len reports the number of live tabs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tabs)
}

// Run evicts idle tabs until ctx is done.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := r.EvictIdle(); n > 0 {
				r.logg.Info(r.logg.WithField(ctx, "evicted", n), "session.tabs_evicted")
			}
		}
	}
}

// EvictIdle closes every tab not acquired within the idle TTL and returns how many went.
func (r *Registry) EvictIdle() int {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	var stale []*Tab
	for id, tab := range r.tabs {
		if tab.lastSeen.Before(cutoff) {
			stale = append(stale, tab)
			delete(r.tabs, id)
		}
	}
	r.metrics.SetActive(len(r.tabs))
	r.mu.Unlock()

	for _, tab := range stale {
		tab.Store.Close()
	}
	r.metrics.AddEvicted(len(stale))
	return len(stale)
}

// Close tears every tab down and refuses further Acquire calls.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	tabs := r.tabs
	r.tabs = map[string]*Tab{}
	r.metrics.SetActive(0)
	r.mu.Unlock()

	for _, tab := range tabs {
		tab.Store.Close()
	}
}
