package session

import (
	"context"
	"sync"

	"github.com/angelmondragon/productdesk/pkg/backend"
	"github.com/angelmondragon/productdesk/pkg/logger"
)

// Snapshot is an immutable view of who is signed in.
type Snapshot struct {
	Session *backend.Session
	User    *backend.User
	Loading bool
}

// Authenticated reports whether a user is known.
func (s Snapshot) Authenticated() bool {
	return !s.Loading && s.User != nil
}

// Source is the auth surface the store depends on. Subscribe returns the function that
// detaches listener.
type Source interface {
	GetSession(ctx context.Context) (*backend.Session, error)
	Subscribe(listener backend.AuthStateListener) (unsubscribe func())
}

type authSource struct {
	auth *backend.AuthClient
}

// AuthSource adapts a backend auth client to Source.
func AuthSource(auth *backend.AuthClient) Source {
	return authSource{auth: auth}
}

func (a authSource) GetSession(ctx context.Context) (*backend.Session, error) {
	return a.auth.GetSession(ctx)
}

func (a authSource) Subscribe(listener backend.AuthStateListener) func() {
	return a.auth.OnAuthStateChange(listener).Unsubscribe
}

// Store holds the session state of one browser session. It is written only by the
// auth-state subscription and by the single initial fetch.
type Store struct {
	source Source
	logg   *logger.Logger

	mu          sync.Mutex
	snap        Snapshot
	version     uint64
	started     bool
	closed      bool
	unsubscribe func()
	cancelFetch context.CancelFunc
	watchers    map[uint64]chan Snapshot
	nextWatch   uint64
}

func NewStore(source Source, logg *logger.Logger) *Store {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Store{
		source:   source,
		logg:     logg,
		snap:     Snapshot{Loading: true},
		watchers: map[uint64]chan Snapshot{},
	}
}

// Start subscribes to auth-state changes and kicks off the initial session fetch. Calls
// after the first are no-ops.
func (s *Store) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	fetchCtx, cancel := context.WithCancel(ctx)
	s.cancelFetch = cancel
	startVersion := s.version
	s.mu.Unlock()

	unsubscribe := s.source.Subscribe(s.onAuthChange)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		unsubscribe()
		cancel()
		return
	}
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	go func() {
		defer cancel()
		session, err := s.source.GetSession(fetchCtx)
		s.applyInitial(fetchCtx, startVersion, session, err)
	}()
}

func (s *Store) applyInitial(ctx context.Context, startVersion uint64, session *backend.Session, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.version != startVersion {
		s.logg.Debug(ctx, "session.initial_fetch_discarded")
		return
	}
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "session.initial_fetch_failed")
		session = nil
	}
	s.replaceLocked(session)
}

func (s *Store) onAuthChange(event backend.AuthChangeEvent, session *backend.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.logg.Debug(s.logg.WithField(context.Background(), "event", string(event)), "session.auth_event")
	s.replaceLocked(session)
}

func (s *Store) replaceLocked(session *backend.Session) {
	next := Snapshot{Session: session}
	if session != nil {
		next.User = session.User
	}
	s.snap = next
	s.version++
	for _, ch := range s.watchers {
		offer(ch, next)
	}
}

// offer replaces whatever is buffered in ch with snap.
func offer(ch chan Snapshot, snap Snapshot) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Watch returns a channel that first yields the current state and then the latest state
// after every change. The channel is closed by cancel or by Close.
func (s *Store) Watch() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if s.closed {
		ch <- s.snap
		close(ch)
		return ch, func() {}
	}
	ch <- s.snap
	s.nextWatch++
	id := s.nextWatch
	s.watchers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if w, ok := s.watchers[id]; ok {
				delete(s.watchers, id)
				close(w)
			}
		})
	}
}

// Close detaches from auth-state changes. Once it returns the state no longer changes.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubscribe := s.unsubscribe
	cancel := s.cancelFetch
	for id, ch := range s.watchers {
		delete(s.watchers, id)
		close(ch)
	}
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
}
