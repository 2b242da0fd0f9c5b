package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/productdesk/pkg/backend"
)

type fetchResult struct {
	session *backend.Session
	err     error
}

type stubSource struct {
	mu           sync.Mutex
	listener     backend.AuthStateListener
	unsubscribed int
	fetches      int
	results      chan fetchResult
}

func newStubSource() *stubSource {
	return &stubSource{results: make(chan fetchResult, 1)}
}

func (s *stubSource) GetSession(ctx context.Context) (*backend.Session, error) {
	s.mu.Lock()
	s.fetches++
	s.mu.Unlock()
	select {
	case r := <-s.results:
		return r.session, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *stubSource) Subscribe(listener backend.AuthStateListener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = listener
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.unsubscribed++
		s.listener = nil
	}
}

// fire delivers event the way the auth client does: only while subscribed.
func (s *stubSource) fire(event backend.AuthChangeEvent, session *backend.Session) {
	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()
	if l != nil {
		l(event, session)
	}
}

func (s *stubSource) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func testSession(email string) *backend.Session {
	return &backend.Session{
		AccessToken: "token-" + email,
		User:        &backend.User{ID: uuid.New(), Email: email},
	}
}

func waitFor(t *testing.T, ch <-chan Snapshot, pred func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				t.Fatal("watch channel closed")
			}
			if pred(snap) {
				return snap
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

func TestStoreStartsLoading(t *testing.T) {
	store := NewStore(newStubSource(), nil)
	snap := store.Snapshot()
	require.True(t, snap.Loading)
	require.Nil(t, snap.User)
	require.False(t, snap.Authenticated())
}

func TestStoreInitialFetchPopulates(t *testing.T) {
	src := newStubSource()
	store := NewStore(src, nil)
	t.Cleanup(store.Close)

	ch, cancel := store.Watch()
	defer cancel()
	store.Start(context.Background())

	sess := testSession("ayse@example.com")
	src.results <- fetchResult{session: sess}

	snap := waitFor(t, ch, func(s Snapshot) bool { return !s.Loading })
	require.Same(t, sess, snap.Session)
	require.Equal(t, "ayse@example.com", snap.User.Email)
	require.True(t, snap.Authenticated())
}

func TestStoreInitialFetchErrorMeansAnonymous(t *testing.T) {
	src := newStubSource()
	store := NewStore(src, nil)
	t.Cleanup(store.Close)

	ch, cancel := store.Watch()
	defer cancel()
	store.Start(context.Background())
	src.results <- fetchResult{err: errors.New("network down")}

	snap := waitFor(t, ch, func(s Snapshot) bool { return !s.Loading })
	require.Nil(t, snap.Session)
	require.Nil(t, snap.User)
}

func TestStoreEventBeatsInitialFetch(t *testing.T) {
	src := newStubSource()
	store := NewStore(src, nil)
	t.Cleanup(store.Close)

	ch, cancel := store.Watch()
	defer cancel()
	store.Start(context.Background())

	signedIn := testSession("yeni@example.com")
	src.fire(backend.EventSignedIn, signedIn)
	snap := waitFor(t, ch, func(s Snapshot) bool { return !s.Loading })
	require.Same(t, signedIn, snap.Session)

	// the stale initial result must not overwrite the event
	src.results <- fetchResult{session: nil}
	require.Eventually(t, func() bool { return src.fetchCount() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	require.Same(t, signedIn, store.Snapshot().Session)
}

func TestStoreEventsReplaceAtomically(t *testing.T) {
	src := newStubSource()
	store := NewStore(src, nil)
	t.Cleanup(store.Close)
	store.Start(context.Background())

	first := testSession("a@example.com")
	src.fire(backend.EventSignedIn, first)
	require.Equal(t, first.User, store.Snapshot().User)

	src.fire(backend.EventSignedOut, nil)
	snap := store.Snapshot()
	require.Nil(t, snap.Session)
	require.Nil(t, snap.User)
	require.False(t, snap.Loading)

	refreshed := testSession("a@example.com")
	src.fire(backend.EventTokenRefreshed, refreshed)
	require.Same(t, refreshed, store.Snapshot().Session)
}

func TestStoreStartIsIdempotent(t *testing.T) {
	src := newStubSource()
	store := NewStore(src, nil)
	t.Cleanup(store.Close)

	store.Start(context.Background())
	store.Start(context.Background())
	src.results <- fetchResult{}

	require.Eventually(t, func() bool { return !store.Snapshot().Loading }, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, src.fetchCount())
}

func TestStoreCloseStopsMutations(t *testing.T) {
	src := newStubSource()
	store := NewStore(src, nil)
	store.Start(context.Background())

	ch, _ := store.Watch()
	store.Close()
	store.Close()

	src.mu.Lock()
	require.Equal(t, 1, src.unsubscribed)
	src.mu.Unlock()

	src.fire(backend.EventSignedIn, testSession("late@example.com"))
	require.True(t, store.Snapshot().Loading)

	// drain the seeded value, then the channel must be closed
	<-ch
	_, ok := <-ch
	require.False(t, ok)
}

func TestStoreCloseDiscardsLateInitialFetch(t *testing.T) {
	src := newStubSource()
	store := NewStore(src, nil)
	store.Start(context.Background())
	store.Close()

	store.applyInitial(context.Background(), 0, testSession("late@example.com"), nil)
	require.True(t, store.Snapshot().Loading)
}

func TestWatchKeepsOnlyLatest(t *testing.T) {
	src := newStubSource()
	store := NewStore(src, nil)
	t.Cleanup(store.Close)
	store.Start(context.Background())

	ch, cancel := store.Watch()
	src.fire(backend.EventSignedIn, testSession("a@example.com"))
	last := testSession("b@example.com")
	src.fire(backend.EventTokenRefreshed, last)

	snap := <-ch
	require.Same(t, last, snap.Session)

	cancel()
	cancel()
	_, ok := <-ch
	require.False(t, ok)
}

func TestWatchAfterCloseYieldsFinalState(t *testing.T) {
	store := NewStore(newStubSource(), nil)
	store.Close()

	ch, cancel := store.Watch()
	defer cancel()
	snap, ok := <-ch
	require.True(t, ok)
	require.True(t, snap.Loading)
	_, ok = <-ch
	require.False(t, ok)
}
