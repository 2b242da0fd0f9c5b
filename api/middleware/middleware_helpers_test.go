package middleware

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/productdesk/internal/session"
	"github.com/angelmondragon/productdesk/pkg/backend"
)

// fixedSource answers the initial fetch with session, or blocks until ctx ends when hold is set.
type fixedSource struct {
	session *backend.Session
	hold    bool
}

func (f fixedSource) GetSession(ctx context.Context) (*backend.Session, error) {
	if f.hold {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.session, nil
}

func (fixedSource) Subscribe(backend.AuthStateListener) func() { return func() {} }

func startedTab(t *testing.T, id string, src fixedSource) *session.Tab {
	t.Helper()
	store := session.NewStore(src, nil)
	store.Start(context.Background())
	t.Cleanup(store.Close)
	return &session.Tab{BrowserID: id, Store: store}
}

func signedIn(email string) *backend.Session {
	return &backend.Session{AccessToken: "tok", User: &backend.User{ID: uuid.New(), Email: email}}
}

type fakeRegistry struct {
	mu       sync.Mutex
	tabs     map[string]*session.Tab
	released []string
	t        *testing.T
}

func (f *fakeRegistry) Acquire(_ context.Context, id string) (*session.Tab, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tab, ok := f.tabs[id]; ok {
		return tab, nil
	}
	tab := startedTab(f.t, id, fixedSource{})
	f.tabs[id] = tab
	return tab, nil
}

func (f *fakeRegistry) Release(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tab, ok := f.tabs[id]; ok {
		tab.Store.Close()
		delete(f.tabs, id)
	}
	f.released = append(f.released, id)
}
