package controllers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/productdesk/api/middleware"
	"github.com/angelmondragon/productdesk/api/views"
	"github.com/angelmondragon/productdesk/internal/auth"
	"github.com/angelmondragon/productdesk/internal/notify"
	"github.com/angelmondragon/productdesk/internal/session"
	"github.com/angelmondragon/productdesk/pkg/backend"
	"github.com/angelmondragon/productdesk/pkg/config"
	redisclient "github.com/angelmondragon/productdesk/pkg/redis"
)

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

type noSessions struct{}

func (noSessions) Load(context.Context, string) (*backend.Session, error) { return nil, nil }
func (noSessions) Save(context.Context, string, *backend.Session) error  { return nil }
func (noSessions) Delete(context.Context, string) error                  { return nil }

type env struct {
	pages    *Pages
	notifier *notify.Notifier
	tab      *session.Tab
}

func newEnv(t *testing.T, src fixedSource) *env {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	notifier, err := notify.NewNotifier(redisclient.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()})), 0, nil)
	require.NoError(t, err)
	renderer, err := views.NewRenderer()
	require.NoError(t, err)

	svc, err := backend.NewService(backend.ServiceParams{
		Backend:  config.BackendConfig{URL: "http://backend.invalid", AnonKey: "anon"},
		Sessions: noSessions{},
	})
	require.NoError(t, err)

	store := session.NewStore(src, nil)
	store.Start(context.Background())
	t.Cleanup(store.Close)

	return &env{
		pages:    NewPages(renderer, notifier, nil),
		notifier: notifier,
		tab:      &session.Tab{BrowserID: "browser-1", Client: svc.Client("browser-1"), Store: store},
	}
}

// within attaches the browser tab, as BrowserSession does.
func (e *env) within(r *http.Request) *http.Request {
	return r.WithContext(middleware.WithTab(r.Context(), e.tab))
}

func (e *env) flashes() []notify.Flash {
	return e.notifier.Drain(context.Background(), e.tab.BrowserID)
}

func formRequest(method, target string, values url.Values) *http.Request {
	req, _ := http.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func signedIn(email string) *backend.Session {
	return &backend.Session{AccessToken: "tok", User: &backend.User{ID: uuid.New(), Email: email}}
}

type stubGateway struct {
	result     auth.Result
	signOutErr error
	calls      []string
}

func (s *stubGateway) SignUp(_ context.Context, email, _ string) auth.Result {
	s.calls = append(s.calls, "sign_up:"+email)
	return s.result
}

func (s *stubGateway) SignIn(_ context.Context, email, _ string) auth.Result {
	s.calls = append(s.calls, "sign_in:"+email)
	return s.result
}

func (s *stubGateway) SignOut(context.Context) error {
	s.calls = append(s.calls, "sign_out")
	return s.signOutErr
}

func (s *stubGateway) factory() GatewayFor {
	return func(*session.Tab) AuthGateway { return s }
}
