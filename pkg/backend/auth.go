package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/productdesk/pkg/logger"
)

// AuthStateListener receives every auth-state transition of one client.
type AuthStateListener func(event AuthChangeEvent, session *Session)

// Subscription is the handle returned by OnAuthStateChange.
type Subscription struct {
	id   uint64
	auth *AuthClient
	once sync.Once
}

// Unsubscribe detaches the listener. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.auth == nil {
		return
	}
	s.once.Do(func() { s.auth.removeListener(s.id) })
}

type listenerEntry struct {
	id uint64
	fn AuthStateListener
}

// AuthClient talks to the auth API on behalf of one browser session and keeps that
// browser's session persisted under key.
type AuthClient struct {
	rest    *restClient
	storage SessionStorage
	key     string
	secret  string
	margin  time.Duration
	now     func() time.Time
	logg    *logger.Logger

	// serializes session transitions so a refresh cannot interleave with sign-in/out
	stateMu sync.Mutex

	listenersMu sync.RWMutex
	listeners   []listenerEntry
	nextID      uint64
}

// GetSession returns the persisted session, refreshing it when it is about to expire.
func (c *AuthClient) GetSession(ctx context.Context) (*Session, error) {
	c.stateMu.Lock()
	session, event, err := c.loadLocked(ctx)
	c.stateMu.Unlock()

	if event != "" {
		c.emit(event, session)
	}
	return session, err
}

func (c *AuthClient) loadLocked(ctx context.Context) (*Session, AuthChangeEvent, error) {
	session, err := c.storage.Load(ctx, c.key)
	if err != nil {
		return nil, "", fmt.Errorf("loading session: %w", err)
	}
	if session == nil {
		return nil, "", nil
	}
	if !session.ExpiresWithin(c.now(), c.margin) {
		return session, "", nil
	}

	if session.RefreshToken == "" {
		if err := c.storage.Delete(ctx, c.key); err != nil {
			return nil, "", fmt.Errorf("clearing expired session: %w", err)
		}
		return nil, EventSignedOut, nil
	}

	refreshed, err := c.refresh(ctx, session.RefreshToken)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "backend.auth.refresh_rejected")
			if delErr := c.storage.Delete(ctx, c.key); delErr != nil {
				return nil, "", fmt.Errorf("clearing rejected session: %w", delErr)
			}
			return nil, EventSignedOut, nil
		}
		return nil, "", fmt.Errorf("refreshing session: %w", err)
	}
	if err := c.storage.Save(ctx, c.key, refreshed); err != nil {
		return nil, "", fmt.Errorf("persisting refreshed session: %w", err)
	}
	return refreshed, EventTokenRefreshed, nil
}

func (c *AuthClient) refresh(ctx context.Context, refreshToken string) (*Session, error) {
	raw, err := c.rest.do(ctx, restRequest{
		method:   http.MethodPost,
		path:     "/auth/v1/token",
		query:    url.Values{"grant_type": {"refresh_token"}},
		jsonBody: map[string]string{"refresh_token": refreshToken},
	})
	if err != nil {
		return nil, err
	}
	return c.decodeSession(raw)
}

// OnAuthStateChange registers listener for SIGNED_IN, SIGNED_OUT and TOKEN_REFRESHED.
// Listeners run synchronously, in registration order, after the new state is persisted.
func (c *AuthClient) OnAuthStateChange(listener AuthStateListener) *Subscription {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listenerEntry{id: id, fn: listener})
	return &Subscription{id: id, auth: c}
}

func (c *AuthClient) removeListener(id uint64) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	for i, entry := range c.listeners {
		if entry.id == id {
			c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
			return
		}
	}
}

func (c *AuthClient) emit(event AuthChangeEvent, session *Session) {
	c.listenersMu.RLock()
	snapshot := make([]listenerEntry, len(c.listeners))
	copy(snapshot, c.listeners)
	c.listenersMu.RUnlock()

	for _, entry := range snapshot {
		if !c.stillListening(entry.id) {
			continue
		}
		entry.fn(event, session)
	}
}

func (c *AuthClient) stillListening(id uint64) bool {
	c.listenersMu.RLock()
	defer c.listenersMu.RUnlock()
	for _, entry := range c.listeners {
		if entry.id == id {
			return true
		}
	}
	return false
}

// SignUp registers a new account. Projects with e-mail confirmation answer with a user
// and no session.
func (c *AuthClient) SignUp(ctx context.Context, creds Credentials) (AuthResponse, error) {
	creds = creds.normalized()
	raw, err := c.rest.do(ctx, restRequest{
		method:   http.MethodPost,
		path:     "/auth/v1/signup",
		jsonBody: creds,
	})
	if err != nil {
		return AuthResponse{}, err
	}

	var probe struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return AuthResponse{}, fmt.Errorf("decoding signup response: %w", err)
	}
	if probe.AccessToken == "" {
		var user User
		if err := json.Unmarshal(raw, &user); err != nil {
			return AuthResponse{}, fmt.Errorf("decoding signup user: %w", err)
		}
		if user.ID == uuid.Nil {
			return AuthResponse{}, nil
		}
		return AuthResponse{User: &user}, nil
	}

	session, err := c.decodeSession(raw)
	if err != nil {
		return AuthResponse{}, err
	}
	if err := c.establish(ctx, session); err != nil {
		return AuthResponse{}, err
	}
	return AuthResponse{User: session.User, Session: session}, nil
}

// SignInWithPassword exchanges credentials for a session.
func (c *AuthClient) SignInWithPassword(ctx context.Context, creds Credentials) (AuthResponse, error) {
	creds = creds.normalized()
	raw, err := c.rest.do(ctx, restRequest{
		method:   http.MethodPost,
		path:     "/auth/v1/token",
		query:    url.Values{"grant_type": {"password"}},
		jsonBody: creds,
	})
	if err != nil {
		return AuthResponse{}, err
	}

	session, err := c.decodeSession(raw)
	if err != nil {
		return AuthResponse{}, err
	}
	if err := c.establish(ctx, session); err != nil {
		return AuthResponse{}, err
	}
	return AuthResponse{User: session.User, Session: session}, nil
}

func (c *AuthClient) establish(ctx context.Context, session *Session) error {
	c.stateMu.Lock()
	err := c.storage.Save(ctx, c.key, session)
	c.stateMu.Unlock()
	if err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}
	c.emit(EventSignedIn, session)
	return nil
}

// SignOut revokes the session remotely and always clears it locally. A remote failure is
// returned after the local state has been cleared.
func (c *AuthClient) SignOut(ctx context.Context) error {
	c.stateMu.Lock()
	session, loadErr := c.storage.Load(ctx, c.key)

	var remoteErr error
	if loadErr == nil && session != nil && session.AccessToken != "" {
		_, remoteErr = c.rest.do(ctx, restRequest{
			method: http.MethodPost,
			path:   "/auth/v1/logout",
			query:  url.Values{"scope": {"global"}},
			token:  session.AccessToken,
		})
		var apiErr *APIError
		if errors.As(remoteErr, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusNotFound) {
			// already gone on the server side
			remoteErr = nil
		}
	}
	delErr := c.storage.Delete(ctx, c.key)
	c.stateMu.Unlock()

	c.emit(EventSignedOut, nil)

	switch {
	case remoteErr != nil:
		return remoteErr
	case loadErr != nil:
		return fmt.Errorf("loading session: %w", loadErr)
	case delErr != nil:
		return fmt.Errorf("clearing session: %w", delErr)
	}
	return nil
}

// AccessToken returns the bearer token for data calls, or "" to fall back to the anon key.
func (c *AuthClient) AccessToken(ctx context.Context) (string, error) {
	session, err := c.GetSession(ctx)
	if err != nil {
		return "", err
	}
	if session == nil {
		return "", nil
	}
	return session.AccessToken, nil
}

func (c *AuthClient) decodeSession(raw []byte) (*Session, error) {
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	if session.AccessToken == "" {
		return nil, fmt.Errorf("response carried no access token")
	}
	if err := session.normalize(c.secret, c.now()); err != nil {
		return nil, fmt.Errorf("reading access token: %w", err)
	}
	return &session, nil
}
