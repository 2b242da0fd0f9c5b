package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/angelmondragon/productdesk/pkg/config"
	redisclient "github.com/angelmondragon/productdesk/pkg/redis"
)

const browserIDBytes = 32

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type sessionKeyer interface {
	BrowserSessionKey(browserID string) string
}

// Manager issues and tracks the opaque browser session ids carried in the session cookie.
type Manager struct {
	store sessionStore
	keyer sessionKeyer
	ttl   time.Duration
}

// NewManager constructs a browser session manager backed by Redis.
func NewManager(client *redisclient.Client, cfg config.SessionConfig) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	return &Manager{
		store: client,
		keyer: client,
		ttl:   cfg.TTL,
	}, nil
}

// TTL is the sliding lifetime of a browser session.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue creates a new browser session id.
func (m *Manager) Issue(ctx context.Context) (string, error) {
	id, err := generateBrowserID()
	if err != nil {
		return "", err
	}
	if err := m.store.Set(ctx, m.keyer.BrowserSessionKey(id), "1", m.ttl); err != nil {
		return "", err
	}
	return id, nil
}

// Touch extends a known browser session and reports whether it was still active.
func (m *Manager) Touch(ctx context.Context, browserID string) (bool, error) {
	if !WellFormed(browserID) {
		return false, nil
	}
	return m.store.Expire(ctx, m.keyer.BrowserSessionKey(browserID), m.ttl)
}

// WellFormed reports whether the value could have been produced by Issue.
func WellFormed(browserID string) bool {
	raw, err := base64.RawURLEncoding.DecodeString(browserID)
	return err == nil && len(raw) == browserIDBytes
}

func generateBrowserID() (string, error) {
	bytes := make([]byte, browserIDBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generating browser id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
