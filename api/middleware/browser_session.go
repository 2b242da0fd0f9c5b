package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/productdesk/internal/session"
	authsession "github.com/angelmondragon/productdesk/pkg/auth/session"
	"github.com/angelmondragon/productdesk/pkg/config"
	pkgerrors "github.com/angelmondragon/productdesk/pkg/errors"
	"github.com/angelmondragon/productdesk/pkg/logger"
)

type browserSessions interface {
	Issue(ctx context.Context) (string, error)
	Touch(ctx context.Context, browserID string) (bool, error)
}

type tabRegistry interface {
	Acquire(ctx context.Context, browserID string) (*session.Tab, error)
	Release(browserID string)
}

// BrowserSession resolves the session cookie to a live tab, issuing a new browser session
// when the cookie is missing, malformed or expired. The cookie lifetime slides on every request.
// A tab still held for an expired cookie is torn down.
func BrowserSession(cfg config.SessionConfig, sessions browserSessions, tabs tabRegistry, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			browserID, expired, err := resolveBrowserID(ctx, r, cfg.CookieName, sessions)
			if err != nil {
				writeError(ctx, r, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "session unavailable"))
				return
			}
			if expired != "" {
				tabs.Release(expired)
			}
			setSessionCookie(w, cfg, browserID)

			tab, err := tabs.Acquire(ctx, browserID)
			if err != nil {
				writeError(ctx, r, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "session unavailable"))
				return
			}

			ctx = WithTab(ctx, tab)
			if logg != nil {
				ctx = logg.WithBrowserID(ctx, browserID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveBrowserID returns the browser id to serve and, when the cookie named an expired
// session, that stale id.
func resolveBrowserID(ctx context.Context, r *http.Request, cookieName string, sessions browserSessions) (string, string, error) {
	var expired string
	if cookie, err := r.Cookie(cookieName); err == nil && authsession.WellFormed(cookie.Value) {
		active, err := sessions.Touch(ctx, cookie.Value)
		if err != nil {
			return "", "", err
		}
		if active {
			return cookie.Value, "", nil
		}
		expired = cookie.Value
	}
	id, err := sessions.Issue(ctx)
	return id, expired, err
}

func setSessionCookie(w http.ResponseWriter, cfg config.SessionConfig, browserID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    browserID,
		Path:     "/",
		MaxAge:   int(cfg.TTL / time.Second),
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// requireTab is shared by the identity guard and controllers needing the browser's tab.
func requireTab(w http.ResponseWriter, r *http.Request) *session.Tab {
	tab := TabFromContext(r.Context())
	if tab == nil {
		writeError(r.Context(), r, w, pkgerrors.New(pkgerrors.CodeInternal, "browser session missing"))
	}
	return tab
}
