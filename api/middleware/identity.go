package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/productdesk/internal/guard"
	"github.com/angelmondragon/productdesk/pkg/logger"
)

// RequireIdentity lets only authenticated browsers through. Anonymous browsers are sent to
// the login page; while the session is still loading after wait, loading is served instead.
func RequireIdentity(wait time.Duration, loading http.Handler, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tab := requireTab(w, r)
			if tab == nil {
				return
			}

			waitCtx, cancel := context.WithTimeout(r.Context(), wait)
			decision := guard.Await(waitCtx, tab.Store)
			cancel()

			switch decision.State {
			case guard.StateLoading:
				loading.ServeHTTP(w, r)
			case guard.StateAnonymous:
				if logg != nil {
					logg.Debug(logg.WithField(r.Context(), "path", r.URL.Path), "guard.redirect_login")
				}
				Redirect(w, r, guard.LoginPath)
			default:
				snap := tab.Store.Snapshot()
				if snap.User == nil {
					// signed out between Await and here
					Redirect(w, r, guard.LoginPath)
					return
				}
				ctx := WithUserID(r.Context(), snap.User.ID.String())
				if logg != nil {
					ctx = logg.WithUserID(ctx, snap.User.ID.String())
				}
				next.ServeHTTP(w, r.WithContext(ctx))
			}
		})
	}
}

// Redirect replaces the current navigation: 302 for reads, 303 after a form post.
func Redirect(w http.ResponseWriter, r *http.Request, location string) {
	status := http.StatusFound
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		status = http.StatusSeeOther
	}
	http.Redirect(w, r, location, status)
}
