package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/productdesk/api/middleware"
	"github.com/angelmondragon/productdesk/api/responses"
	"github.com/angelmondragon/productdesk/api/views"
	"github.com/angelmondragon/productdesk/internal/guard"
	"github.com/angelmondragon/productdesk/pkg/backend"
	pkgerrors "github.com/angelmondragon/productdesk/pkg/errors"
	"github.com/angelmondragon/productdesk/pkg/logger"
)

// Landing sends the browser to the dashboard or the login page once its session has
// resolved, and serves the placeholder while it is still loading after wait.
func Landing(pages *Pages, wait time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tab := middleware.TabFromContext(r.Context())
		if tab == nil {
			pages.Loading().ServeHTTP(w, r)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), wait)
		decision := guard.Await(ctx, tab.Store)
		cancel()

		if decision.State == guard.StateLoading {
			pages.Loading().ServeHTTP(w, r)
			return
		}
		middleware.Redirect(w, r, decision.Location)
	}
}

func Dashboard(pages *Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pages.render(w, r, http.StatusOK, views.PageDashboard, views.Page{Title: "Panel"})
	}
}

// Products is the product list page. Listing itself is not served yet.
func Products(pages *Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pages.render(w, r, http.StatusOK, views.PageProducts, views.Page{Title: "Ürünler"})
	}
}

type sessionSnapshot struct {
	Loading bool          `json:"loading"`
	User    *backend.User `json:"user"`
}

// SessionSnapshot reports the browser's current session state as JSON.
func SessionSnapshot(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tab := middleware.TabFromContext(r.Context())
		if tab == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "browser session missing"))
			return
		}
		snap := tab.Store.Snapshot()
		responses.WriteSuccess(w, sessionSnapshot{Loading: snap.Loading, User: snap.User})
	}
}
