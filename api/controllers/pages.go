package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/angelmondragon/productdesk/api/middleware"
	"github.com/angelmondragon/productdesk/api/views"
	"github.com/angelmondragon/productdesk/internal/notify"
	"github.com/angelmondragon/productdesk/pkg/backend"
	pkgerrors "github.com/angelmondragon/productdesk/pkg/errors"
	"github.com/angelmondragon/productdesk/pkg/logger"
)

type renderer interface {
	Render(w http.ResponseWriter, status int, name string, page views.Page) error
}

type flashStore interface {
	Success(ctx context.Context, browserID, message string)
	Error(ctx context.Context, browserID, message string)
	Drain(ctx context.Context, browserID string) []notify.Flash
}

// Pages renders HTML pages for the current browser session.
type Pages struct {
	views   renderer
	flashes flashStore
	logg    *logger.Logger
}

func NewPages(views renderer, flashes flashStore, logg *logger.Logger) *Pages {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Pages{views: views, flashes: flashes, logg: logg}
}

// render fills in the signed-in user and pending flashes, then writes the page.
func (p *Pages) render(w http.ResponseWriter, r *http.Request, status int, name string, page views.Page) {
	if tab := middleware.TabFromContext(r.Context()); tab != nil {
		if name != views.PageLoading {
			page.Flashes = p.flashes.Drain(r.Context(), tab.BrowserID)
		}
		if page.User == nil {
			page.User = tab.Store.Snapshot().User
		}
	}
	if err := p.views.Render(w, status, name, page); err != nil {
		p.logg.Error(r.Context(), "page.render_failed", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// Loading serves the placeholder page, reloading itself until the session has resolved.
func (p *Pages) Loading() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p.render(w, r, http.StatusOK, views.PageLoading, views.Page{Refresh: 1})
	}
}

func (p *Pages) success(r *http.Request, message string) {
	if tab := middleware.TabFromContext(r.Context()); tab != nil {
		p.flashes.Success(r.Context(), tab.BrowserID, message)
	}
}

func (p *Pages) failure(r *http.Request, message string) {
	if tab := middleware.TabFromContext(r.Context()); tab != nil {
		p.flashes.Error(r.Context(), tab.BrowserID, message)
	}
}

// toastMessage picks the text shown for a failed backend operation. A typed error already
// carries the message for its flow; a bare backend error shows what the backend said.
func toastMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		if typed.Code() != pkgerrors.CodeInternal && typed.Message() != "" {
			return typed.Message()
		}
		return notify.MsgGenericFailure
	}
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return notify.MsgGenericFailure
}
