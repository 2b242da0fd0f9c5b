package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/angelmondragon/productdesk/api/middleware"
	"github.com/angelmondragon/productdesk/api/validators"
	"github.com/angelmondragon/productdesk/api/views"
	"github.com/angelmondragon/productdesk/internal/auth"
	"github.com/angelmondragon/productdesk/internal/guard"
	"github.com/angelmondragon/productdesk/internal/notify"
	"github.com/angelmondragon/productdesk/internal/session"
)

// AuthGateway is the credential surface the auth pages call.
type AuthGateway interface {
	SignUp(ctx context.Context, email, password string) auth.Result
	SignIn(ctx context.Context, email, password string) auth.Result
	SignOut(ctx context.Context) error
}

// GatewayFor returns the gateway bound to a browser session's backend client.
type GatewayFor func(tab *session.Tab) AuthGateway

func LoginPage(pages *Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pages.render(w, r, http.StatusOK, views.PageLogin, views.Page{Title: "Giriş"})
	}
}

// Login signs the browser in and sends it to the dashboard.
func Login(pages *Pages, gateways GatewayFor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tab := middleware.TabFromContext(r.Context())
		form, err := validators.ParseLoginForm(r)
		if err != nil {
			pages.render(w, r, http.StatusUnprocessableEntity, views.PageLogin, views.Page{
				Title:  "Giriş",
				Form:   form.Values(),
				Errors: validators.FieldErrors(err),
			})
			return
		}
		if tab == nil {
			pages.failure(r, notify.MsgGenericFailure)
			pages.render(w, r, http.StatusInternalServerError, views.PageLogin, views.Page{Title: "Giriş", Form: form.Values()})
			return
		}

		res := gateways(tab).SignIn(r.Context(), form.Email, form.Password)
		if !res.OK() {
			pages.failure(r, toastMessage(res.Err))
			pages.render(w, r, http.StatusOK, views.PageLogin, views.Page{Title: "Giriş", Form: form.Values()})
			return
		}

		pages.success(r, notify.MsgSignInSuccess)
		middleware.Redirect(w, r, guard.DashboardPath)
	}
}

func SignupPage(pages *Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pages.render(w, r, http.StatusOK, views.PageSignup, views.Page{Title: "Kayıt"})
	}
}

// Signup registers the account and sends the browser to the login page, whether or not
// e-mail confirmation is pending.
func Signup(pages *Pages, gateways GatewayFor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tab := middleware.TabFromContext(r.Context())
		form, err := validators.ParseSignupForm(r)
		if err != nil {
			pages.render(w, r, http.StatusUnprocessableEntity, views.PageSignup, views.Page{
				Title:  "Kayıt",
				Form:   form.Values(),
				Errors: validators.FieldErrors(err),
			})
			return
		}
		if tab == nil {
			pages.failure(r, notify.MsgGenericFailure)
			pages.render(w, r, http.StatusInternalServerError, views.PageSignup, views.Page{Title: "Kayıt", Form: form.Values()})
			return
		}

		res := gateways(tab).SignUp(r.Context(), form.Email, form.Password)
		if res.Err != nil && !errors.Is(res.Err, auth.ErrConfirmationPending) {
			pages.failure(r, toastMessage(res.Err))
			pages.render(w, r, http.StatusOK, views.PageSignup, views.Page{Title: "Kayıt", Form: form.Values()})
			return
		}

		pages.success(r, notify.MsgSignUpSuccess)
		middleware.Redirect(w, r, guard.LoginPath)
	}
}

// Logout ends the session. The browser lands on the login page either way.
func Logout(pages *Pages, gateways GatewayFor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tab := middleware.TabFromContext(r.Context())
		if tab == nil {
			middleware.Redirect(w, r, guard.LoginPath)
			return
		}
		if err := gateways(tab).SignOut(r.Context()); err != nil {
			pages.failure(r, notify.MsgSignOutFailure)
		} else {
			pages.success(r, notify.MsgSignOutSuccess)
		}
		middleware.Redirect(w, r, guard.LoginPath)
	}
}
