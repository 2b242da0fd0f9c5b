package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/productdesk/pkg/backend"
	"github.com/angelmondragon/productdesk/pkg/logger"
	"github.com/angelmondragon/productdesk/pkg/metrics"
)

var (
	// ErrConfirmationPending means the account exists but no session was issued yet.
	ErrConfirmationPending = errors.New("e-mail confirmation pending")
	// ErrNoSession means the backend answered without a session and without an error.
	ErrNoSession = errors.New("backend returned no session")
)

const (
	opSignUp  = "sign_up"
	opSignIn  = "sign_in"
	opSignOut = "sign_out"

	outcomeSuccess = "success"
	outcomePending = "confirmation_pending"
	outcomeError   = "error"
	outcomePanic   = "panic"
)

// Result is what sign-up and sign-in produce. Exactly one of Session and Err is set.
type Result struct {
	Session *backend.Session
	User    *backend.User
	Err     error
}

// OK reports whether a session was established.
func (r Result) OK() bool {
	return r.Err == nil && r.Session != nil
}

type authClient interface {
	SignUp(ctx context.Context, creds backend.Credentials) (backend.AuthResponse, error)
	SignInWithPassword(ctx context.Context, creds backend.Credentials) (backend.AuthResponse, error)
	SignOut(ctx context.Context) error
}

// Gateway is the only caller of the backend's credential operations. Session state is not
// touched here: the session store learns about changes through its subscription.
type Gateway struct {
	auth    authClient
	metrics *metrics.AuthMetrics
	logg    *logger.Logger
}

func NewGateway(auth authClient, m *metrics.AuthMetrics, logg *logger.Logger) *Gateway {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Gateway{auth: auth, metrics: m, logg: logg}
}

// SignUp registers email/password.
func (g *Gateway) SignUp(ctx context.Context, email, password string) (res Result) {
	defer g.recoverResult(ctx, opSignUp, &res)

	resp, err := g.auth.SignUp(ctx, backend.Credentials{Email: email, Password: password})
	res = toResult(resp, err)
	if errors.Is(res.Err, ErrConfirmationPending) {
		g.record(ctx, opSignUp, outcomePending, nil)
		return res
	}
	g.record(ctx, opSignUp, outcomeOf(res.Err), res.Err)
	return res
}

// SignIn exchanges email/password for a session.
func (g *Gateway) SignIn(ctx context.Context, email, password string) (res Result) {
	defer g.recoverResult(ctx, opSignIn, &res)

	resp, err := g.auth.SignInWithPassword(ctx, backend.Credentials{Email: email, Password: password})
	res = toResult(resp, err)
	if errors.Is(res.Err, ErrConfirmationPending) {
		// sign-in never leaves a pending account behind
		res.Err = ErrNoSession
	}
	g.record(ctx, opSignIn, outcomeOf(res.Err), res.Err)
	return res
}

// SignOut ends the session. The local session is cleared even when an error is returned.
func (g *Gateway) SignOut(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sign out: unexpected failure: %v", r)
			g.record(ctx, opSignOut, outcomePanic, err)
		}
	}()

	err = g.auth.SignOut(ctx)
	g.record(ctx, opSignOut, outcomeOf(err), err)
	return err
}

func toResult(resp backend.AuthResponse, err error) Result {
	switch {
	case err != nil:
		return Result{Err: err}
	case resp.Session != nil:
		user := resp.User
		if user == nil {
			user = resp.Session.User
		}
		return Result{Session: resp.Session, User: user}
	case resp.User != nil:
		return Result{User: resp.User, Err: ErrConfirmationPending}
	default:
		return Result{Err: ErrNoSession}
	}
}

func (g *Gateway) recoverResult(ctx context.Context, op string, res *Result) {
	r := recover()
	if r == nil {
		return
	}
	*res = Result{Err: fmt.Errorf("%s: unexpected failure: %v", op, r)}
	g.record(ctx, op, outcomePanic, res.Err)
}

func (g *Gateway) record(ctx context.Context, op, outcome string, err error) {
	g.metrics.IncAttempt(op, outcome)
	logCtx := g.logg.WithFields(ctx, map[string]any{"op": op, "outcome": outcome})
	if err != nil {
		g.logg.Warn(g.logg.WithField(logCtx, "error", err.Error()), "auth.attempt_failed")
		return
	}
	g.logg.Info(logCtx, "auth.attempt")
}

func outcomeOf(err error) string {
	if err != nil {
		return outcomeError
	}
	return outcomeSuccess
}
