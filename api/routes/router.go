package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/productdesk/api/controllers"
	"github.com/angelmondragon/productdesk/api/middleware"
	product "github.com/angelmondragon/productdesk/internal/products"
	"github.com/angelmondragon/productdesk/internal/session"
	"github.com/angelmondragon/productdesk/pkg/config"
	"github.com/angelmondragon/productdesk/pkg/logger"
	"github.com/angelmondragon/productdesk/pkg/redis"
)

// Sessions is the browser session plumbing every page depends on.
type Sessions struct {
	Manager  browserSessions
	Registry tabRegistry
}

type browserSessions interface {
	Issue(ctx context.Context) (string, error)
	Touch(ctx context.Context, browserID string) (bool, error)
}

type tabRegistry interface {
	Acquire(ctx context.Context, browserID string) (*session.Tab, error)
	Release(browserID string)
}

type productSubmitter interface {
	Submit(ctx context.Context, sub product.Submission) (*product.Outcome, error)
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient *redis.Client,
	sessions Sessions,
	pages *controllers.Pages,
	gateways controllers.GatewayFor,
	productService productSubmitter,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	ready := map[string]controllers.Pinger{"redis": redisClient}
	if dbP != nil {
		ready["db"] = dbP
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, ready, logg))
	})
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	loginLimit := middleware.NewAuthRateLimitPolicy("login", cfg.AuthRateLimit.LoginWindow, cfg.AuthRateLimit.LoginIPLimit, cfg.AuthRateLimit.LoginEmailLimit)
	signupLimit := middleware.NewAuthRateLimitPolicy("signup", cfg.AuthRateLimit.SignupWindow, cfg.AuthRateLimit.SignupIPLimit, cfg.AuthRateLimit.SignupEmailLimit)

	r.Group(func(r chi.Router) {
		r.Use(middleware.BrowserSession(cfg.Session, sessions.Manager, sessions.Registry, logg))

		r.Route("/api/v1", func(r chi.Router) {
			r.Use(middleware.CORS(cfg.CORS))
			r.Get("/session", controllers.SessionSnapshot(logg))
		})

		r.Get("/", controllers.Landing(pages, cfg.App.LandingWait))
		r.Get("/login", controllers.LoginPage(pages))
		r.With(middleware.AuthRateLimit(loginLimit, redisClient, logg)).Post("/login", controllers.Login(pages, gateways))
		r.Get("/signup", controllers.SignupPage(pages))
		r.With(middleware.AuthRateLimit(signupLimit, redisClient, logg)).Post("/signup", controllers.Signup(pages, gateways))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireIdentity(cfg.App.LandingWait, pages.Loading(), logg))
			r.Get("/dashboard", controllers.Dashboard(pages))
			r.Post("/logout", controllers.Logout(pages, gateways))
			r.Get("/add-product", controllers.AddProductPage(pages))
			r.Post("/add-product", controllers.AddProduct(pages, productService, cfg))
			r.Get("/products", controllers.Products(pages))
		})
	})

	return r
}
