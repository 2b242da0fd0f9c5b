package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/productdesk/api/controllers"
	"github.com/angelmondragon/productdesk/api/routes"
	"github.com/angelmondragon/productdesk/api/views"
	"github.com/angelmondragon/productdesk/internal/auth"
	"github.com/angelmondragon/productdesk/internal/notify"
	product "github.com/angelmondragon/productdesk/internal/products"
	"github.com/angelmondragon/productdesk/internal/session"
	authsession "github.com/angelmondragon/productdesk/pkg/auth/session"
	"github.com/angelmondragon/productdesk/pkg/backend"
	"github.com/angelmondragon/productdesk/pkg/config"
	"github.com/angelmondragon/productdesk/pkg/db"
	"github.com/angelmondragon/productdesk/pkg/instance"
	"github.com/angelmondragon/productdesk/pkg/logger"
	"github.com/angelmondragon/productdesk/pkg/metrics"
	"github.com/angelmondragon/productdesk/pkg/migrate"
	"github.com/angelmondragon/productdesk/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "web"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "web",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "web server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	var (
		dbClient *db.Client
		dbPinger controllers.Pinger
		tables   backend.TableDriver
		objects  backend.ObjectStorage
	)
	if cfg.Table.UsesDatabase() {
		dbClient, err = db.New(ctx, cfg.Table.Driver, cfg.DB, logg)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, dbClient.Close()) }()

		if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
			return err
		}
		dbPinger = dbClient
		tables = backend.NewGormTables(dbClient.DB())
	}

	if strings.EqualFold(cfg.Storage.Driver, config.StorageDriverS3) {
		s3, err := backend.NewS3Storage(cfg.Storage)
		if err != nil {
			return err
		}
		if err := s3.EnsureBucket(ctx, cfg.Storage.Bucket); err != nil {
			return err
		}
		objects = s3
	}

	sessionStorage, err := backend.NewRedisSessionStorage(redisClient, cfg.Session.TTL)
	if err != nil {
		return err
	}
	backendService, err := backend.NewService(backend.ServiceParams{
		Backend:  cfg.Backend,
		Storage:  cfg.Storage,
		Sessions: sessionStorage,
		Objects:  objects,
		Tables:   tables,
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	authMetrics := metrics.NewAuthMetrics(registry)

	tabs, err := session.NewRegistry(session.RegistryParams{
		Backend:  backendService,
		IdleTTL:  cfg.Session.IdleTTL,
		Interval: cfg.Session.JanitorInterval,
		Metrics:  metrics.NewSessionMetrics(registry),
		Logger:   logg,
	})
	if err != nil {
		return err
	}
	defer tabs.Close()
	go func() {
		_ = tabs.Run(ctx)
	}()

	browserSessions, err := authsession.NewManager(redisClient, cfg.Session)
	if err != nil {
		return err
	}
	notifier, err := notify.NewNotifier(redisClient, cfg.Session.FlashTTL, logg)
	if err != nil {
		return err
	}
	productService, err := product.NewService(product.ServiceParams{
		Locks:      redisClient,
		Storage:    cfg.Storage,
		Submission: cfg.Submission,
		Metrics:    metrics.NewSubmissionMetrics(registry),
		Logger:     logg,
	})
	if err != nil {
		return err
	}
	renderer, err := views.NewRenderer()
	if err != nil {
		return err
	}

	gateways := func(tab *session.Tab) controllers.AuthGateway {
		return auth.NewGateway(tab.Client.Auth(), authMetrics, logg)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbPinger,
			redisClient,
			routes.Sessions{Manager: browserSessions, Registry: tabs},
			controllers.NewPages(renderer, notifier, logg),
			gateways,
			productService,
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(logCtx, "starting web server")

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down web server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return multierr.Append(server.Shutdown(shutdownCtx), <-serveErr)
}
