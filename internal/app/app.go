// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bissquit/statuspage/internal/catalog"
	catalogpostgres "github.com/bissquit/statuspage/internal/catalog/postgres"
	"github.com/bissquit/statuspage/internal/config"
	"github.com/bissquit/statuspage/internal/identity"
	identitypostgres "github.com/bissquit/statuspage/internal/identity/postgres"
	"github.com/bissquit/statuspage/internal/incidents"
	incidentspostgres "github.com/bissquit/statuspage/internal/incidents/postgres"
	"github.com/bissquit/statuspage/internal/live"
	"github.com/bissquit/statuspage/internal/maintenance"
	"github.com/bissquit/statuspage/internal/notifications"
	"github.com/bissquit/statuspage/internal/notifications/mattermost"
	notificationspostgres "github.com/bissquit/statuspage/internal/notifications/postgres"
	"github.com/bissquit/statuspage/internal/notifications/slack"
	"github.com/bissquit/statuspage/internal/pkg/ctxlog"
	"github.com/bissquit/statuspage/internal/pkg/httputil"
	"github.com/bissquit/statuspage/internal/pkg/metrics"
	"github.com/bissquit/statuspage/internal/pkg/postgres"
	"github.com/bissquit/statuspage/internal/statuspage"
	"github.com/bissquit/statuspage/internal/version"
	"github.com/bissquit/statuspage/internal/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server

	hub                *live.Hub
	status             *statuspage.Service
	notificationWorker *notifications.Worker
	scheduler          *maintenance.Scheduler

	background context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		config:     cfg,
		logger:     logger,
		db:         db,
		hub:        live.NewHub(cfg.Live.BufferSize),
		background: cancel,
	}

	app.goBackground(func() { app.collectDBMetrics(ctx) })

	router, err := app.setupRouter(ctx)
	if err != nil {
		app.stopBackground()
		db.Close()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.stopBackground()

	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.db.Close()

	return errors.Join(errs...)
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Hub returns the change hub. Tests use it to observe broadcasts.
func (a *App) Hub() *live.Hub {
	return a.hub
}

// NotificationWorker returns the notification worker instance.
// Returns nil if notifications are disabled.
func (a *App) NotificationWorker() *notifications.Worker {
	return a.notificationWorker
}

// stopBackground stops workers, jobs and subscriptions. WebSocket
// connections are hijacked and not tracked by http.Server, so closing the
// hub is what ends them.
func (a *App) stopBackground() {
	if a.notificationWorker != nil {
		a.notificationWorker.Stop()
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	a.background()
	a.wg.Wait()
	if a.status != nil {
		a.status.Stop()
	}
	a.hub.Close()
}

func (a *App) goBackground(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

func (a *App) collectDBMetrics(ctx context.Context) {
	metrics.RecordDBPoolMetrics(a.db.Stat())

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db.Stat())
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) collectQueueMetrics(ctx context.Context, repo notifications.Repository) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats, err := repo.GetQueueStats(ctx)
			if err != nil {
				slog.Error("failed to get queue stats", "error", err)
				continue
			}
			notifications.RecordQueueStats(stats)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) setupRouter(ctx context.Context) (*chi.Mux, error) {
	cfg := a.config

	publisher := live.NewPGPublisher(a.db, cfg.Live.Channel)
	listener := live.NewListener(a.db, a.hub, live.ListenerConfig{
		Channel:        cfg.Live.Channel,
		ReconnectDelay: cfg.Live.ReconnectDelay,
	})
	a.goBackground(func() { listener.Run(ctx) })

	catalogService := catalog.NewService(catalogpostgres.NewRepository(a.db), publisher)

	notificationsRepo := notificationspostgres.NewRepository(a.db)
	notifier, err := a.setupNotifications(ctx, notificationsRepo, catalogService)
	if err != nil {
		return nil, err
	}

	incidentsService := incidents.NewService(incidentspostgres.NewRepository(a.db), publisher, notifier)

	identityRepo := identitypostgres.NewRepository(a.db)
	jwtAuth := identity.NewJWTAuthenticator(identity.JWTConfig{
		SecretKey:            cfg.JWT.SecretKey,
		AccessTokenDuration:  cfg.JWT.AccessTokenDuration,
		RefreshTokenDuration: cfg.JWT.RefreshTokenDuration,
	}, identityRepo)
	identityService := identity.NewService(identityRepo, jwtAuth)
	cookies := identity.CookieSettings{
		Secure:               cfg.Cookie.Secure,
		Domain:               cfg.Cookie.Domain,
		AccessTokenDuration:  cfg.JWT.AccessTokenDuration,
		RefreshTokenDuration: cfg.JWT.RefreshTokenDuration,
	}

	a.status = statuspage.NewService(catalogService, incidentsService, statuspage.Config{
		CacheTTL:     cfg.Cache.SummaryTTL,
		RecentWindow: time.Duration(cfg.Web.RecentIncidentDays) * 24 * time.Hour,
		RecentLimit:  cfg.Web.RecentIncidentLimit,
		ActiveLimit:  cfg.Web.ActiveIncidentLimit,
	})
	go a.status.Start()
	a.goBackground(func() { a.status.Watch(ctx, a.hub) })

	if cfg.Maintenance.Enabled {
		a.scheduler, err = maintenance.NewScheduler(cfg.Maintenance, identityService, notificationsRepo)
		if err != nil {
			return nil, fmt.Errorf("create maintenance scheduler: %w", err)
		}
		a.scheduler.Start()
	}

	webHandler, err := web.NewHandler(a.status, catalogService, incidentsService, identityService, web.Config{
		Cookies:       cookies,
		FlashDuration: cfg.Web.FlashDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("create web handler: %w", err)
	}

	identityHandler := identity.NewHandler(identityService, cookies)
	catalogHandler := catalog.NewHandler(catalogService)
	incidentsHandler := incidents.NewHandler(incidentsService)
	statusHandler := statuspage.NewHandler(a.status)
	liveHandler := live.NewHandler(a.hub, a.status, live.HandlerConfig{
		WriteTimeout:   cfg.Live.WriteTimeout,
		PingInterval:   cfg.Live.PingInterval,
		AllowedOrigins: cfg.Live.AllowedOrigins,
	})

	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		// Subscriptions are long-lived and stay outside the request timeout.
		liveHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			identityHandler.RegisterRoutes(r)
			catalogHandler.RegisterPublicRoutes(r)
			incidentsHandler.RegisterPublicRoutes(r)
			statusHandler.RegisterRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(httputil.AuthMiddleware(identityService))

				identityHandler.RegisterProtectedRoutes(r)
				catalogHandler.RegisterRoutes(r)
				incidentsHandler.RegisterRoutes(r)
			})
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/healthz", a.healthzHandler)
		r.Get("/readyz", a.readyzHandler)
		r.Get("/version", a.versionHandler)
		r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/x-yaml")
			http.ServeFile(w, r, "api/openapi/openapi.yaml")
		})
		r.Get("/docs", docsHandler)

		r.Mount("/", webHandler.Routes())
	})

	return r, nil
}

// setupNotifications builds the delivery pipeline. It returns a nil notifier
// when notifications are disabled.
func (a *App) setupNotifications(ctx context.Context, repo *notificationspostgres.Repository, names notifications.ServiceNameResolver) (incidents.Notifier, error) {
	cfg := a.config.Notifications

	slog.Info("notifications configured",
		"enabled", cfg.Enabled,
		"channels", len(cfg.Channels),
	)
	if !cfg.Enabled {
		return nil, nil
	}

	list := make([]notifications.Channel, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		list = append(list, notifications.Channel{
			Name:       ch.Name,
			Type:       notifications.ChannelType(ch.Type),
			WebhookURL: ch.WebhookURL,
		})
	}
	channels, err := notifications.NewChannels(list...)
	if err != nil {
		return nil, fmt.Errorf("configure notification channels: %w", err)
	}
	if channels.Len() == 0 {
		slog.Warn("notifications enabled but no channels configured")
	}

	dispatcher := notifications.NewDispatcher(
		slack.NewSender(slack.Config{
			Username:  cfg.Slack.Username,
			IconEmoji: cfg.Slack.IconEmoji,
			RateLimit: cfg.Slack.RateLimit,
			Timeout:   cfg.Slack.Timeout,
		}),
		mattermost.NewSender(mattermost.Config{
			Username: cfg.Mattermost.Username,
			IconURL:  cfg.Mattermost.IconURL,
			Timeout:  cfg.Mattermost.Timeout,
		}),
	)

	renderer, err := notifications.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("create notification renderer: %w", err)
	}

	a.notificationWorker = notifications.NewWorker(notifications.WorkerConfig{
		BatchSize:    cfg.Worker.BatchSize,
		PollInterval: cfg.Worker.PollInterval,
		Workers:      cfg.Worker.NumWorkers,
		MaxAttempts:  cfg.Retry.MaxAttempts,
		Backoff: notifications.Backoff{
			Initial:    cfg.Retry.InitialBackoff,
			Max:        cfg.Retry.MaxBackoff,
			Multiplier: cfg.Retry.BackoffMultiplier,
		},
	}, repo, channels, dispatcher, renderer)
	a.notificationWorker.Start(ctx)

	a.goBackground(func() { a.collectQueueMetrics(ctx, repo) })

	return notifications.NewNotifier(repo, channels, names, notifications.NotifierConfig{
		BaseURL:     cfg.BaseURL,
		MaxAttempts: cfg.Retry.MaxAttempts,
	}), nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, version.Get())
}

func docsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>StatusPage API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        SwaggerUIBundle({
            url: "/api/openapi.yaml",
            dom_id: '#swagger-ui',
            presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
            layout: "BaseLayout"
        });
    </script>
</body>
</html>`))
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
