package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/chi-demo/app"

	"github.com/tendant/simple-auth/pkg/admin"
	"github.com/tendant/simple-auth/pkg/auth"
	"github.com/tendant/simple-auth/pkg/captcha"
	"github.com/tendant/simple-auth/pkg/config"
	"github.com/tendant/simple-auth/pkg/loginattempt"
	"github.com/tendant/simple-auth/pkg/metrics"
	"github.com/tendant/simple-auth/pkg/observability"
	"github.com/tendant/simple-auth/pkg/ratelimit"
	"github.com/tendant/simple-auth/pkg/router"
	"github.com/tendant/simple-auth/pkg/sweeper"
	"github.com/tendant/simple-auth/pkg/tokengenerator"
	"github.com/tendant/simple-auth/pkg/user"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := observability.InitSentry(cfg.SentryDSN, config.GetEnvOrDefault("SENTRY_ENVIRONMENT", "development")); err != nil {
		slog.Error("Failed to initialize Sentry", "error", err)
		os.Exit(1)
	}
	defer observability.FlushSentry()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lockout, _ := cfg.Login.ParseLockoutDuration()
	window, _ := cfg.Throttle.ParseWindow()
	captchaTTL, _ := cfg.ParseCaptchaTTL()
	sweepInterval, _ := cfg.ParseSweepInterval()

	// User store
	var repo user.Repository
	switch cfg.UserStore {
	case config.UserStorePostgres:
		pool, err := pgxpool.New(ctx, cfg.Database.ToDatabaseURL())
		if err != nil {
			slog.Error("Failed to connect to database", "host", cfg.Database.Host, "database", cfg.Database.Database, "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := user.Migrate(ctx, pool); err != nil {
			slog.Error("Failed to migrate user store", "error", err)
			os.Exit(1)
		}
		repo = user.NewPostgresRepository(pool)
		slog.Info("Using Postgres user store", "host", cfg.Database.Host, "database", cfg.Database.Database)
	default:
		repo = user.NewInMemoryUserRepository()
		slog.Warn("Using in-memory user store, accounts are lost on restart")
	}

	// Captcha store
	var (
		captchaStore  captcha.Store
		captchaMemory *captcha.MemoryStore
	)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			slog.Error("Failed to connect to Redis", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
		captchaStore = captcha.NewRedisStore(rdb, "")
		slog.Info("Using Redis captcha store", "addr", cfg.Redis.Addr)
	} else {
		captchaMemory = captcha.NewMemoryStore()
		captchaStore = captchaMemory
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Core components
	tokens := tokengenerator.NewJwtService(cfg.JWT.Secret,
		tokengenerator.WithIssuer(cfg.JWT.Issuer),
		tokengenerator.WithAccessTokenExpiry(cfg.JWT.AccessTTL()),
		tokengenerator.WithRefreshTokenExpiry(cfg.JWT.RefreshTTL()),
	)
	tracker := loginattempt.NewTracker(
		loginattempt.WithMaxAttempts(cfg.Login.MaxFailedAttempts),
		loginattempt.WithLockoutDuration(lockout),
	)
	throttle := ratelimit.NewThrottle(
		ratelimit.WithMaxRequests(cfg.Throttle.MaxRequests),
		ratelimit.WithWindow(window),
		ratelimit.WithAllowlist(cfg.Throttle.Allowlist...),
		ratelimit.WithDenylist(cfg.Throttle.Denylist...),
	)
	captchaService := captcha.NewService(captchaStore, captchaTTL)

	userService := user.NewService(repo, user.WithDefaultRole(user.Role{Name: cfg.Login.RegistrationDefaultRole}))
	bootstrapAdmin(ctx, userService, cfg)

	authOpts := []auth.Option{auth.WithKeyByIP(cfg.Login.KeyByIP), auth.WithMetrics(m)}
	if cfg.Login.CaptchaRequired {
		authOpts = append(authOpts, auth.WithCaptcha(captchaService))
	}
	authService := auth.NewService(tracker, tokens, auth.NewPasswordVerifier(repo), repo, authOpts...)

	rateLimit := ratelimit.NewMiddleware(&ratelimit.Config{
		GlobalEnabled:    cfg.RateLimit.GlobalEnabled,
		GlobalCapacity:   cfg.RateLimit.GlobalCapacity,
		GlobalRefillRate: cfg.RateLimit.GlobalRefillRate,
		IncludeHeaders:   cfg.RateLimit.IncludeHeaders,
	}, throttle,
		ratelimit.WithTrustedProxies(cfg.Throttle.TrustedProxies...),
		ratelimit.WithRejectHook(func(_ *http.Request, limitType string) {
			m.Throttled(limitType)
		}),
	)

	// Background cleanup
	tasks := []sweeper.Task{
		sweeper.Evictor("login_attempts", tracker.SweepExpired),
		sweeper.Evictor("throttle_counters", throttle.SweepExpired),
	}
	if captchaMemory != nil {
		tasks = append(tasks, sweeper.Evictor("captcha", captchaMemory.SweepExpired))
	}
	sw := sweeper.New(
		sweeper.WithInterval(sweepInterval),
		sweeper.WithTasks(tasks...),
		sweeper.WithErrorReporter(observability.ReportTaskError),
		sweeper.WithEvictionObserver(m.SweepEvicted),
	)
	sw.Start(ctx)
	defer sw.Stop()

	// HTTP
	r := chi.NewRouter()
	router.SetupRoutes(r, router.Config{
		AuthHandle:     auth.NewHandle(authService, auth.WithRegistration(userService, captchaService)),
		CaptchaHandle:  captcha.NewHandle(captchaService),
		AdminHandle:    admin.NewSecurityHandle(throttle, tracker),
		Tokens:         tokens,
		Users:          repo,
		RateLimit:      rateLimit,
		Metrics:        m,
		MetricsHandler: metrics.Handler(registry),
	})

	server := app.DefaultApp()
	app.RegisterHealthzRoutes(server.R)
	server.R.Mount("/", r)

	slog.Info("Auth server ready",
		"user_store", cfg.UserStore,
		"max_failed_attempts", cfg.Login.MaxFailedAttempts,
		"lockout", lockout,
		"throttle_max_requests", cfg.Throttle.MaxRequests,
		"throttle_window", window,
		"sweep_interval", sweepInterval,
	)
	server.Run()
}

// bootstrapAdmin creates the configured administrator unless it already exists
func bootstrapAdmin(ctx context.Context, users *user.Service, cfg config.Config) {
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		return
	}

	u, created, err := users.EnsureUser(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword,
		user.Role{Name: router.DefaultAdminRole},
		user.Role{Name: cfg.Login.RegistrationDefaultRole},
	)
	if err != nil {
		slog.Error("Failed to create admin user", "username", cfg.AdminUsername, "error", err)
		os.Exit(1)
	}
	if created {
		slog.Info("Admin user created", "username", u.Username, "user_id", u.ID)
	} else {
		slog.Info("Admin user already exists", "username", u.Username)
	}
}
