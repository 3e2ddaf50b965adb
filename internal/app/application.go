// Package app wires the TradeFlow services together and manages their lifecycle.
package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"

	"github.com/tradeflow-ai/tradeflow/internal/auth"
	"github.com/tradeflow-ai/tradeflow/internal/config"
	"github.com/tradeflow-ai/tradeflow/internal/database"
	"github.com/tradeflow-ai/tradeflow/internal/google"
	"github.com/tradeflow-ai/tradeflow/internal/httpapi"
	"github.com/tradeflow-ai/tradeflow/internal/logging"
	"github.com/tradeflow-ai/tradeflow/internal/middleware"
	"github.com/tradeflow-ai/tradeflow/internal/platform/migrations"
	"github.com/tradeflow-ai/tradeflow/internal/quota"
	"github.com/tradeflow-ai/tradeflow/internal/scheduler"
	"github.com/tradeflow-ai/tradeflow/internal/upload"
)

// Scheduled job names.
const (
	JobQuotaReset       = "quota_reset"
	JobAuthCleanup      = "auth_cleanup"
	JobRateLimitCleanup = "ratelimit_cleanup"
)

const (
	jobTimeout       = 5 * time.Minute
	limiterIdleAfter = 10 * time.Minute
)

// Options tune New.
type Options struct {
	// Migrate applies pending schema migrations before serving.
	Migrate bool
}

// Application owns the HTTP server, the scheduler and the backing connections.
type Application struct {
	cfg *config.Config
	log *logging.Logger

	db    *sqlx.DB
	redis *redis.Client

	repo      database.RepositoryInterface
	limiter   *middleware.RateLimiter
	scheduler *scheduler.Scheduler
	handler   http.Handler
	server    *http.Server
}

// New connects to Postgres (and Redis when configured) and builds the application.
func New(ctx context.Context, cfg *config.Config, log *logging.Logger, opts Options) (*Application, error) {
	db, err := database.Open(ctx, database.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		QueryTimeout:    cfg.Database.QueryTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if opts.Migrate {
		if err := migrations.Up(db.DB); err != nil {
			db.Close()
			return nil, err
		}
		log.Info("database schema is up to date")
	}
	repo := database.NewRepository(db, cfg.Database.QueryTimeout)

	var states google.StateStore = google.NewDBStateStore(repo)
	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		rdb, err = google.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			db.Close()
			return nil, err
		}
		states = google.NewRedisStateStore(rdb)
	}

	a, err := build(cfg, log, repo, states)
	if err != nil {
		if rdb != nil {
			rdb.Close()
		}
		db.Close()
		return nil, err
	}
	a.db = db
	a.redis = rdb
	return a, nil
}

// build assembles services over an existing repository.
func build(cfg *config.Config, log *logging.Logger, repo database.RepositoryInterface, states google.StateStore) (*Application, error) {
	if log == nil {
		log = logging.NewNop()
	}

	tokens, err := auth.NewTokenManager(cfg.Auth.Secret)
	if err != nil {
		return nil, fmt.Errorf("configure tokens: %w", err)
	}
	authSvc := auth.NewService(repo, tokens, cfg.Auth.SessionTTL, log)
	quotaSvc := quota.NewService(repo, log)

	var googleSvc *google.Service
	if cfg.GoogleEnabled() {
		googleSvc, err = google.NewService(google.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			BaseURL:      cfg.Server.BaseURL,
		}, states, repo, log)
		if err != nil {
			return nil, fmt.Errorf("configure google: %w", err)
		}
	} else {
		log.Warn("GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set, Google connect disabled")
	}

	var limiter *middleware.RateLimiter
	if cfg.Limits.RateLimitRPS > 0 {
		limiter = middleware.NewRateLimiter(cfg.Limits.RateLimitRPS, cfg.Limits.RateLimitBurst, log)
	}

	handler := httpapi.NewHandler(httpapi.Deps{
		Repo:           repo,
		Auth:           authSvc,
		Quota:          quotaSvc,
		Uploads:        upload.NewProcessor(repo, log, cfg.Limits.UploadMaxBytes),
		Google:         googleSvc,
		Logger:         log,
		RateLimiter:    limiter,
		CookieName:     cfg.Auth.CookieName,
		SecureCookies:  secureBaseURL(cfg.Server.BaseURL),
		AllowedOrigins: cfg.Origins(),
		JSONMaxBytes:   cfg.Limits.JSONMaxBytes,
	})

	sched := scheduler.New(log, jobTimeout)
	if err := sched.Add(JobQuotaReset, cfg.Quota.ResetSchedule, quotaSvc.ResetMonthly); err != nil {
		return nil, err
	}
	if err := sched.Add(JobAuthCleanup, "@hourly", authSvc.PurgeExpired); err != nil {
		return nil, err
	}
	if limiter != nil {
		if err := sched.Add(JobRateLimitCleanup, "@every 5m", func(context.Context) error {
			if n := limiter.Cleanup(limiterIdleAfter); n > 0 {
				log.WithField("removed", n).Debug("pruned idle rate limiters")
			}
			return nil
		}); err != nil {
			return nil, err
		}
	}

	return &Application{
		cfg:       cfg,
		log:       log,
		repo:      repo,
		limiter:   limiter,
		scheduler: sched,
		handler:   handler,
		server: &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           handler,
			ReadTimeout:       cfg.Server.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.Server.WriteTimeout,
			IdleTimeout:       2 * time.Minute,
		},
	}, nil
}

func secureBaseURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme == "https"
}

// Handler returns the root HTTP handler.
func (a *Application) Handler() http.Handler {
	return a.handler
}

// Scheduler exposes the maintenance job scheduler.
func (a *Application) Scheduler() *scheduler.Scheduler {
	return a.scheduler
}

// Run starts the scheduler and the HTTP server and blocks until the context
// is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	a.scheduler.Start()

	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", a.server.Addr).Info("HTTP server listening")
		if err := a.server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
}

// Shutdown drains in-flight requests and releases the connections.
func (a *Application) Shutdown(ctx context.Context) error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := a.server.Shutdown(shutdownCtx)
	if stopErr := a.scheduler.Stop(shutdownCtx); stopErr != nil {
		a.log.WithError(stopErr).Warn("scheduler did not stop in time")
	}
	if a.redis != nil {
		if cerr := a.redis.Close(); cerr != nil {
			a.log.WithError(cerr).Warn("error closing redis connection")
		}
	}
	if a.db != nil {
		if cerr := a.db.Close(); cerr != nil {
			a.log.WithError(cerr).Warn("error closing database connection")
		}
	}
	return err
}
