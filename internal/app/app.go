package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	"golang.org/x/time/rate"

	"github.com/teamwarden/teamwarden/external/browser"
	"github.com/teamwarden/teamwarden/external/nitrotype"
	"github.com/teamwarden/teamwarden/internal/config"
	"github.com/teamwarden/teamwarden/internal/domain/activity"
	"github.com/teamwarden/teamwarden/internal/domain/member"
	cacherepo "github.com/teamwarden/teamwarden/internal/infrastructure/repository/cache"
	"github.com/teamwarden/teamwarden/internal/infrastructure/repository/postgres"
	"github.com/teamwarden/teamwarden/internal/interfaces/httpapi"
	platformcache "github.com/teamwarden/teamwarden/internal/platform/cache"
	"github.com/teamwarden/teamwarden/internal/platform/logging"
	"github.com/teamwarden/teamwarden/internal/platform/pacing"
	"github.com/teamwarden/teamwarden/internal/platform/resilience"
	"github.com/teamwarden/teamwarden/internal/usecase"
)

// App holds the wired service and everything that needs an orderly
// shutdown.
type App struct {
	Server    *http.Server
	db        *sqlx.DB
	scheduler *usecase.RunScheduler
	logger    *logging.Logger
}

func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	dbURL := normalizeDBURL(cfg.DBURL, cfg.DBDisablePreparedBinary)
	db, err := otelsqlx.Connect("postgres", dbURL,
		otelsql.WithDBName(dbNameFromURL(cfg.DBURL)),
		otelsql.WithQueryFormatter(formatDBQueryForTrace),
	)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	app, err := build(cfg, logger, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return app, nil
}

func build(cfg config.Config, logger *logging.Logger, db *sqlx.DB) (*App, error) {
	memberRepo := postgres.NewMemberRepository(db)
	activityRepo := postgres.NewActivityRepository(db)
	runRepo := postgres.NewRunStatusRepository(db)

	var (
		members member.Repository   = memberRepo
		batches usecase.BatchWriter = memberRepo
	)
	if cfg.CacheEnabled {
		store := platformcache.NewStore(cfg.CacheTTL)
		members = cacherepo.NewMemberRepository(memberRepo, store)
		batches = cacherepo.NewBatchWriter(memberRepo, store)
	}
	var activities activity.Repository = activityRepo

	authClient := nitrotype.NewClient(nitrotype.ClientConfig{
		AuthURL:    cfg.NTAuthURL,
		Timeout:    cfg.NTTimeout,
		MaxRetries: cfg.NTMaxRetries,
		Logger:     logger,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.NTCircuitFailureCount,
			OpenTimeout:      cfg.NTCircuitOpenTimeout,
		},
	})

	browsers := browser.NewFactory(browser.Config{
		Headless:     cfg.BrowserHeadless,
		CookieDomain: cfg.BrowserCookieDomain,
		UserAgent:    cfg.BrowserUserAgent,
	}, logger)

	pacer, err := pacing.NewPacer(cfg.LoginPacingMin, cfg.LoginPacingMax)
	if err != nil {
		return nil, fmt.Errorf("build pacer: %w", err)
	}

	sessions, err := usecase.NewSessionService(authClient, browsers, pacer, usecase.SessionServiceConfig{
		LoginURL:     cfg.NTLoginURL,
		VerifyURL:    cfg.NTTeamURL,
		LoginTimeout: cfg.LoginTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("build session service: %w", err)
	}

	reconciler, err := usecase.NewReconcileService(cfg.MemberGracePeriod, logger)
	if err != nil {
		return nil, fmt.Errorf("build reconcile service: %w", err)
	}

	ladder := make([]int, 0, len(cfg.RewardMilestones))
	for _, threshold := range cfg.RewardMilestones {
		ladder = append(ladder, int(threshold))
	}
	milestones, err := usecase.NewMilestoneService(ladder, int(cfg.RewardRateDivisor))
	if err != nil {
		return nil, fmt.Errorf("build milestone service: %w", err)
	}

	checker, err := usecase.NewCheckService(sessions, reconciler, milestones, members, activities, batches, runRepo, usecase.CheckServiceConfig{
		Credentials: usecase.Credentials{
			Username: cfg.NTUsername,
			Password: cfg.NTPassword,
		},
		TeamURL:      cfg.NTTeamURL,
		FetchTimeout: cfg.FetchTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("build check service: %w", err)
	}

	scheduler, err := usecase.NewRunScheduler(checker, runRepo, cfg.RunTimeout, logger)
	if err != nil {
		return nil, fmt.Errorf("build run scheduler: %w", err)
	}

	dashboard, err := usecase.NewDashboardService(members, activities, runRepo, logger)
	if err != nil {
		return nil, fmt.Errorf("build dashboard service: %w", err)
	}

	handler, err := httpapi.NewHandler(dashboard, scheduler, logger)
	if err != nil {
		return nil, fmt.Errorf("build handler: %w", err)
	}

	var triggerLimiter *rate.Limiter
	if cfg.TriggerMinInterval > 0 {
		triggerLimiter = rate.NewLimiter(rate.Every(cfg.TriggerMinInterval), 1)
	}

	router := httpapi.NewRouter(handler, logger, cfg.CORSAllowedOrigins, cfg.AdminToken, triggerLimiter)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	if server.Addr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	return &App{
		Server:    server,
		db:        db,
		scheduler: scheduler,
		logger:    logger,
	}, nil
}

func (a *App) Shutdown(ctx context.Context) error {
	if a.scheduler != nil {
		a.scheduler.Close()
	}

	var firstErr error
	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
