package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"billing-backend/internal/billruns"
	"billing-backend/internal/blocking"
	"billing-backend/internal/creation"
	"billing-backend/internal/engine/current"
	"billing-backend/internal/engine/legacy"
	"billing-backend/internal/queue"
	"billing-backend/internal/regions"
	"billing-backend/internal/services/health"
	"billing-backend/internal/setup"
	"billing-backend/internal/setup/web"
	"billing-backend/internal/shared/auth"
	"billing-backend/internal/shared/config"
	"billing-backend/internal/shared/metrics"
	"billing-backend/internal/shared/server"
	"billing-backend/internal/shared/storage/db"
)

// errLegacyDisabled is returned when a request needs the legacy engine but
// the policy or configuration leaves it off.
var errLegacyDisabled = errors.New("legacy billing engine is not configured")

// App holds shared dependencies.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	DB              *sql.DB
	Queue           queue.Client
	BillRunsRepo    billruns.Repo
	RegionsRepo     regions.Repo
	SessionsService *setup.Service
	BillRunsService *billruns.Service
	BlockingService *blocking.Service
	Processor       *current.Processor
	Starter         *current.Starter
	Legacy          creation.LegacyEngine
	Dispatcher      *creation.Dispatcher
	BillRunsHandler *billruns.Handler
	RegionsHandler  *regions.Handler
	SetupHandler    *web.Handler
	HealthService   *health.Service
	closers         []io.Closer
}

// Build prepares shared dependencies and the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	secret, err := auth.ResolveSecret(cfg.Env, cfg.JWTSecret)
	if err != nil {
		return nil, err
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
	}
	if sqlDB != nil {
		app.closers = append(app.closers, sqlDB)
		if err := metrics.RegisterDB(sqlDB, "billing"); err != nil {
			log.Printf("bootstrap: register db metrics: %v", err)
		}
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Queue = queueClient
	if closer, ok := queueClient.(io.Closer); ok {
		app.closers = append(app.closers, closer)
	}

	legacyEngine, err := buildLegacy(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Legacy = legacyEngine

	buildServices(app)

	var pinger health.Pinger
	if app.DB != nil {
		pinger = app.DB
	}
	app.HealthService = health.NewService(pinger, cfg.QueueBackend)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:         app.Config,
		Secret:         secret,
		Health:         app.HealthService,
		RegionHandler:  app.RegionsHandler,
		BillRunHandler: app.BillRunsHandler,
		SetupHandler:   app.SetupHandler,
	})

	return app, nil
}

// Close releases the database and queue connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if config.IsDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.RuntimeOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if config.IsDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	switch cfg.QueueBackend {
	case queue.BackendSQS:
		client, err := queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.SQSQueueURL)
		if err != nil {
			return nil, err
		}
		return client, nil
	case queue.BackendRabbitMQ:
		client, err := queue.NewRabbitClient(cfg.RabbitMQURL, cfg.RabbitMQQueue)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, nil
	}
}

func buildLegacy(cfg config.Config) (creation.LegacyEngine, error) {
	if !cfg.Policy.LegacyEnabled || strings.TrimSpace(cfg.LegacyBillingURL) == "" {
		log.Printf("bootstrap: legacy billing engine disabled")
		return legacyUnavailable{}, nil
	}
	client, err := legacy.NewClient(legacy.Options{
		BaseURL:      cfg.LegacyBillingURL,
		TokenURL:     cfg.LegacyTokenURL,
		ClientID:     cfg.LegacyClientID,
		ClientSecret: cfg.LegacyClientSecret,
		Timeout:      cfg.LegacyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("legacy client: %w", err)
	}
	return client, nil
}

func buildServices(app *App) {
	var billRunRepo billruns.Repo
	var regionRepo regions.Repo
	var sessionRepo setup.Repo

	if app.DB != nil {
		billRunRepo = &billruns.PGRepo{DB: app.DB}
		regionRepo = &regions.PGRepo{DB: app.DB}
		sessionRepo = &setup.PGRepo{DB: app.DB}
	} else {
		memRegions := regions.NewMemoryRepo(regions.DevRegions()...)
		regionRepo = memRegions
		billRunRepo = billruns.NewMemoryRepo(memRegions.Names())
		sessionRepo = setup.NewMemoryRepo()
	}

	sessions := setup.NewService(sessionRepo)
	processor := &current.Processor{Repo: billRunRepo, Generator: current.NoBills{}}
	starter := &current.Starter{Repo: billRunRepo, Queue: app.Queue, Processor: processor}
	blockingSvc := blocking.NewService(billRunRepo, app.Config.Policy.TwoPartTariffBacklog)
	dispatcher := &creation.Dispatcher{
		Current:  starter,
		Legacy:   app.Legacy,
		Sessions: sessions,
	}
	billRunSvc := billruns.NewService(billRunRepo)

	app.BillRunsRepo = billRunRepo
	app.RegionsRepo = regionRepo
	app.SessionsService = sessions
	app.BillRunsService = billRunSvc
	app.BlockingService = blockingSvc
	app.Processor = processor
	app.Starter = starter
	app.Dispatcher = dispatcher
	app.BillRunsHandler = billruns.NewHandler(billRunSvc)
	app.RegionsHandler = regions.NewHandler(regionRepo)
	app.SetupHandler = web.NewHandler(sessions, blockingSvc, dispatcher, regionRepo)
}

type legacyUnavailable struct{}

func (legacyUnavailable) Request(ctx context.Context, batch legacy.Batch) error {
	_ = ctx
	return fmt.Errorf("%w: %s run for %d", errLegacyDisabled, batch.BatchType, batch.FinancialYearEnding)
}
