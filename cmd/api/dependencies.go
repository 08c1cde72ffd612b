package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	advisordomain "github.com/caixafacil/caixafacil/internal/domain/advisor"
	"github.com/caixafacil/caixafacil/internal/domain/categorization"
	importhandler "github.com/caixafacil/caixafacil/internal/domain/import/handler"
	importrepo "github.com/caixafacil/caixafacil/internal/domain/import/repository"
	importservice "github.com/caixafacil/caixafacil/internal/domain/import/service"
	syncdomain "github.com/caixafacil/caixafacil/internal/domain/sync"
	"github.com/caixafacil/caixafacil/internal/domain/transactions"
	"github.com/caixafacil/caixafacil/pkg/config"
	"github.com/caixafacil/caixafacil/pkg/cron"
	"github.com/caixafacil/caixafacil/pkg/db"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Repositories
	ImportRepo       *importrepo.Repository
	TransactionsRepo *transactions.Repository

	// Services
	CategorizationService *categorization.Service
	SuggestIndex          *categorization.SuggestIndex
	ImportService         *importservice.Service
	TransactionsService   *transactions.Service
	SyncService           *syncdomain.Service
	AdvisorService        *advisordomain.Service
	Scheduler             *cron.Scheduler

	// Handlers
	ImportHandler       *importhandler.ImportHandler
	TransactionsHandler *transactions.Handler
	CategoriesHandler   *categorization.Handler
	SyncHandler         *syncdomain.Handler
	AdvisorHandler      *advisordomain.Handler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	if err := deps.initServices(ctx); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	if err := deps.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	d.ImportRepo = importrepo.NewRepository(d.DB.Pool)
	d.TransactionsRepo = transactions.NewRepository(d.DB.Pool)

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices(ctx context.Context) error {
	classifier, err := categorization.NewGeminiClassifier(
		ctx, d.Config.Gemini.APIKey, d.Config.Gemini.Model, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to init classifier: %w", err)
	}
	d.CategorizationService = categorization.NewService(
		classifier, d.Config.Import.CategorizerBatchSize, d.Logger)

	d.SuggestIndex, err = categorization.NewSuggestIndex()
	if err != nil {
		return fmt.Errorf("failed to init suggest index: %w", err)
	}

	d.ImportService = importservice.NewService(
		d.ImportRepo,
		d.CategorizationService,
		d.Config.Import.MinColumnConfidence,
		d.Logger,
	)

	d.TransactionsService = transactions.NewService(d.TransactionsRepo, d.Logger).
		WithCategoryValidator(categorization.KnownCategory)

	d.AdvisorService, err = advisordomain.NewService(
		ctx, d.Config.Gemini.APIKey, d.Config.Gemini.Model, d.TransactionsService, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to init advisor: %w", err)
	}

	if d.Config.Pluggy.SyncEnabled() {
		pluggy := syncdomain.NewPluggyClient(syncdomain.PluggyConfig{
			BaseURL:      d.Config.Pluggy.BaseURL,
			ClientID:     d.Config.Pluggy.ClientID,
			ClientSecret: d.Config.Pluggy.ClientSecret,
		}, d.Logger)
		d.SyncService = syncdomain.NewService(pluggy, d.TransactionsRepo, d.ImportService, d.Logger)
		d.Scheduler = cron.NewScheduler(d.SyncService, d.Config.Pluggy.SyncSchedule, d.Logger)
	} else {
		d.Logger.Info("open banking sync disabled: no aggregator credentials")
	}

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() error {
	d.ImportHandler = importhandler.NewImportHandler(d.ImportService, 0, d.Logger)
	d.TransactionsHandler = transactions.NewHandler(d.TransactionsService, d.Logger)
	d.CategoriesHandler = categorization.NewHandler(d.SuggestIndex, d.Logger)
	d.AdvisorHandler = advisordomain.NewHandler(d.AdvisorService, d.Logger)
	if d.SyncService != nil {
		d.SyncHandler = syncdomain.NewHandler(d.SyncService, d.Logger)
	}

	d.Logger.Info("handlers initialized")
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.Scheduler != nil {
		<-d.Scheduler.Stop().Done()
	}
	if d.SuggestIndex != nil {
		if err := d.SuggestIndex.Close(); err != nil {
			d.Logger.Warn("failed to close suggest index", "error", err)
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
