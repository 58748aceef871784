package app

import (
	"context"
	"fmt"

	"github.com/cozy-creator/bg-remover/internal/config"
	"github.com/cozy-creator/bg-remover/internal/db"
	"github.com/cozy-creator/bg-remover/internal/db/drivers"
	"github.com/cozy-creator/bg-remover/internal/db/repository"
	"github.com/cozy-creator/bg-remover/internal/services/archive"
	"github.com/cozy-creator/bg-remover/internal/services/background"
	"github.com/cozy-creator/bg-remover/internal/services/filestorage"
	"github.com/cozy-creator/bg-remover/internal/services/health"
	"github.com/cozy-creator/bg-remover/internal/services/segmentation"
	"github.com/cozy-creator/bg-remover/pkg/logger"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

type App struct {
	db         *bun.DB
	driver     drivers.Driver
	config     *config.Config
	ctx        context.Context
	cancelFunc context.CancelFunc
	segmenter  segmentation.Segmenter
	health     health.Status
	service    *background.Service
	storage    filestorage.FileStorage
	archiver   *archive.Archiver

	Logger *zap.Logger

	APIKeyRepository         repository.IAPIKeyRepository
	ProcessedImageRepository repository.IProcessedImageRepository
}

// Option funcs used to initialize the App struct
type OptionFunc func(app *App) error

func WithLogger(logger *zap.Logger) OptionFunc {
	return func(app *App) error {
		app.Logger = logger
		return nil
	}
}

// WithSegmenter replaces the backend selected by the config.
func WithSegmenter(segmenter segmentation.Segmenter) OptionFunc {
	return func(app *App) error {
		app.segmenter = segmenter
		return nil
	}
}

func WithDBInitialization() OptionFunc {
	return func(app *App) error {
		driver, err := db.NewConnection(app.ctx, app.config)
		if err != nil {
			return err
		}
		app.driver = driver
		app.db = driver.GetDB()

		if err := db.CreateTables(app.ctx, app.db); err != nil {
			return err
		}

		app.APIKeyRepository = repository.NewAPIKeyRepository(app.db)
		app.ProcessedImageRepository = repository.NewProcessedImageRepository(app.db)
		return nil
	}
}

// WithArchive stores every processed image. Records are only written when
// the database was initialized by an earlier option.
func WithArchive() OptionFunc {
	return func(app *App) error {
		storage, err := filestorage.NewFileStorage(app.ctx, app.config)
		if err != nil {
			return err
		}
		app.storage = storage

		var records archive.RecordCreator
		if app.ProcessedImageRepository != nil {
			records = app.ProcessedImageRepository
		}

		app.archiver = archive.NewArchiver(storage, records, app.config.Archive.Workers, app.Logger)
		return nil
	}
}

func NewApp(cfg *config.Config, options ...OptionFunc) (*App, error) {
	l, err := logger.InitLogger(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		ctx:        ctx,
		config:     cfg,
		Logger:     l,
		cancelFunc: cancel,
	}

	// Apply all options
	for _, opt := range options {
		if err := opt(app); err != nil {
			// Continue even if some options fail
			app.Logger.Error("failed to apply option", zap.Error(err))
		}
	}

	if app.segmenter == nil {
		segmenter, err := segmentation.NewSegmenter(cfg)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create segmenter: %w", err)
		}
		app.segmenter = segmenter
	}

	// The probe runs before the server starts, so handlers never observe an
	// unprobed backend.
	app.health = health.Probe(ctx, app.segmenter, app.Logger)

	serviceOptions := []background.OptionFunc{background.WithTimeout(cfg.Segmenter.Timeout)}
	if app.archiver != nil {
		serviceOptions = append(serviceOptions, background.WithArchiver(app.archiver))
	}
	app.service = background.NewService(*cfg.Limits, app.segmenter, app.health, app.Logger, serviceOptions...)

	return app, nil
}

func (app *App) Close() {
	app.cancelFunc()

	if app.archiver != nil {
		app.archiver.Stop()
	}

	if app.driver != nil {
		if err := app.driver.Close(); err != nil {
			app.Logger.Warn("failed to close database", zap.Error(err))
		}
	}

	_ = app.Logger.Sync()
}

func (app *App) Config() *config.Config {
	return app.config
}

func (app *App) Context() context.Context {
	return app.ctx
}

func (app *App) DB() *bun.DB {
	return app.db
}

func (app *App) Health() health.Status {
	return app.health
}

func (app *App) Service() *background.Service {
	return app.service
}

func (app *App) Storage() filestorage.FileStorage {
	return app.storage
}
