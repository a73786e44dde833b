package container

import (
	"context"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"extruder/adapters/charts"
	"extruder/adapters/excel"
	"extruder/adapters/memory"
	"extruder/adapters/postgres"
	"extruder/adapters/redisrepo"
	"extruder/adapters/storage"
	"extruder/internal"
	"extruder/internal/catalog"
	"extruder/internal/config"
	"extruder/internal/errors"
	"extruder/internal/migration"
	"extruder/internal/ops"
	engine "extruder/internal/spc"
	"extruder/ports"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB    *sqlx.DB
	Redis *redisrepo.DatasetRepository
	Store ports.ObjectBucket

	// Repositories (data access layer)
	DatasetRepo ports.DatasetRepository

	// Services
	Reader   *excel.DataReader
	Catalog  *catalog.Service
	Analyzer *engine.Analyzer
	Charts   *charts.Renderer
}

// New creates a new dependency injection container
func New(cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Container{Config: cfg, Logger: logger}, nil
}

// Init opens storage and the catalog database and builds the services.
// The catalog goes to Postgres, then Redis, then memory, depending on
// which URL is configured.
func (c *Container) Init(ctx context.Context) error {
	store, err := storage.Open(ctx, c.Config.Storage)
	if err != nil {
		return errors.Wrap(err, "failed to open object storage")
	}
	c.Store = store

	if c.Config.Database.URL != "" {
		db, err := initDatabase(ctx, c.Config.Database.URL)
		if err != nil {
			return err
		}
		if err := c.InitWithDatabase(ctx, db); err != nil {
			return err
		}
	} else if c.Config.Database.RedisURL != "" {
		repo, err := redisrepo.Open(ctx, c.Config.Database.RedisURL)
		if err != nil {
			return errors.ExternalServiceError("redis", err)
		}
		c.Redis = repo
		c.DatasetRepo = repo
		log.Printf("Dataset catalog stored in Redis")
	} else {
		log.Printf("DATABASE_URL not set; keeping the dataset catalog in memory")
		c.DatasetRepo = memory.NewDatasetRepository()
	}

	c.initServices()
	return nil
}

// InitWithDatabase migrates the schema and wires the Postgres repositories
func (c *Container) InitWithDatabase(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}
	c.DB = db

	runner := migration.NewRunner()
	if err := runner.Run(ctx, db); err != nil {
		return errors.Wrap(err, "database migration failed")
	}
	log.Printf("Database schema at version %s", runner.Version())

	c.DatasetRepo = postgres.NewDatasetRepository(db)
	return nil
}

func (c *Container) initServices() {
	c.Reader = excel.NewDataReader(excel.ReaderConfig{
		TargetRows: c.Config.Analysis.TargetDataPoints,
		Comma:      ',',
	})
	c.Catalog = catalog.NewService(c.Store, c.DatasetRepo, c.Reader, catalog.Config{
		IndexConcurrency: c.Config.Storage.ListConcurrency,
		MaxLoads:         catalog.DefaultConfig().MaxLoads,
	}, c.Logger)
	c.Analyzer = engine.NewAnalyzer(c.Logger)
	c.Charts = charts.NewRenderer(0, 0)
}

// HealthChecks returns the probes served on /healthz
func (c *Container) HealthChecks() map[string]ops.CheckFunc {
	checks := map[string]ops.CheckFunc{
		"storage": func(ctx context.Context) error {
			_, err := c.Store.List(ctx)
			return err
		},
	}
	if c.DB != nil {
		checks["database"] = c.DB.PingContext
	}
	if c.Redis != nil {
		checks["redis"] = c.Redis.Check
	}
	return checks
}

// Close releases storage and database handles
func (c *Container) Close() error {
	var firstErr error
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			firstErr = err
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func initDatabase(ctx context.Context, url string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		appErr := errors.DatabaseError("failed to connect to database")
		appErr.Cause = err
		return nil, appErr
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		appErr := errors.DatabaseError("failed to ping database")
		appErr.Cause = err
		return nil, appErr
	}
	return db, nil
}
