package container

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"circulation-backend/internal/config"
	circulationHandler "circulation-backend/internal/domains/circulation/handler"
	circulationJob "circulation-backend/internal/domains/circulation/job"
	"circulation-backend/internal/domains/circulation/policy"
	circulationRepo "circulation-backend/internal/domains/circulation/repository"
	circulationService "circulation-backend/internal/domains/circulation/service"
	"circulation-backend/internal/domains/directory"
	infraCache "circulation-backend/internal/infrastructure/cache"
	"circulation-backend/internal/infrastructure/database"
	"circulation-backend/internal/infrastructure/migrations"
	"circulation-backend/internal/infrastructure/sqlite"
	"circulation-backend/internal/infrastructure/store"
	"circulation-backend/internal/infrastructure/tracing"
	"circulation-backend/pkg/cache"
)

// ========================================
// CONTAINER STRUCT
// ========================================

// Container holds every long-lived dependency of the process.
// Build order: config → infrastructure → repositories → services → handlers.
type Container struct {
	// ========================================
	// INFRASTRUCTURE LAYER
	// ========================================
	Config *config.Config

	DB     *database.PostgresDB // set when STORE_DRIVER=postgres
	SQLite *sqlite.DB           // set when STORE_DRIVER=sqlite
	Store  store.Store

	Redis       *infraCache.RedisClient // nil when Redis is disabled
	Cache       cache.Cache             // Redis, or in-process fallback
	AsynqClient *asynq.Client           // nil when Redis is disabled

	shutdownTracing tracing.ShutdownFunc

	// ========================================
	// REPOSITORY LAYER
	// ========================================
	LedgerRepo circulationRepo.LedgerRepository
	LoanRepo   circulationRepo.LoanRepository
	QueryRepo  circulationRepo.QueryRepository
	Borrowers  directory.Registry

	// ========================================
	// SERVICE LAYER
	// ========================================
	Policy             *policy.Engine
	CirculationService circulationService.ServiceInterface

	// ========================================
	// HANDLER LAYER
	// ========================================
	CirculationHandler *circulationHandler.Handler
	DirectoryHandler   *directory.Handler
}

// NewContainer loads config from the environment and builds the graph.
func NewContainer() (*Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewContainerWithConfig(cfg)
}

// NewContainerWithConfig builds the graph from an already loaded config.
// On error, everything opened so far is closed again.
func NewContainerWithConfig(cfg *config.Config) (_ *Container, err error) {
	log.Println("🔧 Initializing DI Container...")

	c := &Container{Config: cfg}
	defer func() {
		if err != nil {
			c.Cleanup()
		}
	}()

	// ========================================
	// STEP 1: TRACING
	// ========================================
	shutdown, err := tracing.Setup(context.Background(), cfg.Tracing, cfg.App.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}
	c.shutdownTracing = shutdown

	// ========================================
	// STEP 2: STORE
	// ========================================
	if err := c.initStore(); err != nil {
		return nil, err
	}

	// ========================================
	// STEP 3: CACHE + QUEUE CLIENT
	// ========================================
	c.initCache()

	// ========================================
	// STEP 4: REPOSITORIES
	// ========================================
	log.Println("📦 Initializing repositories...")
	c.initRepositories()

	// ========================================
	// STEP 5: SERVICES
	// ========================================
	log.Println("⚙️  Initializing services...")
	c.initServices()

	// ========================================
	// STEP 6: HANDLERS
	// ========================================
	c.CirculationHandler = circulationHandler.NewHandler(c.CirculationService)
	c.DirectoryHandler = directory.NewHandler(c.Borrowers)

	log.Println("🎉 DI Container initialized successfully")
	return c, nil
}

// ========================================
// PRIVATE INITIALIZATION METHODS
// ========================================

func (c *Container) initStore() error {
	switch c.Config.Store.Driver {
	case config.DriverSQLite:
		log.Printf("🗄️  Opening SQLite at %s...", c.Config.Store.SQLitePath)

		db, err := sqlite.NewDB(c.Config.Store.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open sqlite: %w", err)
		}
		c.SQLite = db
		c.Store = db.Store()

	default:
		log.Println("🗄️  Connecting to PostgreSQL...")

		dbConfig, err := config.LoadDatabaseConfig()
		if err != nil {
			return fmt.Errorf("failed to load database config: %w", err)
		}

		if err := migrations.RunPostgres(dbConfig.DSN()); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		db := database.NewPostgresDB(dbConfig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := db.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		c.DB = db
		c.Store = store.NewPgxStore(db.Pool)
	}

	log.Printf("✅ Store ready (driver: %s)", c.Store.Driver())
	return nil
}

// initCache connects Redis when enabled. Redis failure is not fatal: the
// process falls back to the in-process cache and runs without the queue.
func (c *Container) initCache() {
	if !c.Config.Redis.Disabled {
		log.Println("🔴 Connecting to Redis...")

		rc := infraCache.NewRedisClient(c.Config.Redis.Host, c.Config.Redis.Password, c.Config.Redis.DB)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := rc.Connect(ctx); err != nil {
			log.Printf("⚠️  Redis connection failed (non-critical): %v", err)
			_ = rc.Close()
		} else {
			c.Redis = rc
			c.Cache = infraCache.NewRedisCache(rc, "circulation:")
			c.AsynqClient = asynq.NewClient(c.RedisConnOpt())
			log.Println("✅ Redis connected")
			return
		}
	}

	c.Cache = infraCache.NewMemoryCache(c.Config.Circulation.BorrowerCacheTTL, 10*time.Minute)
	log.Println("✅ Using in-process cache")
}

func (c *Container) initRepositories() {
	dialect := c.Store.Dialect()

	c.LedgerRepo = circulationRepo.NewLedgerRepository(dialect)
	c.LoanRepo = circulationRepo.NewLoanRepository(dialect)
	c.QueryRepo = circulationRepo.NewQueryRepository(dialect)

	c.Borrowers = directory.NewCachedRegistry(
		directory.NewSQLRegistry(c.Store),
		c.Cache,
		c.Config.Circulation.BorrowerCacheTTL,
	)
}

func (c *Container) initServices() {
	catalog := circulationService.NewCatalog(c.Store, c.LedgerRepo, c.LoanRepo)
	c.Policy = policy.NewEngine(c.Config.Circulation, c.Borrowers, catalog, catalog)

	opts := []circulationService.Option{}
	if c.AsynqClient != nil && c.Config.Jobs.ReconcileOnOverride {
		opts = append(opts, circulationService.WithOverrideNotifier(circulationJob.NewReconcileNotifier(c.AsynqClient)))
	}

	c.CirculationService = circulationService.NewService(
		c.Store,
		c.LedgerRepo,
		c.LoanRepo,
		c.QueryRepo,
		c.Policy,
		opts...,
	)
}

// RedisConnOpt is the asynq connection for the configured Redis.
func (c *Container) RedisConnOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     c.Config.Redis.Host,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	}
}

// Cleanup releases resources in reverse build order. Safe on a partly built container.
func (c *Container) Cleanup() {
	log.Println("🧹 Cleaning up container resources...")

	if c.AsynqClient != nil {
		if err := c.AsynqClient.Close(); err != nil {
			log.Printf("⚠️  Failed to close asynq client: %v", err)
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Printf("⚠️  Failed to close Redis: %v", err)
		} else {
			log.Println("✅ Redis connections closed")
		}
	}

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			log.Printf("⚠️  Failed to close database: %v", err)
		} else {
			log.Println("✅ Database connections closed")
		}
	}

	if c.SQLite != nil {
		if err := c.SQLite.Close(); err != nil {
			log.Printf("⚠️  Failed to close sqlite: %v", err)
		}
	}

	if c.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.shutdownTracing(ctx); err != nil {
			log.Printf("⚠️  Failed to flush traces: %v", err)
		}
	}

	log.Println("✅ Container cleanup completed")
}
