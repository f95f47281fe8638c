package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/upb/rag-gatekeeper/config"
	"github.com/upb/rag-gatekeeper/handlers"
	"github.com/upb/rag-gatekeeper/internal/gate"
	"github.com/upb/rag-gatekeeper/internal/observability"
	"github.com/upb/rag-gatekeeper/internal/rag"
	"github.com/upb/rag-gatekeeper/middleware"
	"github.com/upb/rag-gatekeeper/repositories"
	"github.com/upb/rag-gatekeeper/repositories/memory"
	"github.com/upb/rag-gatekeeper/repositories/postgres"
	"github.com/upb/rag-gatekeeper/services/audit"
	"github.com/upb/rag-gatekeeper/services/embedding"
	"github.com/upb/rag-gatekeeper/services/generation"
	"github.com/upb/rag-gatekeeper/services/query"
	"github.com/upb/rag-gatekeeper/services/users"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB
	Logger  *zap.Logger
	Metrics observability.Metrics

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Users       repositories.UserRepository
	AuditEvents repositories.AuditRepository

	// Retrieval and generation
	Index     rag.Index
	Embedder  *embedding.Client
	Generator *generation.Client

	// Audit trail
	AuditMirror   *audit.MirrorService
	AuditRecorder *audit.Recorder
	AuditReader   *audit.Reader

	// Services
	UserService  *users.Service
	QueryService *query.Service

	// Auth
	AuthMiddleware *middleware.AuthMiddleware

	// Handlers
	HealthHandler   *handlers.HealthHandler
	QueryHandler    *handlers.QueryHandler
	AuthHandler     *handlers.AuthHandler
	AccessHandler   *handlers.AccessHandler
	AuditHandler    *handlers.AuditHandler
	DocumentHandler *handlers.DocumentHandler

	shutdownTracer  func(context.Context) error
	shutdownMetrics func(context.Context) error
	closed          bool
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	deps.initObservability(ctx, cfg)

	// Initialize PostgreSQL
	if err := deps.initDatabase(ctx, cfg); err != nil {
		deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initRepositories()

	if err := deps.initIndex(cfg); err != nil {
		deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}

	deps.initProviders(cfg)

	if err := deps.initAudit(cfg); err != nil {
		deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize audit trail: %w", err)
	}

	if err := deps.initAuth(cfg); err != nil {
		deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	if err := deps.initServices(cfg); err != nil {
		deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	deps.initHandlers(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initObservability installs the tracer provider and the metric instruments
func (d *Dependencies) initObservability(ctx context.Context, cfg *config.Config) {
	d.shutdownTracer = observability.InitTracer(ctx, observability.TracingConfig{
		Enabled:    cfg.Observability.TracingEnabled,
		Endpoint:   cfg.Observability.TracingEndpoint,
		SampleRate: cfg.Observability.TracingSampleRate,
	}, d.Logger)

	provider, shutdown := observability.InitMetrics(ctx, observability.MetricsConfig{
		Enabled:  cfg.Observability.MetricsEnabled,
		Endpoint: cfg.Observability.MetricsEndpoint,
		Interval: cfg.Observability.MetricsInterval,
	}, d.Logger)
	d.shutdownMetrics = shutdown

	metrics, err := observability.NewMetrics(provider)
	if err != nil {
		d.Logger.Warn("metrics disabled", zap.Error(err))
		metrics = observability.NopMetrics()
	}
	d.Metrics = metrics
}

// initDatabase initializes the PostgreSQL database connection and factory
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := factory.InitSchema(ctx, cfg.Retrieval.Dimensions); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Users = repos.Users
	d.AuditEvents = repos.AuditEvents

	d.Logger.Info("repositories initialized")
}

// initIndex selects the vector index backend
func (d *Dependencies) initIndex(cfg *config.Config) error {
	switch cfg.Retrieval.Backend {
	case "pgvector":
		if d.DB == nil {
			return fmt.Errorf("pgvector backend requires a database")
		}
		index, err := postgres.NewChunkIndex(d.DB, cfg.Retrieval.Metric, cfg.Retrieval.Dimensions, d.Logger)
		if err != nil {
			return err
		}
		d.Index = index

	case "memory":
		index, err := memory.NewIndex(cfg.Retrieval.Metric, d.Logger)
		if err != nil {
			return err
		}
		if cfg.Retrieval.SeedFile != "" {
			if _, err := index.LoadFile(cfg.Retrieval.SeedFile); err != nil {
				return err
			}
		}
		d.Index = index

	default:
		return fmt.Errorf("unsupported vector backend %q", cfg.Retrieval.Backend)
	}

	d.Logger.Info("vector index initialized",
		zap.String("backend", cfg.Retrieval.Backend),
		zap.String("metric", string(cfg.Retrieval.Metric)))
	return nil
}

// initProviders creates the embedding and generation clients
func (d *Dependencies) initProviders(cfg *config.Config) {
	d.Embedder = embedding.NewClient(embedding.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Retrieval.Dimensions,
		Timeout:    cfg.Embedding.Timeout,
	}, d.Logger)

	d.Generator = generation.NewClient(generation.Config{
		APIKey:      cfg.Generation.APIKey,
		BaseURL:     cfg.Generation.BaseURL,
		Model:       cfg.Generation.Model,
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
		Timeout:     cfg.Generation.Timeout,
	}, d.Logger)

	if cfg.Embedding.APIKey == "" {
		d.Logger.Warn("no embedding API key configured")
	}
	if cfg.Generation.APIKey == "" {
		d.Logger.Warn("no generation API key configured")
	}
}

// initAudit opens the audit file and starts the optional mirrors
func (d *Dependencies) initAudit(cfg *config.Config) error {
	primary, err := audit.NewFileSink(audit.FileConfig{
		Path:      cfg.Audit.FilePath,
		MaxSizeMB: cfg.Audit.MaxSizeMB,
		Compress:  cfg.Audit.Compress,
	})
	if err != nil {
		return err
	}

	var sinks []audit.Sink
	if cfg.Audit.DBEnabled && d.AuditEvents != nil {
		sinks = append(sinks, audit.NewPostgresSink(d.AuditEvents))
	}
	if len(cfg.Audit.KafkaBrokers) > 0 {
		kafkaSink, err := audit.NewKafkaSink(audit.KafkaConfig{
			Brokers: cfg.Audit.KafkaBrokers,
			Topic:   cfg.Audit.KafkaTopic,
		})
		if err != nil {
			_ = primary.Close()
			return err
		}
		sinks = append(sinks, kafkaSink)
	}

	if len(sinks) > 0 {
		mirrorCfg := audit.DefaultConfig()
		if cfg.Audit.BufferSize > 0 {
			mirrorCfg.BufferSize = cfg.Audit.BufferSize
		}
		if cfg.Audit.WorkerCount > 0 {
			mirrorCfg.WorkerCount = cfg.Audit.WorkerCount
		}
		d.AuditMirror = audit.NewMirrorService(sinks, d.Metrics, d.Logger, mirrorCfg)
		if err := d.AuditMirror.Start(); err != nil {
			_ = primary.Close()
			return err
		}
	}

	d.AuditRecorder = audit.NewRecorder(primary, d.AuditMirror, d.Metrics, d.Logger)

	if cfg.Audit.DBEnabled {
		d.AuditReader = audit.NewReader(d.AuditEvents)
	} else {
		d.AuditReader = audit.NewReader(nil)
	}

	d.Logger.Info("audit trail initialized",
		zap.String("file", cfg.Audit.FilePath),
		zap.Int("mirrors", len(sinks)))
	return nil
}

func (d *Dependencies) initAuth(cfg *config.Config) error {
	validator, err := middleware.NewTokenValidator(cfg.Auth.Mode, cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	if err != nil {
		return err
	}

	d.UserService = users.NewService(d.Users, cfg.Auth.UserCacheTTL, d.Logger)
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.UserService, d.Logger)

	d.Logger.Info("auth initialized", zap.String("mode", cfg.Auth.Mode))
	return nil
}

func (d *Dependencies) initServices(cfg *config.Config) error {
	svc, err := query.NewService(
		d.Embedder,
		d.Index,
		d.Generator,
		d.AuditRecorder,
		gate.NewEngine(cfg.Gate),
		d.Metrics,
		query.Config{
			TopK:          cfg.Retrieval.TopK,
			MaxEvidence:   cfg.Evidence.MaxDocs,
			MinSimilarity: cfg.Evidence.MinSimilarity,
			QueryTimeout:  cfg.Retrieval.QueryTimeout,
		},
		d.Logger,
	)
	if err != nil {
		return err
	}
	d.QueryService = svc
	return nil
}

func (d *Dependencies) initHandlers(cfg *config.Config) {
	var mirrors handlers.MirrorStats
	if d.AuditMirror != nil {
		mirrors = d.AuditMirror
	}

	info := handlers.StatusInfo{
		Service:         observability.ServiceName,
		Environment:     cfg.Environment,
		AuthMode:        cfg.Auth.Mode,
		IndexBackend:    cfg.Retrieval.Backend,
		Metric:          string(cfg.Retrieval.Metric),
		TopK:            cfg.Retrieval.TopK,
		Thresholds:      cfg.Gate,
		EmbeddingModel:  d.Embedder.Model(),
		GenerationModel: d.Generator.Model(),
	}

	var db *sql.DB
	if d.DB != nil {
		db = d.DB.DB
	}

	d.HealthHandler = handlers.NewHealthHandler(db, d.Index, mirrors, info, d.Logger)
	d.QueryHandler = handlers.NewQueryHandler(d.QueryService, d.Logger)
	d.AuthHandler = handlers.NewAuthHandler(d.Logger)
	d.AccessHandler = handlers.NewAccessHandler(d.Logger)
	d.AuditHandler = handlers.NewAuditHandler(d.AuditReader, d.Logger)
	d.DocumentHandler = handlers.NewDocumentHandler(d.Index, d.Logger)
}

// Close gracefully shuts down all dependencies. It is safe to call twice.
func (d *Dependencies) Close(ctx context.Context) error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Flush the audit trail before the database goes away
	if d.AuditRecorder != nil {
		timeout := d.Config.Audit.StopTimeout
		if timeout <= 0 {
			timeout = audit.DefaultConfig().WriteTimeout
		}
		stopCtx, cancel := context.WithTimeout(ctx, timeout)
		if err := d.AuditRecorder.Close(stopCtx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close audit trail: %w", err))
		}
		cancel()
	}

	if d.Index != nil {
		if err := d.Index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close vector index: %w", err))
		}
	}

	// Close database connection
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.shutdownTracer != nil {
		if err := d.shutdownTracer(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down tracer: %w", err))
		}
	}

	if d.shutdownMetrics != nil {
		if err := d.shutdownMetrics(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down metrics: %w", err))
		}
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
