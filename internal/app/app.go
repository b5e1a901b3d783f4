// Package app builds the service's dependency graph once at process start.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/kunskapsportal-search-api/internal/chat"
	"github.com/kunskapsportal-search-api/internal/config"
	"github.com/kunskapsportal-search-api/internal/handlers"
	"github.com/kunskapsportal-search-api/internal/models"
	"github.com/kunskapsportal-search-api/internal/repository"
	"github.com/kunskapsportal-search-api/internal/repository/postgres"
	"github.com/kunskapsportal-search-api/internal/repository/qdrantdb"
	"github.com/kunskapsportal-search-api/internal/repository/vertex"
	"github.com/kunskapsportal-search-api/internal/services"
	"github.com/kunskapsportal-search-api/internal/sources"
	schemaconfig "github.com/kunskapsportal-search-api/pkg/schema/config"
	"github.com/kunskapsportal-search-api/pkg/schema/db"
	pkgservices "github.com/kunskapsportal-search-api/pkg/schema/services"
)

// Vector backends selectable with VECTOR_BACKEND
const (
	BackendQdrant   = "qdrant"
	BackendPgvector = "pgvector"
	BackendVertex   = "vertex"
)

// App holds every long-lived collaborator of the service
type App struct {
	Config *config.Config
	Schema *schemaconfig.Config
	Logger *zap.Logger

	DB        *sqlx.DB
	Qdrant    *qdrant.Client
	Registry  *sources.Registry
	Clients   *sources.ClientCache
	Search    *services.SearchService
	Knowledge *services.KnowledgeTool
	// Chat is nil when no Gemini API key is configured
	Chat *chat.Orchestrator

	VectorBackend      string
	VectorHealth       handlers.Pinger
	MissingCredentials []string

	closers []func() error
}

// New connects to every backend and wires the search and chat services
func New(ctx context.Context, cfg *config.Config, schemaCfg *schemaconfig.Config, logger *zap.Logger) (_ *App, err error) {
	a := &App{Config: cfg, Schema: schemaCfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.DB, err = db.OpenPostgres(ctx, schemaCfg.PostgresURI)
	if err != nil {
		return nil, err
	}
	a.onClose(a.DB.Close)
	logger.Info("connected to postgres")

	vectors, err := a.vectorBackend(ctx)
	if err != nil {
		return nil, err
	}

	embeddings, err := a.embeddings(ctx)
	if err != nil {
		return nil, err
	}

	configs, err := sources.Load(cfg.ExternalSourcesFile, cfg.ExternalSourcesInline)
	if err != nil {
		return nil, fmt.Errorf("load external sources: %w", err)
	}
	a.Registry = sources.NewRegistry(configs, logger)
	a.Clients = sources.NewClientCache(qdrantdb.NewExternalSearcher)
	a.onClose(a.Clients.Close)
	logger.Info("external sources loaded", zap.Int("count", a.Registry.Len()))

	a.Search, err = services.NewSearchService(services.SearchDeps{
		Articles:    postgres.NewArticleRepository(a.DB),
		Departments: postgres.NewDepartmentRepository(a.DB),
		Vectors:     vectors,
		Embedder:    embeddings,
		Registry:    a.Registry,
		Clients:     a.Clients,
	}, services.SearchOptions{
		Tuning: services.Tuning{
			SemanticBoost: cfg.SemanticBoost,
			SemanticFloor: cfg.SemanticFloor,
			SemanticLimit: cfg.SemanticLimit,
			ExactLimit:    cfg.ExactLimit,
		},
		Timeouts: services.Timeouts{
			Embed:  cfg.EmbedTimeout,
			Vector: cfg.VectorTimeout,
		},
		PoolSize:      cfg.SearchPoolSize,
		PublicBaseURL: cfg.PublicBaseURL,
	}, logger)
	if err != nil {
		return nil, err
	}
	a.onClose(func() error { a.Search.Close(); return nil })

	a.Knowledge = services.NewKnowledgeTool(a.Search, a.Registry, cfg.ToolResultsPerSource, cfg.ToolExcerptChars)

	if !schemaCfg.HasEmbeddingCredentials() {
		a.MissingCredentials = append(a.MissingCredentials, "embedding provider credentials")
	}
	if cfg.GeminiAPIKey == "" {
		a.MissingCredentials = append(a.MissingCredentials, "GEMINI_API_KEY")
		logger.Warn("GEMINI_API_KEY not set, chat is disabled")
		return a, nil
	}
	model, err := chat.NewGeminiModel(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, err
	}
	a.Chat = chat.NewOrchestrator(model, a.Knowledge, chat.Config{
		MaxTurns:         cfg.ChatMaxTurns,
		GroundingEnabled: cfg.GoogleGroundingEnabled,
		LLMTimeout:       cfg.LLMTimeout,
		SearchTimeout:    cfg.EmbedTimeout + cfg.VectorTimeout,
	}, logger)
	logger.Info("chat enabled", zap.String("model", cfg.GeminiModel), zap.Bool("grounding", cfg.GoogleGroundingEnabled))
	return a, nil
}

// vectorBackend opens the internal index selected by VECTOR_BACKEND
func (a *App) vectorBackend(ctx context.Context) (repository.VectorSearchRepository, error) {
	cfg := a.Config
	a.VectorBackend = cfg.VectorBackend
	switch cfg.VectorBackend {
	case BackendVertex:
		repo, err := vertex.NewArticleIndex(ctx, vertex.Config{
			ProjectID:            cfg.VertexProjectID,
			Location:             cfg.VertexLocation,
			IndexEndpointID:      cfg.VertexIndexEndpointID,
			DeployedIndexID:      cfg.VertexDeployedIndexID,
			PublicEndpointDomain: cfg.VertexPublicEndpointDomain,
		}, postgres.NewChunkRepository(a.DB, cfg.PublicBaseURL))
		if err != nil {
			return nil, fmt.Errorf("create vertex vector repository: %w", err)
		}
		a.onClose(repo.Close)
		a.Logger.Info("using Vertex AI Vector Search backend")
		return repo, nil
	case BackendPgvector:
		a.VectorHealth = a.DB
		a.Logger.Info("using pgvector backend")
		return postgres.NewVectorSearchRepository(a.DB, cfg.PublicBaseURL), nil
	default:
		a.VectorBackend = BackendQdrant
		client, err := qdrantdb.NewClient(models.Connection{
			Host:   cfg.QdrantHost,
			Port:   cfg.QdrantPort,
			APIKey: cfg.QdrantAPIKey,
			UseTLS: cfg.QdrantUseTLS,
		})
		if err != nil {
			return nil, err
		}
		a.Qdrant = client
		a.onClose(client.Close)
		a.VectorHealth = handlers.PingFunc(func(ctx context.Context) error {
			return qdrantdb.Ping(ctx, client)
		})
		a.Logger.Info("using qdrant backend",
			zap.String("host", cfg.QdrantHost), zap.String("collection", cfg.QdrantCollection))
		return qdrantdb.NewArticleIndex(client, cfg.QdrantCollection, cfg.PublicBaseURL), nil
	}
}

// embeddings creates the query embedder with its optional Redis cache
func (a *App) embeddings(ctx context.Context) (*pkgservices.EmbeddingsService, error) {
	var cache pkgservices.EmbeddingCache
	if a.Schema.RedisAddr != "" {
		redisCache, err := pkgservices.NewRedisEmbeddingCache(ctx, a.Schema.RedisAddr, a.Schema.RedisPassword, a.Schema.RedisDB, a.Schema.EmbeddingCacheTTL)
		if err != nil {
			a.Logger.Warn("embedding cache unavailable", zap.Error(err))
		} else {
			// closed by EmbeddingsService.Close
			cache = redisCache
		}
	}

	svc, err := pkgservices.NewEmbeddingsService(ctx, a.Schema, cache, a.Logger)
	if err != nil {
		return nil, err
	}
	a.onClose(svc.Close)
	a.Logger.Info("embeddings ready",
		zap.String("provider", a.Schema.EmbeddingProvider), zap.Bool("cache", cache != nil))
	return svc, nil
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases everything in reverse order of creation
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
