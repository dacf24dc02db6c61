// Package bootstrap wires configuration, adapters and services into
// runnable API and worker processes.
package bootstrap

import (
	"context"
	"time"

	"triage_server/adapter/out/messaging"
	"triage_server/adapter/out/mongodb"
	"triage_server/adapter/out/persistence"
	"triage_server/config"
	"triage_server/core/agent/llm"
	"triage_server/core/port/out"
	"triage_server/core/service/classification"
	"triage_server/core/service/directory"
	"triage_server/core/service/resolver"
	"triage_server/core/service/routing"
	"triage_server/core/service/triage"
	"triage_server/infra/database"
	"triage_server/pkg/apperr"
	"triage_server/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

type Dependencies struct {
	Config  *config.Config
	DB      *pgxpool.Pool
	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client

	// Tenant configuration
	TenantProvider out.TenantConfigProvider
	Directory      *directory.Directory

	// Messaging
	Producer *messaging.RedisProducer

	// Audit
	AuditRepo *mongodb.AuditAdapter

	// Agent
	LLMClient *llm.Client

	// Services
	Resolver      *resolver.Resolver
	Pipeline      *classification.Pipeline
	Engine        *routing.Engine
	TriageService *triage.Service
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// PostgreSQL (required for the postgres tenant store)
	if cfg.DatabaseURL != "" {
		db, err := database.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		deps.DB = db
		cleanups = append(cleanups, func() { db.Close() })

		sqlDB := database.NewSQLX(db)
		deps.SQLDB = sqlDB
		cleanups = append(cleanups, func() { sqlDB.Close() })
	}

	// Redis
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis connection failed: %v", err)
		} else {
			deps.Redis = redisClient
			cleanups = append(cleanups, func() { redisClient.Close() })

			deps.Producer = messaging.NewRedisProducer(redisClient)
		}
	}

	// MongoDB
	if cfg.MongoDBURL != "" {
		mongoClient, err := mongodb.NewClient(cfg.MongoDBURL, cfg.MongoDBName)
		if err != nil {
			logger.Warn("MongoDB connection failed: %v", err)
		} else {
			deps.MongoDB = mongoClient
			cleanups = append(cleanups, func() {
				mongoClient.Disconnect(context.Background())
			})

			mongoDB := mongoClient.Database(cfg.MongoDBName)
			deps.AuditRepo = mongodb.NewAuditAdapter(mongoDB)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := deps.AuditRepo.EnsureIndexes(ctx); err != nil {
				logger.Warn("Failed to ensure audit indexes: %v", err)
			}
			cancel()
		}
	}

	// Tenant provider
	switch cfg.TenantStoreDriver {
	case "file":
		deps.TenantProvider = persistence.NewFileTenantProvider(cfg.TenantFilePath)
	case "postgres":
		if deps.SQLDB == nil {
			cleanup()
			return nil, nil, apperr.ConfigError("postgres tenant store requires DATABASE_URL")
		}
		deps.TenantProvider = persistence.NewTenantAdapter(deps.SQLDB)
	default:
		cleanup()
		return nil, nil, apperr.ConfigError("unknown tenant store driver: " + cfg.TenantStoreDriver)
	}

	// Tenant directory. A failed initial load is not fatal: triage
	// degrades to the operator fallback until a reload succeeds.
	deps.Directory = directory.New(deps.TenantProvider)
	{
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := deps.Directory.Load(ctx); err != nil {
			logger.WithError(err).Error("Initial tenant directory load failed")
		}
		cancel()
	}

	// LLM client (optional; without it classification is keyword-only)
	var completer out.TextCompleter
	if cfg.OpenAIAPIKey != "" {
		deps.LLMClient = llm.NewClientWithConfig(llm.ClientConfig{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
			Timeout:     cfg.LLMTimeout(),
		})
		completer = deps.LLMClient
	} else {
		logger.Warn("OPENAI_API_KEY not set, AI classification disabled")
	}

	// Analytics sinks (fire-and-forget)
	var sinks []out.AnalyticsSink
	if deps.Producer != nil {
		sinks = append(sinks, deps.Producer)
	}
	if deps.AuditRepo != nil {
		sinks = append(sinks, deps.AuditRepo)
	}

	// Core services
	deps.Resolver = resolver.NewWithConfig(deps.Directory, resolver.Config{
		FuzzyThreshold: cfg.FuzzyThreshold,
		CandidateCount: cfg.FuzzyCandidates,
	})
	deps.Pipeline = classification.NewPipeline(deps.Directory, completer)
	deps.Engine = routing.New(deps.Directory, routing.Config{
		OperatorAddress:   cfg.OperatorAddress,
		UrgentKeywords:    cfg.UrgentKeywords,
		ComplaintKeywords: cfg.ComplaintKeywords,
	}, sinks...)
	deps.TriageService = triage.NewService(deps.Resolver, deps.Pipeline, deps.Engine)

	return deps, cleanup, nil
}
