package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Capeo/SupplAI/internal/analyzer"
	"github.com/Capeo/SupplAI/internal/config"
	"github.com/Capeo/SupplAI/internal/db"
	"github.com/Capeo/SupplAI/internal/registry"
	"github.com/Capeo/SupplAI/internal/services"
	"github.com/Capeo/SupplAI/internal/storage"
	"github.com/Capeo/SupplAI/internal/utils"
)

// application holds the wired pipeline and the resources it owns.
type application struct {
	service *services.QualificationService
	lookup  registry.StatusLookup
	storage storage.Storage
	closers []func() error
}

func (a *application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func newApplication(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*application, error) {
	a := &application{}

	generator, err := newGenerator(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, err
	}

	lookup, err := a.newLookup(ctx, cfg, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.lookup = lookup

	if cfg.S3.Endpoint != "" {
		store, err := storage.NewS3Storage(ctx, cfg.S3)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("initializing tender storage: %w", err)
		}
		a.storage = store
	}

	a.service = services.NewQualificationService(
		analyzer.NewClassifier(generator, logger),
		analyzer.NewRequirementExtractor(generator, logger),
		analyzer.NewEvaluator(generator, logger),
		lookup,
		logger,
	)

	logger.Info("pipeline ready",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", generator.Model()),
		zap.String("registry", cfg.Registry.Mode),
		zap.Bool("status_cache", cfg.Redis.Address != "" && cfg.Registry.Mode == config.RegistrySQLite),
		zap.Bool("tender_storage", a.storage != nil),
	)

	return a, nil
}

func newGenerator(ctx context.Context, cfg config.LLMConfig, logger *utils.Logger) (analyzer.Generator, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		g, err := analyzer.NewGeminiGenerator(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("creating gemini client: %w", err)
		}
		return g, nil
	case config.ProviderOpenRouter:
		return analyzer.NewOpenRouterGenerator(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.RequestTimeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// newLookup builds the status lookup for the configured registry mode. The
// Redis cache only fronts the sqlite register, whose matching is by
// normalized name like the cache key.
func (a *application) newLookup(ctx context.Context, cfg *config.Config, logger *utils.Logger) (registry.StatusLookup, error) {
	if cfg.Registry.Mode == config.RegistryStatic {
		if cfg.Redis.Address != "" {
			logger.Info("status cache disabled for the static registry")
		}
		return registry.NewStaticLookup(), nil
	}

	sqlLookup, err := a.openRegister(cfg)
	if err != nil {
		return nil, err
	}

	rdb := a.openRedis(ctx, cfg.Redis, logger)
	if rdb == nil {
		return sqlLookup, nil
	}
	return registry.NewCachingLookup(rdb, cfg.Redis.TTL, sqlLookup, "", logger), nil
}

func (a *application) openRegister(cfg *config.Config) (*registry.SQLiteLookup, error) {
	if err := db.RunMigrations(cfg.Registry.Database); err != nil {
		return nil, fmt.Errorf("migrating register database: %w", err)
	}
	conn, err := db.NewSQLiteDB(cfg.Registry.Database)
	if err != nil {
		return nil, fmt.Errorf("opening register database: %w", err)
	}
	a.closers = append(a.closers, conn.Close)
	return registry.NewSQLiteLookup(conn), nil
}

// openRedis returns nil when no address is configured. An unreachable server
// is logged and the client kept; lookups fall back to the register.
func (a *application) openRedis(ctx context.Context, cfg config.RedisConfig, logger *utils.Logger) *redis.Client {
	if cfg.Address == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, status cache degraded", zap.String("address", cfg.Address), zap.Error(err))
	}
	a.closers = append(a.closers, rdb.Close)
	return rdb
}
