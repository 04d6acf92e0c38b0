package store

import (
	"context"
	"fmt"

	"hq-entitlements/internal/config"
	"hq-entitlements/internal/database"

	rd "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Open builds the store selected by cfg.Store.Backend. Connectivity
// problems for networked backends are returned here, at startup, rather
// than degrading silently on the first purchase.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (Store, error) {
	switch cfg.Store.Backend {
	case BackendFile, "":
		return NewFileStore(cfg.Store.FilePath, logger), nil

	case BackendMemory:
		logger.Warn().Msg("using in-memory order store, orders are lost on restart")
		return NewMemoryStore(), nil

	case BackendPostgres:
		pool, err := database.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialise database: %w", err)
		}
		if err := EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return NewPostgresStore(pool, logger), nil

	case BackendS3:
		client, err := NewS3Client(ctx, cfg.S3.Region)
		if err != nil {
			return nil, err
		}
		logger.Info().
			Str("bucket", cfg.S3.Bucket).
			Str("region", cfg.S3.Region).
			Msg("S3 order store initialised")
		return NewS3Store(client, cfg.S3.Bucket, cfg.S3.Key, logger), nil

	case BackendRedis:
		client := rd.NewClient(&rd.Options{
			Addr: cfg.Redis.Addr,
			DB:   cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		return NewRedisStore(client, cfg.Redis.Key, logger), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// OpenEventLog returns the download analytics log configured in cfg.
func OpenEventLog(cfg *config.Config) EventLog {
	if cfg.Store.EventLogPath == "" {
		return NopEventLog()
	}
	return NewFileEventLog(cfg.Store.EventLogPath)
}
