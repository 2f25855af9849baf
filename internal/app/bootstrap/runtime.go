package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/gmx-sms-connector/internal/config"
	"github.com/wolfman30/gmx-sms-connector/internal/prefs"
	"github.com/wolfman30/gmx-sms-connector/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildPreferenceStore selects the preference backend from PREFS_BACKEND.
// The returned cleanup releases pools and clients and is never nil.
func BuildPreferenceStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (prefs.Store, func(), error) {
	noop := func() {}
	if cfg == nil {
		return nil, noop, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.PrefsBackend {
	case "memory":
		logger.Info("using in-memory preferences", "account", cfg.Account)
		return prefs.NewMemoryStore(seedPreferences(cfg)), noop, nil
	case "", "file":
		store, err := prefs.NewFileStore(cfg.PrefsFile, cfg.Account)
		if err != nil {
			return nil, noop, fmt.Errorf("bootstrap: file preferences: %w", err)
		}
		if err := seedIfEmpty(ctx, store, cfg); err != nil {
			return nil, noop, err
		}
		logger.Info("using file preferences", "path", cfg.PrefsFile, "account", cfg.Account)
		return store, noop, nil
	case "redis":
		client := BuildRedisClient(ctx, cfg, logger, true)
		if client == nil {
			return nil, noop, fmt.Errorf("bootstrap: redis unavailable at %s", cfg.RedisAddr)
		}
		store, err := prefs.NewRedisStore(client, cfg.Account)
		if err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("bootstrap: redis preferences: %w", err)
		}
		if err := seedIfEmpty(ctx, store, cfg); err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		logger.Info("using redis preferences", "addr", cfg.RedisAddr, "account", cfg.Account)
		return store, func() { _ = client.Close() }, nil
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, noop, fmt.Errorf("bootstrap: DATABASE_URL required for postgres preferences")
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, fmt.Errorf("bootstrap: connect postgres: %w", err)
		}
		store, err := prefs.NewPostgresStore(pool, cfg.Account)
		if err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("bootstrap: postgres preferences: %w", err)
		}
		if err := seedIfEmpty(ctx, store, cfg); err != nil {
			pool.Close()
			return nil, noop, err
		}
		logger.Info("using postgres preferences", "account", cfg.Account)
		return store, pool.Close, nil
	}
	return nil, noop, fmt.Errorf("bootstrap: unknown preference backend %q", cfg.PrefsBackend)
}

func seedPreferences(cfg *appconfig.Config) prefs.Preferences {
	return prefs.Preferences{
		Enabled:  cfg.SeedEnabled,
		Username: strings.TrimSpace(cfg.SeedUsername),
		Password: cfg.SeedPassword,
	}
}

// seedIfEmpty writes the GMX_* credentials when the store holds none yet.
func seedIfEmpty(ctx context.Context, store prefs.Store, cfg *appconfig.Config) error {
	seed := seedPreferences(cfg)
	if !seed.HasCredentials() {
		return nil
	}
	current, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap: load preferences: %w", err)
	}
	if current.HasCredentials() {
		return nil
	}
	seed.HostCursor = current.HostCursor
	if err := store.Save(ctx, seed); err != nil {
		return fmt.Errorf("bootstrap: seed preferences: %w", err)
	}
	return nil
}
