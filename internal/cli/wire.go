package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"matrix-quest-service/internal/app"
	"matrix-quest-service/internal/auth"
	"matrix-quest-service/internal/catalog"
	"matrix-quest-service/internal/config"
	"matrix-quest-service/internal/infra/memory"
	"matrix-quest-service/internal/infra/postgres"
	pgmigrations "matrix-quest-service/internal/infra/postgres/migrations"
	rediscache "matrix-quest-service/internal/infra/redis"
	"matrix-quest-service/internal/infra/sqlite"
	"matrix-quest-service/internal/metrics"
	"matrix-quest-service/internal/notify"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// components is the fully wired application graph.
type components struct {
	service     *app.TriviaService
	leaderboard *app.Leaderboard
	tokens      *auth.TokenIssuer
	webhook     *notify.Discord
	metrics     *metrics.Metrics
	async       *notify.Async
	closers     []func()
}

// Close drains background work, then releases connections in reverse order.
func (c *components) Close() {
	if c.async != nil {
		c.async.Wait()
	}
	if c.leaderboard != nil {
		c.leaderboard.Wait()
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func build(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *components, err error) {
	c := &components{metrics: metrics.New()}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	redisClient, err := openRedis(cfg)
	if err != nil {
		return nil, err
	}
	if redisClient != nil {
		c.closers = append(c.closers, func() { _ = redisClient.Close() })
	}

	var pool *pgxpool.Pool
	if needsPostgres(cfg) {
		if err := pgmigrations.Apply(ctx, cfg.Postgres.URL); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		pool, err = postgres.NewPool(ctx, cfg.Postgres.URL, postgres.PoolConfig{MaxConns: cfg.Postgres.MaxConns})
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		c.closers = append(c.closers, pool.Close)
	}

	cat, err := loadCatalog(ctx, cfg, pool, redisClient)
	if err != nil {
		return nil, err
	}
	logger.Info("catalog loaded", zap.String("source", cfg.Catalog.Source), zap.Int("questions", cat.Len()))

	var creds app.CredentialStore
	switch cfg.Credentials.Source {
	case "postgres":
		creds = postgres.NewCredentialStore(pool)
	default:
		users := cfg.Credentials.Users
		if len(users) == 0 {
			users = memory.DefaultCredentials()
		}
		if creds, err = memory.NewCredentialStore(users); err != nil {
			return nil, fmt.Errorf("credentials: %w", err)
		}
	}

	var store app.ProgressStore
	switch cfg.Store.Driver {
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLite.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlite dir: %w", err)
			}
		}
		db, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		c.closers = append(c.closers, func() { _ = db.Close() })
		store = db
	case "redis":
		store = rediscache.NewProgressStore(redisClient)
	case "postgres":
		store = postgres.NewProgressStore(pool)
	default:
		store = memory.NewProgressStore()
	}

	c.leaderboard = app.NewLeaderboard(cat, store, logger.Named("leaderboard"))
	c.webhook = notify.NewDiscord(cfg.Notify.DiscordWebhookURL, nil)

	opts := []app.Option{app.WithLogger(logger.Named("trivia")), app.WithObserver(c.leaderboard)}
	if channels := notifiers(cfg, c.webhook, logger); len(channels) > 0 {
		var next notify.Notifier = channels[0]
		if len(channels) > 1 {
			next = channels
		}
		c.async = notify.NewAsync(next, logger.Named("notify"), c.metrics, cfg.Notify.Timeout)
		opts = append(opts, app.WithNotifier(c.async))
	}
	c.service = app.NewTriviaService(cat, creds, store, opts...)

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		logger.Warn("auth.jwt_secret not set, using an ephemeral secret; sessions will not survive restarts")
	}
	c.tokens = auth.NewTokenIssuer(secret, cfg.Auth.TokenTTL)

	logger.Info("application wired",
		zap.String("store", cfg.Store.Driver),
		zap.String("credentials", cfg.Credentials.Source),
		zap.Bool("notifications", c.async != nil),
	)
	return c, nil
}

func needsPostgres(cfg config.Config) bool {
	return cfg.Store.Driver == "postgres" || cfg.Catalog.Source == "postgres" || cfg.Credentials.Source == "postgres"
}

func openRedis(cfg config.Config) (*redis.Client, error) {
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		return redis.NewClient(opts), nil
	}
	if cfg.Redis.Addr == "" {
		return nil, nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}), nil
}

func loadCatalog(ctx context.Context, cfg config.Config, pool *pgxpool.Pool, redisClient *redis.Client) (*catalog.Catalog, error) {
	switch cfg.Catalog.Source {
	case "file":
		return catalog.LoadFile(cfg.Catalog.Path)
	case "postgres":
		var loader catalog.Loader = postgres.NewQuestionLoader(pool)
		if redisClient != nil {
			loader = rediscache.NewCatalogCache(redisClient, loader, cfg.Redis.CacheTTL)
		}
		return catalog.Load(ctx, loader)
	default:
		return catalog.Default(), nil
	}
}

func notifiers(cfg config.Config, discord *notify.Discord, logger *zap.Logger) notify.Multi {
	var out notify.Multi
	if discord.Configured() {
		out = append(out, discord)
	}
	if cfg.Notify.Telegram.Enabled() {
		tg, err := notify.NewTelegram(cfg.Notify.Telegram.Token, cfg.Notify.Telegram.ChatID)
		if err != nil {
			logger.Warn("telegram notifier disabled", zap.Error(err))
		} else {
			out = append(out, tg)
		}
	}
	return out
}
