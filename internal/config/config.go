package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"matrix-quest-service/internal/domain"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config holds application configuration loaded from a YAML file, .env and the environment.
type Config struct {
	Env         string      `mapstructure:"env"` // local, dev, production
	Server      Server      `mapstructure:"server"`
	Auth        Auth        `mapstructure:"auth"`
	Store       Store       `mapstructure:"store"`
	SQLite      SQLite      `mapstructure:"sqlite"`
	Redis       Redis       `mapstructure:"redis"`
	Postgres    Postgres    `mapstructure:"postgres"`
	Catalog     Catalog     `mapstructure:"catalog"`
	Credentials Credentials `mapstructure:"credentials"`
	Notify      Notify      `mapstructure:"notify"`
	Log         Log         `mapstructure:"log"`
}

type Server struct {
	Port           string        `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"` // websocket origins; empty allows all
}

type Auth struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type Store struct {
	Driver string `mapstructure:"driver"` // memory, sqlite, redis, postgres
}

type SQLite struct {
	Path string `mapstructure:"path"`
}

type Redis struct {
	URL      string        `mapstructure:"url"` // takes precedence over addr
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type Postgres struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type Catalog struct {
	Source string `mapstructure:"source"` // embedded, file, postgres
	Path   string `mapstructure:"path"`
}

type Credentials struct {
	Source string              `mapstructure:"source"` // static, postgres
	Users  []domain.Credential `mapstructure:"users"`
}

type Notify struct {
	DiscordWebhookURL string        `mapstructure:"discord_webhook_url"`
	Telegram          Telegram      `mapstructure:"telegram"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

type Telegram struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

type Log struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (t Telegram) Enabled() bool {
	return t.Token != "" && t.ChatID != 0
}

// Load reads configuration from path (optional), .env (optional) and the environment.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind well-known environment variables to configuration keys.
	_ = v.BindEnv("env", "APP_ENV")
	_ = v.BindEnv("postgres.url", "DATABASE_URL")
	_ = v.BindEnv("redis.url", "REDIS_URL")
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("notify.discord_webhook_url", "DISCORD_WEBHOOK_URL")
	_ = v.BindEnv("notify.telegram.token", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("notify.telegram.chat_id", "TELEGRAM_CHAT_ID")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("stat config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "local")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.request_timeout", "10s")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("sqlite.path", "data/matrix_quest.db")
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", "10m")
	v.SetDefault("postgres.url", "")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("catalog.source", "embedded")
	v.SetDefault("catalog.path", "")
	v.SetDefault("credentials.source", "static")
	v.SetDefault("notify.discord_webhook_url", "")
	v.SetDefault("notify.telegram.token", "")
	v.SetDefault("notify.telegram.chat_id", 0)
	v.SetDefault("notify.timeout", "10s")
	v.SetDefault("log.level", "")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
}

// Validate rejects unknown driver names and settings a driver cannot run without.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.SQLite.Path == "" {
			return fmt.Errorf("%w: sqlite.path is required for the sqlite store", ErrInvalidConfig)
		}
	case "redis":
		if c.Redis.URL == "" && c.Redis.Addr == "" {
			return fmt.Errorf("%w: redis.url or redis.addr is required for the redis store", ErrInvalidConfig)
		}
	case "postgres":
		if c.Postgres.URL == "" {
			return fmt.Errorf("%w: postgres.url is required for the postgres store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store.driver %q", ErrInvalidConfig, c.Store.Driver)
	}

	switch c.Catalog.Source {
	case "embedded":
	case "file":
		if c.Catalog.Path == "" {
			return fmt.Errorf("%w: catalog.path is required for the file catalog", ErrInvalidConfig)
		}
	case "postgres":
		if c.Postgres.URL == "" {
			return fmt.Errorf("%w: postgres.url is required for the postgres catalog", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown catalog.source %q", ErrInvalidConfig, c.Catalog.Source)
	}

	switch c.Credentials.Source {
	case "static":
	case "postgres":
		if c.Postgres.URL == "" {
			return fmt.Errorf("%w: postgres.url is required for postgres credentials", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown credentials.source %q", ErrInvalidConfig, c.Credentials.Source)
	}

	if c.IsProduction() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("%w: auth.jwt_secret must be set in production", ErrInvalidConfig)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("%w: auth.token_ttl must be positive", ErrInvalidConfig)
	}
	return nil
}
