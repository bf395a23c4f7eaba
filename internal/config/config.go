// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`

	// Discord OAuth
	DiscordClientID     string `env:"DISCORD_CLIENT_ID"`
	DiscordClientSecret string `env:"DISCORD_CLIENT_SECRET"`
	DiscordRedirectURI  string `env:"DISCORD_REDIRECT_URI"`

	// Discord Bot
	DiscordBotToken string        `env:"DISCORD_BOT_TOKEN"`
	DiscordTimeout  time.Duration `env:"DISCORD_TIMEOUT, default=10s"`

	// 認可
	OwnerID string `env:"OWNER_ID"`

	// Session
	SessionSecret          string        `env:"SESSION_SECRET"`
	SessionMaxAge          int           `env:"SESSION_MAX_AGE, default=86400"`
	SessionStore           string        `env:"SESSION_STORE, default=postgres"`
	SessionCleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL, default=1h"`

	// Redis（SESSION_STORE=redis の場合のみ使用）
	RedisAddr string `env:"REDIS_ADDR, default=localhost:6379"`
	RedisDB   int    `env:"REDIS_DB, default=0"`

	// Artwork
	UploadDir       string        `env:"UPLOAD_DIR, default=./uploads"`
	UploadURLPrefix string        `env:"UPLOAD_URL_PREFIX, default=/uploads"`
	ArtworkMaxSize  int64         `env:"ARTWORK_MAX_SIZE, default=10485760"`
	ImportTimeout   time.Duration `env:"IMPORT_TIMEOUT, default=10s"`

	// Benefits
	BenefitsFile string `env:"BENEFITS_FILE"`

	// Rate Limit（req/min）
	RateLimitGeneral      int `env:"RATE_LIMIT_GENERAL, default=120"`
	RateLimitRoleMutation int `env:"RATE_LIMIT_ROLE_MUTATION, default=10"`

	// Logging
	LogLevel string `env:"LOG_LEVEL, default=info"`

	// Server
	ServerPort string `env:"SERVER_PORT, default=8080"`
	BaseURL    string `env:"BASE_URL"`

	// Cookie
	CookieSecure bool
	CookieDomain string `env:"COOKIE_DOMAIN"`

	// CORS / CSRF
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN, default=http://localhost:3000"`
	CSRFEnabled       bool   `env:"CSRF_ENABLED, default=true"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合は未設定の変数名をすべて含むエラーを返す。
func Load() (*Config, error) {
	return load(context.Background(), envconfig.OsLookuper())
}

// load はLookuperを差し替え可能なLoadの実装。
func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	// Required fields
	var missing []string
	required := []struct {
		key   string
		value string
	}{
		{"DATABASE_URL", cfg.DatabaseURL},
		{"DISCORD_CLIENT_ID", cfg.DiscordClientID},
		{"DISCORD_CLIENT_SECRET", cfg.DiscordClientSecret},
		{"DISCORD_REDIRECT_URI", cfg.DiscordRedirectURI},
		{"DISCORD_BOT_TOKEN", cfg.DiscordBotToken},
		{"SESSION_SECRET", cfg.SessionSecret},
		{"BASE_URL", cfg.BaseURL},
	}
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	switch cfg.SessionStore {
	case "postgres", "redis":
	default:
		return nil, fmt.Errorf("unsupported SESSION_STORE: %q (allowed: postgres, redis)", cfg.SessionStore)
	}

	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")

	return cfg, nil
}

// SessionMaxAgeDuration はセッション有効期間をtime.Durationで返す。
func (c *Config) SessionMaxAgeDuration() time.Duration {
	return time.Duration(c.SessionMaxAge) * time.Second
}
