// Package app はアプリケーションの初期化と起動モードごとのワイヤリングを提供する。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/fishcafe/perkportal/internal/artwork"
	"github.com/fishcafe/perkportal/internal/auth"
	"github.com/fishcafe/perkportal/internal/benefit"
	"github.com/fishcafe/perkportal/internal/booster"
	"github.com/fishcafe/perkportal/internal/config"
	"github.com/fishcafe/perkportal/internal/database"
	"github.com/fishcafe/perkportal/internal/discord"
	"github.com/fishcafe/perkportal/internal/handler"
	"github.com/fishcafe/perkportal/internal/logger"
	"github.com/fishcafe/perkportal/internal/metrics"
	"github.com/fishcafe/perkportal/internal/middleware"
	"github.com/fishcafe/perkportal/internal/repository"
	"github.com/fishcafe/perkportal/internal/security"
	"github.com/fishcafe/perkportal/internal/storage"
	"github.com/fishcafe/perkportal/internal/user"
	"github.com/fishcafe/perkportal/internal/worker/cleanup"
)

// oauthStateTTL はOAuth stateの有効期間。
const oauthStateTTL = 10 * time.Minute

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定に従ってログレベルを変更する
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("session_store", cfg.SessionStore),
		slog.Duration("session_max_age", cfg.SessionMaxAgeDuration()),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandCleanup:
		return runCleanup(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はPostgreSQLへの接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return db, nil
}

// openSessionRepo はSESSION_STOREに応じたセッションリポジトリを返す。
// 戻り値のclose関数は呼び出し側が終了時に呼ぶ。
func openSessionRepo(ctx context.Context, cfg *config.Config, db *sql.DB) (repository.SessionRepository, func(), error) {
	if cfg.SessionStore != "redis" {
		return repository.NewPostgresSessionRepo(db), func() {}, nil
	}

	client, err := database.OpenRedis(ctx, database.RedisConfig{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err != nil {
		return nil, nil, err
	}
	slog.Info("redis connection established", slog.String("addr", cfg.RedisAddr))
	return repository.NewRedisSessionRepo(client), func() { client.Close() }, nil
}

// newMetrics はGo・プロセスメトリクスを含むレジストリとCollectorを生成する。
func newMetrics() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx := context.Background()

	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	artworkRepo := repository.NewPostgresArtworkRepo(db)
	sessionRepo, closeSessions, err := openSessionRepo(ctx, cfg, db)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer closeSessions()

	// 3. メトリクス
	reg, collector := newMetrics()

	// 4. 認証
	oauthProvider := auth.NewDiscordOAuthProvider(auth.DiscordOAuthConfig{
		ClientID:     cfg.DiscordClientID,
		ClientSecret: cfg.DiscordClientSecret,
		RedirectURL:  cfg.DiscordRedirectURI,
		Timeout:      cfg.DiscordTimeout,
	})
	authService := auth.NewService(oauthProvider, userRepo, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)
	states := auth.NewStateSigner(cfg.SessionSecret, oauthStateTTL)
	gate := auth.NewGate(cfg.OwnerID)
	if cfg.OwnerID == "" {
		slog.Warn("OWNER_ID is not set; owner-only operations are disabled")
	}

	// 5. Discord Bot
	discordClient, err := discord.NewClient(discord.Config{
		BotToken: cfg.DiscordBotToken,
		Timeout:  cfg.DiscordTimeout,
		Metrics:  collector,
	})
	if err != nil {
		return fmt.Errorf("failed to create discord client: %w", err)
	}
	boosterService := booster.NewService(discordClient, collector)

	// 6. アートウォール
	store, err := storage.NewLocalStore(cfg.UploadDir, cfg.UploadURLPrefix)
	if err != nil {
		return fmt.Errorf("failed to prepare upload directory: %w", err)
	}
	importer := artwork.NewHTTPImporter(security.NewSSRFGuard(), cfg.ImportTimeout, cfg.ArtworkMaxSize)
	artworkService := artwork.NewService(artworkRepo, store, importer, security.NewTextSanitizer(), collector,
		artwork.ServiceConfig{MaxSize: cfg.ArtworkMaxSize},
	)

	// 7. 特典カタログ
	catalog, err := benefit.Load(cfg.BenefitsFile)
	if err != nil {
		return fmt.Errorf("failed to load benefits: %w", err)
	}

	// 8. ユーザー
	userService := user.NewService(userRepo, sessionRepo)

	// 9. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitRoleMutation),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		IdentityLoader:    authService,
		Gate:              gate,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFEnabled:       cfg.CSRFEnabled,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(reg),
		HealthChecker:     db,

		AuthService:  authService,
		StateManager: states,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		UserService:    userService,
		Benefits:       catalog,
		ArtworkService: artworkService,
		BoosterService: boosterService,

		UploadDir:       store.Dir(),
		UploadURLPrefix: cfg.UploadURLPrefix,
	})

	// 10. HTTPサーバーの起動
	// WriteTimeoutはアップロードとURLインポートを考慮して長めに取る
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// newCleanupJob はクリーンアップジョブと後始末用の関数を生成する。
func newCleanupJob(ctx context.Context, cfg *config.Config) (*cleanup.CleanupJob, func(), error) {
	db, err := openDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}

	sessionRepo, closeSessions, err := openSessionRepo(ctx, cfg, db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to open session store: %w", err)
	}

	store, err := storage.NewLocalStore(cfg.UploadDir, cfg.UploadURLPrefix)
	if err != nil {
		closeSessions()
		db.Close()
		return nil, nil, fmt.Errorf("failed to prepare upload directory: %w", err)
	}

	_, collector := newMetrics()
	job := cleanup.NewCleanupJob(sessionRepo, repository.NewPostgresArtworkRepo(db), store, slog.Default(), collector)

	return job, func() {
		closeSessions()
		db.Close()
	}, nil
}

// runWorker はワーカーモードで起動する。
// SESSION_CLEANUP_INTERVAL間隔でクリーンアップジョブを実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job, closeFn, err := newCleanupJob(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	job.Start(ctx, cfg.SessionCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runCleanup はクリーンアップジョブを1回だけ実行して終了する。
// cronなど外部スケジューラから呼び出す用途。
func runCleanup(cfg *config.Config) error {
	ctx := context.Background()

	job, closeFn, err := newCleanupJob(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	return job.Run(ctx)
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.SchemaVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("schema version %d is dirty", version)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
// 解析できないURLは全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
