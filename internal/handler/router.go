package handler

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/fishcafe/perkportal/internal/metrics"
	"github.com/fishcafe/perkportal/internal/middleware"
)

// HealthChecker はヘルスチェック対象の依存先。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// OwnerGate はオーナー判定と認可区分の判定を行う。auth.Gateが満たす。
type OwnerGate interface {
	middleware.OwnerChecker
	middleware.AccessClassifier
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	IdentityLoader    middleware.IdentityLoader
	Gate              OwnerGate
	CORSAllowedOrigin string
	CSRFEnabled       bool
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler
	HealthChecker     HealthChecker

	// 認証
	AuthService  AuthServiceInterface
	StateManager StateManager
	AuthConfig   AuthHandlerConfig

	// ドメイン
	UserService    UserServiceInterface
	Benefits       BenefitLister
	ArtworkService ArtworkServiceInterface
	BoosterService BoosterServiceInterface

	// アップロード画像の配信
	UploadDir       string
	UploadURLPrefix string
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → SecurityHeaders → CORS → Session → Logging → Metrics
//	/api/* のみ: RateLimit(General) → CSRF
//
// 権限が必要なルートはさらにRequireAuthまたはOwnerOnlyを通す。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	mc := deps.Metrics
	if mc == nil {
		mc = metrics.Nop{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	csrfConfig := middleware.CSRFConfig{
		CookieSecure: deps.AuthConfig.CookieSecure,
		CookieDomain: deps.AuthConfig.CookieDomain,
	}

	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.AuthConfig.CookieSecure))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSessionMiddleware(deps.IdentityLoader))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(mc))

	authHandler := NewAuthHandler(deps.AuthService, deps.StateManager, deps.AuthConfig, mc)
	userHandler := NewUserHandler(deps.UserService, deps.Gate, deps.AuthConfig)
	benefitHandler := NewBenefitHandler(deps.Benefits)
	artworkHandler := NewArtworkHandler(deps.ArtworkService)
	guildHandler := NewGuildHandler(deps.BoosterService)

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	if deps.UploadDir != "" {
		prefix := "/" + strings.Trim(deps.UploadURLPrefix, "/")
		if prefix == "/" {
			prefix = "/uploads"
		}
		r.Handle(prefix+"/*", http.StripPrefix(prefix+"/", uploadFileServer(deps.UploadDir)))
	}

	// --- 認証ルート（OAuthフロー） ---
	r.Route("/auth", func(r chi.Router) {
		r.Get("/discord", authHandler.Login)
		r.Get("/discord/callback", authHandler.Callback)
		r.Get("/logout", authHandler.Logout)
	})

	// --- API ---
	r.Route("/api", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}
		if deps.CSRFEnabled {
			r.Use(middleware.NewCSRFMiddleware(csrfConfig))
		}

		r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(csrfConfig))

		// 認証不要
		r.Get("/benefits", benefitHandler.List)
		r.Get("/artwork", artworkHandler.List)
		r.Get("/check-owner/{userId}", userHandler.CheckOwner)
		r.Get("/guilds/{guildId}/members/{userId}", guildHandler.GetMember)

		// ログイン必須
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)

			r.Get("/user", userHandler.Me)
			r.Delete("/user", userHandler.Forget)

			r.Group(func(r chi.Router) {
				if deps.RateLimiter != nil {
					r.Use(deps.RateLimiter.RoleMutationMiddleware())
				}
				r.Post("/guilds/{guildId}/roles/create", guildHandler.CreateRole)
				r.Put("/guilds/{guildId}/roles/{roleId}/color", guildHandler.UpdateRoleColor)
			})
		})

		// オーナー専用
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewOwnerOnlyMiddleware(deps.Gate))

			r.Post("/artwork/upload", artworkHandler.Upload)
			r.Post("/artwork/import", artworkHandler.Import)
			r.Put("/artwork/{id}", artworkHandler.Update)
			r.Delete("/artwork/{id}", artworkHandler.Delete)
		})
	})

	return r
}

// healthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// uploadFileServer はアップロードディレクトリのファイルを配信する。
// ディレクトリ一覧と隠しファイルは404にする。
func uploadFileServer(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		if name == "" || strings.HasPrefix(name, ".") || strings.Contains(name, "/") {
			http.NotFound(w, r)
			return
		}
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		fs.ServeHTTP(w, r)
	})
}
