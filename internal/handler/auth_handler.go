// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fishcafe/perkportal/internal/metrics"
	"github.com/fishcafe/perkportal/internal/middleware"
	"github.com/fishcafe/perkportal/internal/model"
)

const oauthStateCookie = "oauth_state"

// ログイン失敗時にリダイレクト先へ付与する理由。
const (
	loginErrorOAuthFailed  = "oauth_failed"
	loginErrorNoCode       = "no_code"
	loginErrorInvalidState = "invalid_state"
	loginErrorAuthFailed   = "auth_failed"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// StateManager はOAuth stateの発行と検証を行う。auth.StateSignerを抽象化する。
type StateManager interface {
	Issue() (string, error)
	Verify(queryState, cookieState string) error
	TTL() time.Duration
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はDiscord OAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	states  StateManager
	config  AuthHandlerConfig
	metrics metrics.MetricsCollector
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, states StateManager, config AuthHandlerConfig, mc metrics.MetricsCollector) *AuthHandler {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &AuthHandler{
		service: service,
		states:  states,
		config:  config,
		metrics: mc,
	}
}

// Login はDiscord OAuthフローを開始する。
// GET /auth/discord
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := h.states.Issue()
	if err != nil {
		slog.Error("failed to issue oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int(h.states.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusFound)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/discord/callback?code=xxx&state=yyy
// 失敗時はセッションを作成せず、理由をクエリに付けてトップページへリダイレクトする。
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	// stateは一度きりの使用とし、結果に関わらず削除する
	h.clearCookie(w, oauthStateCookie, "/auth", "")

	q := r.URL.Query()

	if providerErr := q.Get("error"); providerErr != "" {
		slog.Warn("oauth provider returned error",
			slog.String("error", providerErr),
			slog.String("description", q.Get("error_description")),
		)
		h.failLogin(w, r, loginErrorOAuthFailed)
		return
	}

	code := q.Get("code")
	if code == "" {
		h.failLogin(w, r, loginErrorNoCode)
		return
	}

	var cookieState string
	if c, err := r.Cookie(oauthStateCookie); err == nil {
		cookieState = c.Value
	}
	if err := h.states.Verify(q.Get("state"), cookieState); err != nil {
		slog.Warn("oauth state verification failed", slog.String("error", err.Error()))
		h.failLogin(w, r, loginErrorInvalidState)
		return
	}

	session, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		h.failLogin(w, r, loginErrorAuthFailed)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	h.metrics.RecordLogin("success")
	http.Redirect(w, r, h.frontendURL(url.Values{"login": {"success"}}), http.StatusFound)
}

// Logout はセッションを破棄する。
// GET /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			// ログアウト失敗してもCookieはクリアする
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
		}
	}

	h.clearCookie(w, middleware.SessionCookieName, "/", h.config.CookieDomain)
	http.Redirect(w, r, h.frontendURL(nil), http.StatusFound)
}

func (h *AuthHandler) failLogin(w http.ResponseWriter, r *http.Request, reason string) {
	h.metrics.RecordLogin(reason)
	http.Redirect(w, r, h.frontendURL(url.Values{"error": {reason}}), http.StatusFound)
}

// frontendURL はBASE_URL配下のトップページURLを返す。
func (h *AuthHandler) frontendURL(q url.Values) string {
	u := strings.TrimRight(h.config.BaseURL, "/") + "/"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name, path, domain string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Domain:   domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
