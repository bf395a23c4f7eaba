package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fishcafe/perkportal/internal/middleware"
	"github.com/fishcafe/perkportal/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Forget はユーザーの全セッションと保存済みプロフィールを削除する。
	Forget(ctx context.Context, userID string) error
}

// UserHandler はログインユーザー情報とオーナー判定のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	owner   middleware.OwnerChecker
	cookies AuthHandlerConfig
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, owner middleware.OwnerChecker, cookies AuthHandlerConfig) *UserHandler {
	return &UserHandler{
		service: service,
		owner:   owner,
		cookies: cookies,
	}
}

// userResponse はログインユーザー情報のAPIレスポンス。
// isOwnerはサーバー側で判定した値のみを返す。
type userResponse struct {
	ID          string        `json:"id"`
	Username    string        `json:"username"`
	GlobalName  string        `json:"globalName,omitempty"`
	DisplayName string        `json:"displayName"`
	Avatar      string        `json:"avatar,omitempty"`
	Guilds      []model.Guild `json:"guilds"`
	IsOwner     bool          `json:"isOwner"`
}

// Me は現在のログインユーザー情報を返す。
// GET /api/user
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	guilds := identity.Guilds
	if guilds == nil {
		guilds = []model.Guild{}
	}

	writeJSON(w, http.StatusOK, userResponse{
		ID:          identity.User.ID,
		Username:    identity.User.Username,
		GlobalName:  identity.User.GlobalName,
		DisplayName: identity.User.DisplayName(),
		Avatar:      identity.User.Avatar,
		Guilds:      guilds,
		IsOwner:     h.owner.IsOwner(identity.User.ID),
	})
}

// CheckOwner は指定ユーザーIDがオーナーかを返す。
// GET /api/check-owner/{userId}
func (h *UserHandler) CheckOwner(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{
		"isOwner": h.owner.IsOwner(chi.URLParam(r, "userId")),
	})
}

// Forget はログインユーザーのセッションとプロフィールを削除する。
// DELETE /api/user
func (h *UserHandler) Forget(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Forget(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.cookies.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookies.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
