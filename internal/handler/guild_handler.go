package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fishcafe/perkportal/internal/booster"
	"github.com/fishcafe/perkportal/internal/middleware"
	"github.com/fishcafe/perkportal/internal/model"
)

// BoosterServiceInterface はギルドハンドラーが必要とするサービスインターフェース。
type BoosterServiceInterface interface {
	LookupMember(ctx context.Context, guildID, userID string) (*booster.MemberSummary, error)
	CreateRole(ctx context.Context, identity *model.Identity, guildID string, req model.RoleRequest) (*model.Role, error)
	UpdateRoleColor(ctx context.Context, identity *model.Identity, guildID, roleID string, req model.RoleColorRequest) (*model.Role, error)
}

// GuildHandler はギルドメンバー照会とカスタムロールのHTTPハンドラー。
type GuildHandler struct {
	service BoosterServiceInterface
}

// NewGuildHandler はGuildHandlerを生成する。
func NewGuildHandler(service BoosterServiceInterface) *GuildHandler {
	return &GuildHandler{service: service}
}

// roleResponse はロール操作のAPIレスポンス。
type roleResponse struct {
	Success bool        `json:"success"`
	Role    *model.Role `json:"role"`
}

// GetMember はメンバーのブースター状態と保持ロールを返す。
// GET /api/guilds/{guildId}/members/{userId}
func (h *GuildHandler) GetMember(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.LookupMember(r.Context(), chi.URLParam(r, "guildId"), chi.URLParam(r, "userId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// CreateRole はブースター本人のカスタムロールを作成する。
// POST /api/guilds/{guildId}/roles/create
func (h *GuildHandler) CreateRole(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req model.RoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	role, err := h.service.CreateRole(r.Context(), identity, chi.URLParam(r, "guildId"), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roleResponse{Success: true, Role: role})
}

// UpdateRoleColor は保持しているロールの色を変更する。
// PUT /api/guilds/{guildId}/roles/{roleId}/color
func (h *GuildHandler) UpdateRoleColor(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req model.RoleColorRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	role, err := h.service.UpdateRoleColor(r.Context(), identity, chi.URLParam(r, "guildId"), chi.URLParam(r, "roleId"), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roleResponse{Success: true, Role: role})
}
