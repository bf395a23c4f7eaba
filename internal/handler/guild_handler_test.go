package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fishcafe/perkportal/internal/booster"
	"github.com/fishcafe/perkportal/internal/model"
)

// --- モック定義 ---

type mockBoosterService struct {
	lookupMemberFn    func(ctx context.Context, guildID, userID string) (*booster.MemberSummary, error)
	createRoleFn      func(ctx context.Context, identity *model.Identity, guildID string, req model.RoleRequest) (*model.Role, error)
	updateRoleColorFn func(ctx context.Context, identity *model.Identity, guildID, roleID string, req model.RoleColorRequest) (*model.Role, error)
}

func (m *mockBoosterService) LookupMember(ctx context.Context, guildID, userID string) (*booster.MemberSummary, error) {
	if m.lookupMemberFn != nil {
		return m.lookupMemberFn(ctx, guildID, userID)
	}
	return nil, model.NewMemberNotFoundError()
}

func (m *mockBoosterService) CreateRole(ctx context.Context, identity *model.Identity, guildID string, req model.RoleRequest) (*model.Role, error) {
	if m.createRoleFn != nil {
		return m.createRoleFn(ctx, identity, guildID, req)
	}
	return nil, errors.New("not configured")
}

func (m *mockBoosterService) UpdateRoleColor(ctx context.Context, identity *model.Identity, guildID, roleID string, req model.RoleColorRequest) (*model.Role, error) {
	if m.updateRoleColorFn != nil {
		return m.updateRoleColorFn(ctx, identity, guildID, roleID, req)
	}
	return nil, errors.New("not configured")
}

// --- GET /api/guilds/{guildId}/members/{userId} ---

func TestGuildHandler_GetMember_ReturnsSummary(t *testing.T) {
	svc := &mockBoosterService{
		lookupMemberFn: func(_ context.Context, guildID, userID string) (*booster.MemberSummary, error) {
			if guildID != "g1" || userID != "u1" {
				t.Errorf("guildID=%q userID=%q", guildID, userID)
			}
			return &booster.MemberSummary{
				ID:        "u1",
				Username:  "alice",
				IsBooster: true,
				Roles:     []model.Role{{ID: "r1", Name: "Alice Role", Color: "#ff0000"}},
			}, nil
		},
	}
	h := NewGuildHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/guilds/g1/members/u1", nil)
	req = withURLParams(req, map[string]string{"guildId": "g1", "userId": "u1"})
	w := httptest.NewRecorder()
	h.GetMember(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var got booster.MemberSummary
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.IsBooster || len(got.Roles) != 1 || got.Roles[0].Color != "#ff0000" {
		t.Errorf("summary = %+v", got)
	}
}

func TestGuildHandler_GetMember_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "メンバーが存在しない", err: model.NewMemberNotFoundError(), wantStatus: http.StatusNotFound},
		{name: "Discord API障害", err: model.NewUpstreamFailedError(), wantStatus: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockBoosterService{
				lookupMemberFn: func(context.Context, string, string) (*booster.MemberSummary, error) {
					return nil, tt.err
				},
			}
			h := NewGuildHandler(svc)

			req := httptest.NewRequest(http.MethodGet, "/api/guilds/g1/members/u1", nil)
			req = withURLParams(req, map[string]string{"guildId": "g1", "userId": "u1"})
			w := httptest.NewRecorder()
			h.GetMember(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

// --- POST /api/guilds/{guildId}/roles/create ---

func TestGuildHandler_CreateRole_UsesSessionIdentity(t *testing.T) {
	var gotIdentity *model.Identity
	var gotReq model.RoleRequest
	svc := &mockBoosterService{
		createRoleFn: func(_ context.Context, identity *model.Identity, guildID string, req model.RoleRequest) (*model.Role, error) {
			gotIdentity, gotReq = identity, req
			return &model.Role{ID: "r9", Name: req.RoleName, Color: req.Color}, nil
		},
	}
	h := NewGuildHandler(svc)

	body := `{"userId":"u1","roleName":"Shiny","color":"#00ff00"}`
	req := httptest.NewRequest(http.MethodPost, "/api/guilds/g1/roles/create", strings.NewReader(body))
	req = withIdentity(req, "u1")
	req = withURLParams(req, map[string]string{"guildId": "g1"})
	w := httptest.NewRecorder()
	h.CreateRole(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotIdentity == nil || gotIdentity.User.ID != "u1" {
		t.Errorf("identity = %+v", gotIdentity)
	}
	if gotReq.RoleName != "Shiny" || gotReq.Color != "#00ff00" {
		t.Errorf("req = %+v", gotReq)
	}

	var got roleResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Success || got.Role == nil || got.Role.ID != "r9" {
		t.Errorf("response = %+v", got)
	}
}

func TestGuildHandler_CreateRole_NoIdentity_Returns401(t *testing.T) {
	called := false
	svc := &mockBoosterService{
		createRoleFn: func(context.Context, *model.Identity, string, model.RoleRequest) (*model.Role, error) {
			called = true
			return nil, nil
		},
	}
	h := NewGuildHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/guilds/g1/roles/create", strings.NewReader(`{}`))
	req = withURLParams(req, map[string]string{"guildId": "g1"})
	w := httptest.NewRecorder()
	h.CreateRole(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if called {
		t.Error("CreateRole should not be called")
	}
}

func TestGuildHandler_CreateRole_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "ブースターではない", err: model.NewNotBoosterError(), wantStatus: http.StatusForbidden, wantCode: model.ErrCodeNotBooster},
		{name: "本人ではない", err: model.NewUserMismatchError(), wantStatus: http.StatusForbidden, wantCode: model.ErrCodeUserMismatch},
		{name: "ロール名が不正", err: model.NewInvalidRoleNameError(), wantStatus: http.StatusBadRequest, wantCode: model.ErrCodeInvalidRoleName},
		{name: "色が不正", err: model.NewInvalidColorError("red"), wantStatus: http.StatusBadRequest, wantCode: model.ErrCodeInvalidColor},
		{name: "Discord API障害", err: model.NewUpstreamFailedError(), wantStatus: http.StatusBadGateway, wantCode: model.ErrCodeUpstreamFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockBoosterService{
				createRoleFn: func(context.Context, *model.Identity, string, model.RoleRequest) (*model.Role, error) {
					return nil, tt.err
				},
			}
			h := NewGuildHandler(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/guilds/g1/roles/create",
				strings.NewReader(`{"roleName":"x","color":"#000000"}`))
			req = withIdentity(req, "u1")
			req = withURLParams(req, map[string]string{"guildId": "g1"})
			w := httptest.NewRecorder()
			h.CreateRole(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if code := decodeErrorCode(t, w); code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

// --- PUT /api/guilds/{guildId}/roles/{roleId}/color ---

func TestGuildHandler_UpdateRoleColor_Success(t *testing.T) {
	var gotRoleID string
	svc := &mockBoosterService{
		updateRoleColorFn: func(_ context.Context, _ *model.Identity, guildID, roleID string, req model.RoleColorRequest) (*model.Role, error) {
			gotRoleID = roleID
			return &model.Role{ID: roleID, Name: "Shiny", Color: req.Color}, nil
		},
	}
	h := NewGuildHandler(svc)

	req := httptest.NewRequest(http.MethodPut, "/api/guilds/g1/roles/r1/color", strings.NewReader(`{"color":"#123456"}`))
	req = withIdentity(req, "u1")
	req = withURLParams(req, map[string]string{"guildId": "g1", "roleId": "r1"})
	w := httptest.NewRecorder()
	h.UpdateRoleColor(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotRoleID != "r1" {
		t.Errorf("roleID = %q, want r1", gotRoleID)
	}
	var got roleResponse
	json.NewDecoder(w.Body).Decode(&got)
	if got.Role == nil || got.Role.Color != "#123456" {
		t.Errorf("response = %+v", got)
	}
}

func TestGuildHandler_UpdateRoleColor_RoleNotHeld_Returns403(t *testing.T) {
	svc := &mockBoosterService{
		updateRoleColorFn: func(context.Context, *model.Identity, string, string, model.RoleColorRequest) (*model.Role, error) {
			return nil, model.NewRoleNotHeldError()
		},
	}
	h := NewGuildHandler(svc)

	req := httptest.NewRequest(http.MethodPut, "/api/guilds/g1/roles/r1/color", strings.NewReader(`{"color":"#123456"}`))
	req = withIdentity(req, "u1")
	req = withURLParams(req, map[string]string{"guildId": "g1", "roleId": "r1"})
	w := httptest.NewRecorder()
	h.UpdateRoleColor(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestGuildHandler_UpdateRoleColor_InvalidJSON_Returns400(t *testing.T) {
	h := NewGuildHandler(&mockBoosterService{})

	req := httptest.NewRequest(http.MethodPut, "/api/guilds/g1/roles/r1/color", strings.NewReader(`not json`))
	req = withIdentity(req, "u1")
	req = withURLParams(req, map[string]string{"guildId": "g1", "roleId": "r1"})
	w := httptest.NewRecorder()
	h.UpdateRoleColor(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
