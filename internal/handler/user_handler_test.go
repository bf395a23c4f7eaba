package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/fishcafe/perkportal/internal/auth"
	"github.com/fishcafe/perkportal/internal/middleware"
	"github.com/fishcafe/perkportal/internal/model"
)

// --- モック定義 ---

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	forgetFn func(ctx context.Context, userID string) error
}

func (m *mockUserService) Forget(ctx context.Context, userID string) error {
	if m.forgetFn != nil {
		return m.forgetFn(ctx, userID)
	}
	return nil
}

// staticOwner は固定のユーザーIDだけをオーナーとみなすOwnerChecker。
type staticOwner string

func (o staticOwner) IsOwner(userID string) bool {
	return userID != "" && userID == string(o)
}

func (o staticOwner) Classify(identity *model.Identity) auth.Access {
	switch {
	case identity == nil || identity.User.ID == "":
		return auth.AccessAnonymous
	case o.IsOwner(identity.User.ID):
		return auth.AccessOwner
	default:
		return auth.AccessAuthenticated
	}
}

// withIdentity はテスト用にリクエストへIdentityを注入する。
func withIdentity(r *http.Request, userID string) *http.Request {
	identity := &model.Identity{
		User: model.User{ID: userID, Username: "user-" + userID},
	}
	return r.WithContext(middleware.ContextWithIdentity(r.Context(), identity))
}

// withURLParams はchiのURLパラメータをリクエストに設定する。
func withURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body.Code
}

// --- GET /api/user ---

func TestUserHandler_Me_ReturnsIdentityAndOwnerFlag(t *testing.T) {
	tests := []struct {
		name      string
		owner     staticOwner
		wantOwner bool
	}{
		{name: "オーナー", owner: "owner-1", wantOwner: true},
		{name: "一般ユーザー", owner: "someone-else", wantOwner: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewUserHandler(&mockUserService{}, tt.owner, testAuthConfig)

			identity := &model.Identity{
				User:   model.User{ID: "owner-1", Username: "alice", GlobalName: "Alice", Avatar: "abc"},
				Guilds: []model.Guild{{ID: "g1", Name: "Guild One"}},
			}
			req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
			req = req.WithContext(middleware.ContextWithIdentity(req.Context(), identity))
			w := httptest.NewRecorder()

			h.Me(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}
			var got userResponse
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.ID != "owner-1" || got.Username != "alice" {
				t.Errorf("user = %+v", got)
			}
			if got.DisplayName != "Alice" {
				t.Errorf("displayName = %q, want %q", got.DisplayName, "Alice")
			}
			if len(got.Guilds) != 1 || got.Guilds[0].ID != "g1" {
				t.Errorf("guilds = %+v", got.Guilds)
			}
			if got.IsOwner != tt.wantOwner {
				t.Errorf("isOwner = %v, want %v", got.IsOwner, tt.wantOwner)
			}
		})
	}
}

func TestUserHandler_Me_NilGuilds_ReturnsEmptyArray(t *testing.T) {
	h := NewUserHandler(&mockUserService{}, staticOwner(""), testAuthConfig)

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/user", nil), "u1")
	w := httptest.NewRecorder()
	h.Me(w, req)

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(raw["guilds"]) != "[]" {
		t.Errorf("guilds = %s, want []", raw["guilds"])
	}
}

func TestUserHandler_Me_NoIdentity_Returns401(t *testing.T) {
	h := NewUserHandler(&mockUserService{}, staticOwner("owner-1"), testAuthConfig)

	w := httptest.NewRecorder()
	h.Me(w, httptest.NewRequest(http.MethodGet, "/api/user", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if code := decodeErrorCode(t, w); code != model.ErrCodeUnauthorized {
		t.Errorf("code = %q, want %q", code, model.ErrCodeUnauthorized)
	}
}

// --- GET /api/check-owner/{userId} ---

func TestUserHandler_CheckOwner(t *testing.T) {
	h := NewUserHandler(&mockUserService{}, staticOwner("owner-1"), testAuthConfig)

	tests := []struct {
		userID string
		want   bool
	}{
		{userID: "owner-1", want: true},
		{userID: "other", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.userID, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/check-owner/"+tt.userID, nil)
			req = withURLParams(req, map[string]string{"userId": tt.userID})
			w := httptest.NewRecorder()

			h.CheckOwner(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}
			var got map[string]bool
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got["isOwner"] != tt.want {
				t.Errorf("isOwner = %v, want %v", got["isOwner"], tt.want)
			}
		})
	}
}

// --- DELETE /api/user ---

func TestUserHandler_Forget_Success_ClearsCookie(t *testing.T) {
	var gotUserID string
	svc := &mockUserService{
		forgetFn: func(_ context.Context, userID string) error {
			gotUserID = userID
			return nil
		},
	}
	h := NewUserHandler(svc, staticOwner(""), testAuthConfig)

	req := withIdentity(httptest.NewRequest(http.MethodDelete, "/api/user", nil), "user-123")
	w := httptest.NewRecorder()
	h.Forget(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if gotUserID != "user-123" {
		t.Errorf("userID = %q, want %q", gotUserID, "user-123")
	}
	if c := findCookie(resp, middleware.SessionCookieName); c == nil || c.MaxAge >= 0 {
		t.Error("session cookie should be cleared")
	}
}

func TestUserHandler_Forget_NoIdentity_Returns401(t *testing.T) {
	called := false
	svc := &mockUserService{
		forgetFn: func(context.Context, string) error {
			called = true
			return nil
		},
	}
	h := NewUserHandler(svc, staticOwner(""), testAuthConfig)

	w := httptest.NewRecorder()
	h.Forget(w, httptest.NewRequest(http.MethodDelete, "/api/user", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if called {
		t.Error("Forget should not be called without identity")
	}
}

func TestUserHandler_Forget_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "ユーザーが存在しない", err: model.NewUserNotFoundError(), wantStatus: http.StatusNotFound},
		{name: "内部エラー", err: errors.New("db down"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockUserService{
				forgetFn: func(context.Context, string) error { return tt.err },
			}
			h := NewUserHandler(svc, staticOwner(""), testAuthConfig)

			req := withIdentity(httptest.NewRequest(http.MethodDelete, "/api/user", nil), "user-123")
			w := httptest.NewRecorder()
			h.Forget(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if c := findCookie(w.Result(), middleware.SessionCookieName); c != nil {
				t.Error("session cookie should not be touched on failure")
			}
		})
	}
}
