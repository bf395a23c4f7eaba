package middleware

import (
	"log/slog"
	"net/http"

	"github.com/fishcafe/perkportal/internal/auth"
	"github.com/fishcafe/perkportal/internal/model"
)

// OwnerChecker はユーザーIDがオーナーかを判定する。auth.Gateを抽象化する。
type OwnerChecker interface {
	IsOwner(userID string) bool
}

// AccessClassifier はIdentityの認可区分を判定する。auth.Gateを抽象化する。
type AccessClassifier interface {
	Classify(identity *model.Identity) auth.Access
}

// NewOwnerOnlyMiddleware はオーナー以外のリクエストを拒否するミドルウェアを返す。
// 未ログインは401、ログイン済みでもオーナーでなければ403。
// 判定にはセッションのIdentityのみを使い、リクエスト内容は参照しない。
func NewOwnerOnlyMiddleware(gate AccessClassifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, _ := IdentityFromContext(r.Context())
			switch access := gate.Classify(identity); access {
			case auth.AccessOwner:
				next.ServeHTTP(w, r)
			case auth.AccessAuthenticated:
				slog.Warn("オーナー専用操作を拒否",
					slog.String("user_id", identity.User.ID),
					slog.String("access", access.String()),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewNotOwnerError())
			default:
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			}
		})
	}
}
