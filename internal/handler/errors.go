package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/fishcafe/perkportal/internal/middleware"
	"github.com/fishcafe/perkportal/internal/model"
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// successResponse は結果データを伴わない成功レスポンス。
type successResponse struct {
	Success bool `json:"success"`
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeNotOwner, model.ErrCodeNotBooster, model.ErrCodeUserMismatch,
		model.ErrCodeRoleNotHeld, model.ErrCodeImportBlocked:
		return http.StatusForbidden
	case model.ErrCodeInvalidRoleName, model.ErrCodeInvalidColor, model.ErrCodeInvalidFile,
		model.ErrCodeFileTooLarge, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeArtworkNotFound, model.ErrCodeMemberNotFound, model.ErrCodeRoleNotFound,
		model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeUpstreamFailed, model.ErrCodeImportFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON はリクエストボディをJSONとして読み込む。失敗時は400を書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return false
	}
	return true
}

// decodeOptionalJSON は空ボディを許容してJSONを読み込む。失敗時は400を書き込みfalseを返す。
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return false
	}
	return true
}

// claimedUserMatches はリクエストで申告されたuserIdをセッションのユーザーと照合する。
// 申告が空なら照合しない。不一致の場合は403を書き込みfalseを返す。
func claimedUserMatches(w http.ResponseWriter, r *http.Request, claimedUserID string) bool {
	if claimedUserID == "" {
		return true
	}
	userID, err := middleware.UserIDFromContext(r.Context())
	if err == nil && userID == claimedUserID {
		return true
	}
	middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewUserMismatchError())
	return false
}
