package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fishcafe/perkportal/internal/artwork"
	"github.com/fishcafe/perkportal/internal/middleware"
	"github.com/fishcafe/perkportal/internal/model"
)

// artworkFormField はアップロードフォームの画像フィールド名。
const artworkFormField = "artwork"

// multipartOverhead はフォームの画像以外の部分に許容するサイズ。
const multipartOverhead = 1 << 20

// ArtworkServiceInterface は作品ハンドラーが必要とするサービスインターフェース。
type ArtworkServiceInterface interface {
	List(ctx context.Context) ([]*model.Artwork, error)
	Upload(ctx context.Context, in artwork.UploadInput) (*model.Artwork, error)
	Import(ctx context.Context, in artwork.ImportInput) (*model.Artwork, error)
	Update(ctx context.Context, id string, upd model.ArtworkUpdate) (*model.Artwork, error)
	Delete(ctx context.Context, id string) error
	MaxSize() int64
}

// ArtworkHandler はアートウォールのHTTPハンドラー。
type ArtworkHandler struct {
	service ArtworkServiceInterface
}

// NewArtworkHandler はArtworkHandlerを生成する。
func NewArtworkHandler(service ArtworkServiceInterface) *ArtworkHandler {
	return &ArtworkHandler{service: service}
}

// artworkResponse は作品のAPIレスポンス。
type artworkResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	FeaturedUser string    `json:"featuredUser,omitempty"`
	URL          string    `json:"url"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

func toArtworkResponse(a *model.Artwork) artworkResponse {
	return artworkResponse{
		ID:           a.ID,
		Title:        a.Title,
		Description:  a.Description,
		FeaturedUser: a.FeaturedUser,
		URL:          a.URL,
		MimeType:     a.MimeType,
		Size:         a.Size,
		UploadedAt:   a.UploadedAt,
	}
}

// importArtworkRequest はURLインポートリクエストのボディ。
type importArtworkRequest struct {
	URL          string `json:"url"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	FeaturedUser string `json:"featuredUser"`
	UserID       string `json:"userId"`
}

// updateArtworkRequest は作品更新リクエストのボディ。
type updateArtworkRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	UserID      string `json:"userId"`
}

// deleteArtworkRequest は作品削除リクエストのボディ。ボディ自体は省略できる。
type deleteArtworkRequest struct {
	UserID string `json:"userId"`
}

// List は全作品を新しい順で返す。
// GET /api/artwork
func (h *ArtworkHandler) List(w http.ResponseWriter, r *http.Request) {
	artworks, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]artworkResponse, 0, len(artworks))
	for _, a := range artworks {
		resp = append(resp, toArtworkResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Upload はmultipartフォームで送られた画像を登録する。
// POST /api/artwork/upload
func (h *ArtworkHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	maxSize := h.service.MaxSize()

	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewFileTooLargeError(maxSize))
			return
		}
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidFileError("フォームの解析に失敗しました"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	if !claimedUserMatches(w, r, r.FormValue("userId")) {
		return
	}

	file, header, err := r.FormFile(artworkFormField)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidFileError("ファイルが選択されていません"))
		return
	}
	defer file.Close()

	if header.Size > maxSize {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewFileTooLargeError(maxSize))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		slog.Error("failed to read uploaded file", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidFileError("ファイルの読み込みに失敗しました"))
		return
	}

	a, err := h.service.Upload(r.Context(), artwork.UploadInput{
		Metadata: artwork.Metadata{
			Title:        r.FormValue("title"),
			Description:  r.FormValue("description"),
			FeaturedUser: r.FormValue("featuredUser"),
		},
		DeclaredType: header.Header.Get("Content-Type"),
		Data:         data,
		UploadedBy:   userID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toArtworkResponse(a))
}

// Import はURLを指定して画像を取り込む。
// POST /api/artwork/import
func (h *ArtworkHandler) Import(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	var req importArtworkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !claimedUserMatches(w, r, req.UserID) {
		return
	}

	a, err := h.service.Import(r.Context(), artwork.ImportInput{
		Metadata: artwork.Metadata{
			Title:        req.Title,
			Description:  req.Description,
			FeaturedUser: req.FeaturedUser,
		},
		URL:        req.URL,
		UploadedBy: userID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toArtworkResponse(a))
}

// Update は作品のタイトルと説明を更新する。空のフィールドは変更しない。
// PUT /api/artwork/{id}
func (h *ArtworkHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateArtworkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !claimedUserMatches(w, r, req.UserID) {
		return
	}

	upd := model.ArtworkUpdate{Title: req.Title, Description: req.Description}
	a, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toArtworkResponse(a))
}

// Delete は作品を削除する。
// DELETE /api/artwork/{id}
func (h *ArtworkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req deleteArtworkRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	if !claimedUserMatches(w, r, req.UserID) {
		return
	}

	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
