// Package artwork はアートウォール作品の登録・編集・削除を提供する。
package artwork

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fishcafe/perkportal/internal/metrics"
	"github.com/fishcafe/perkportal/internal/model"
	"github.com/fishcafe/perkportal/internal/repository"
	"github.com/fishcafe/perkportal/internal/security"
	"github.com/fishcafe/perkportal/internal/storage"
)

// Importer はURLから画像を取得するインターフェース。
type Importer interface {
	Fetch(ctx context.Context, rawURL string) (*FetchedImage, error)
}

// Metadata は作品に付与する利用者入力。
type Metadata struct {
	Title        string `validate:"max=100"`
	Description  string `validate:"max=1000"`
	FeaturedUser string `validate:"max=64"`
}

// UploadInput はアップロードされた画像と付随情報。
type UploadInput struct {
	Metadata
	DeclaredType string
	Data         []byte
	UploadedBy   string
}

// ImportInput はURLインポートの入力。
type ImportInput struct {
	Metadata
	URL        string
	UploadedBy string
}

// Service は作品管理のビジネスロジックを提供する。
type Service struct {
	repo      repository.ArtworkRepository
	store     storage.Store
	importer  Importer
	sanitizer security.TextSanitizer
	validate  *validator.Validate
	metrics   metrics.MetricsCollector
	maxSize   int64
	now       func() time.Time
}

// ServiceConfig はServiceの設定。
type ServiceConfig struct {
	MaxSize int64
}

// NewService はServiceを生成する。importerがnilの場合、URLインポートは利用できない。
func NewService(
	repo repository.ArtworkRepository,
	store storage.Store,
	importer Importer,
	sanitizer security.TextSanitizer,
	mc metrics.MetricsCollector,
	cfg ServiceConfig,
) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	if sanitizer == nil {
		sanitizer = security.NewTextSanitizer()
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	return &Service{
		repo:      repo,
		store:     store,
		importer:  importer,
		sanitizer: sanitizer,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		metrics:   mc,
		maxSize:   cfg.MaxSize,
		now:       time.Now,
	}
}

// MaxSize は受け付ける画像サイズの上限を返す。
func (s *Service) MaxSize() int64 {
	return s.maxSize
}

// List は全作品を新しい順で返す。
func (s *Service) List(ctx context.Context) ([]*model.Artwork, error) {
	artworks, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("作品一覧の取得に失敗: %w", err)
	}
	if artworks == nil {
		artworks = []*model.Artwork{}
	}
	return artworks, nil
}

// Upload は画像を検証・保存し、作品レコードを作成する。
// 検証に失敗した場合はファイルもレコードも作成しない。
func (s *Service) Upload(ctx context.Context, in UploadInput) (*model.Artwork, error) {
	meta, err := s.cleanMetadata(in.Metadata)
	if err != nil {
		s.metrics.RecordArtworkOperation("upload", "invalid")
		return nil, err
	}

	info, err := ValidateImage(in.DeclaredType, in.Data, s.maxSize)
	if err != nil {
		s.metrics.RecordArtworkOperation("upload", "invalid")
		return nil, err
	}

	a, err := s.persist(ctx, meta, info, in.Data, in.UploadedBy)
	if err != nil {
		s.metrics.RecordArtworkOperation("upload", "error")
		return nil, err
	}
	s.metrics.RecordArtworkOperation("upload", "success")
	return a, nil
}

// Import はURLから画像を取得し、アップロードと同じ検証を経て作品を作成する。
func (s *Service) Import(ctx context.Context, in ImportInput) (*model.Artwork, error) {
	if s.importer == nil {
		return nil, model.NewImportFailedError("URLインポートは無効です")
	}

	meta, err := s.cleanMetadata(in.Metadata)
	if err != nil {
		s.metrics.RecordArtworkOperation("import", "invalid")
		return nil, err
	}

	fetched, err := s.importer.Fetch(ctx, in.URL)
	if err != nil {
		s.metrics.RecordArtworkOperation("import", "failed")
		return nil, err
	}

	info, err := ValidateImage(fetched.ContentType, fetched.Data, s.maxSize)
	if err != nil {
		s.metrics.RecordArtworkOperation("import", "invalid")
		return nil, err
	}

	a, err := s.persist(ctx, meta, info, fetched.Data, in.UploadedBy)
	if err != nil {
		s.metrics.RecordArtworkOperation("import", "error")
		return nil, err
	}

	slog.Info("作品をURLからインポート",
		slog.String("artwork_id", a.ID),
		slog.String("source_url", fetched.SourceURL),
	)
	s.metrics.RecordArtworkOperation("import", "success")
	return a, nil
}

// Update は空でないフィールドだけを更新する。
func (s *Service) Update(ctx context.Context, id string, upd model.ArtworkUpdate) (*model.Artwork, error) {
	upd.Title = s.sanitizer.SanitizeText(upd.Title)
	upd.Description = s.sanitizer.SanitizeText(upd.Description)
	if err := s.validate.Struct(upd); err != nil {
		return nil, model.NewInvalidRequestError("タイトルは100文字、説明は1000文字以内で入力してください")
	}

	if !validArtworkID(id) {
		return nil, model.NewArtworkNotFoundError(id)
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("作品の取得に失敗: %w", err)
	}
	if existing == nil {
		return nil, model.NewArtworkNotFoundError(id)
	}

	upd.Apply(existing)

	updated, err := s.repo.Update(ctx, existing)
	if err != nil {
		return nil, fmt.Errorf("作品の更新に失敗: %w", err)
	}
	if updated == nil {
		return nil, model.NewArtworkNotFoundError(id)
	}
	s.metrics.RecordArtworkOperation("update", "success")
	return updated, nil
}

// Delete は作品レコードを削除し、続けて画像ファイルを削除する。
// ファイル削除の失敗はログに残すのみで、孤立ファイルはクリーンアップジョブが回収する。
func (s *Service) Delete(ctx context.Context, id string) error {
	if !validArtworkID(id) {
		return model.NewArtworkNotFoundError(id)
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("作品の削除に失敗: %w", err)
	}
	if deleted == nil {
		return model.NewArtworkNotFoundError(id)
	}

	if err := s.store.Delete(ctx, deleted.StorageKey); err != nil {
		slog.Warn("画像ファイルの削除に失敗",
			slog.String("artwork_id", id),
			slog.String("storage_key", deleted.StorageKey),
			slog.String("error", err.Error()),
		)
	}
	s.metrics.RecordArtworkOperation("delete", "success")
	return nil
}

// validArtworkID は作品IDがUUID形式かどうかを判定する。
// artworks.idはUUID型のため、形式外のIDは存在しない作品として扱う。
func validArtworkID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *Service) cleanMetadata(m Metadata) (Metadata, error) {
	m.Title = s.sanitizer.SanitizeText(m.Title)
	m.Description = s.sanitizer.SanitizeText(m.Description)
	m.FeaturedUser = strings.TrimSpace(s.sanitizer.SanitizeText(m.FeaturedUser))
	if err := s.validate.Struct(m); err != nil {
		return m, model.NewInvalidRequestError("タイトルは100文字、説明は1000文字以内で入力してください")
	}
	if m.Title == "" {
		m.Title = model.DefaultArtworkTitle
	}
	return m, nil
}

// persist はファイルを保存してからレコードを作成する。
// レコード作成に失敗した場合は保存済みファイルを削除する。
func (s *Service) persist(ctx context.Context, meta Metadata, info *ImageInfo, data []byte, uploadedBy string) (*model.Artwork, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("作品IDの生成に失敗: %w", err)
	}

	key, err := s.store.Save(ctx, data, info.Extension)
	if err != nil {
		return nil, fmt.Errorf("画像の保存に失敗: %w", err)
	}

	a := &model.Artwork{
		ID:           id.String(),
		Title:        meta.Title,
		Description:  meta.Description,
		FeaturedUser: meta.FeaturedUser,
		URL:          s.store.URL(key),
		StorageKey:   key,
		MimeType:     info.MimeType,
		Size:         int64(len(data)),
		UploadedBy:   uploadedBy,
		UploadedAt:   s.now().UTC(),
	}

	if err := s.repo.Create(ctx, a); err != nil {
		if delErr := s.store.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			slog.Error("保存済み画像の削除に失敗",
				slog.String("storage_key", key),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, fmt.Errorf("作品の登録に失敗: %w", err)
	}
	return a, nil
}
