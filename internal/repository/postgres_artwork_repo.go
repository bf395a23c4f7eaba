package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fishcafe/perkportal/internal/model"
)

// artworkColumns はSELECT/RETURNINGで使う列の並び。scanArtworkと順序を揃えること。
const artworkColumns = `id, title, description, featured_user, url, storage_key,
	mime_type, size_bytes, uploaded_by, uploaded_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通部分。
type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresArtworkRepo はPostgreSQLを使用した作品リポジトリ。
type PostgresArtworkRepo struct {
	db *sql.DB
}

// NewPostgresArtworkRepo はPostgresArtworkRepoを生成する。
func NewPostgresArtworkRepo(db *sql.DB) *PostgresArtworkRepo {
	return &PostgresArtworkRepo{db: db}
}

// List は全作品を新しい順で返す。
// uploaded_atが同一の場合はUUIDv7のIDで順序を確定させる。
func (r *PostgresArtworkRepo) List(ctx context.Context) ([]*model.Artwork, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+artworkColumns+`
		 FROM artworks
		 ORDER BY uploaded_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("作品一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	artworks := make([]*model.Artwork, 0)
	for rows.Next() {
		a, err := scanArtwork(rows)
		if err != nil {
			return nil, err
		}
		artworks = append(artworks, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("作品一覧の読み取りに失敗しました: %w", err)
	}
	return artworks, nil
}

// FindByID は指定IDの作品を取得する。見つからない場合はnilを返す。
func (r *PostgresArtworkRepo) FindByID(ctx context.Context, id string) (*model.Artwork, error) {
	a, err := scanArtwork(r.db.QueryRowContext(ctx,
		`SELECT `+artworkColumns+` FROM artworks WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create は作品を作成する。
func (r *PostgresArtworkRepo) Create(ctx context.Context, a *model.Artwork) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO artworks (`+artworkColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.Title, a.Description, nullString(a.FeaturedUser), a.URL, a.StorageKey,
		a.MimeType, a.Size, a.UploadedBy, a.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("作品の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は作品のタイトルと説明を更新し、更新後の作品を返す。
// 対象が存在しない場合はnilを返す。
func (r *PostgresArtworkRepo) Update(ctx context.Context, a *model.Artwork) (*model.Artwork, error) {
	updated, err := scanArtwork(r.db.QueryRowContext(ctx,
		`UPDATE artworks SET title = $2, description = $3
		 WHERE id = $1
		 RETURNING `+artworkColumns,
		a.ID, a.Title, a.Description,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete は指定IDの作品を削除し、削除した作品を返す。
// 対象が存在しない場合はnilを返す。
func (r *PostgresArtworkRepo) Delete(ctx context.Context, id string) (*model.Artwork, error) {
	deleted, err := scanArtwork(r.db.QueryRowContext(ctx,
		`DELETE FROM artworks WHERE id = $1 RETURNING `+artworkColumns,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// ListStorageKeys は全作品が参照しているストレージキーを返す。
func (r *PostgresArtworkRepo) ListStorageKeys(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT storage_key FROM artworks`)
	if err != nil {
		return nil, fmt.Errorf("ストレージキーの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("ストレージキーの読み取りに失敗しました: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// scanArtwork は1行分の作品を読み取る。sql.ErrNoRowsはそのまま返す。
func scanArtwork(s rowScanner) (*model.Artwork, error) {
	a := &model.Artwork{}
	var featuredUser sql.NullString
	err := s.Scan(
		&a.ID, &a.Title, &a.Description, &featuredUser, &a.URL, &a.StorageKey,
		&a.MimeType, &a.Size, &a.UploadedBy, &a.UploadedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("作品の読み取りに失敗しました: %w", err)
	}
	a.FeaturedUser = featuredUser.String
	return a, nil
}

// compile-time interface check
var _ ArtworkRepository = (*PostgresArtworkRepo)(nil)
