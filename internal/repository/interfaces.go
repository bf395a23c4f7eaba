// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/fishcafe/perkportal/internal/model"
)

// UserRepository はログインしたDiscordユーザーのプロフィールを永続化するインターフェース。
// プロフィールはログインのたびに最新の内容で上書きされるスナップショット。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// Upsert はユーザーを作成、または既存ユーザーのプロフィールを更新する。
	Upsert(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するsessionsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ArtworkRepository はアートウォール作品の永続化インターフェース。
type ArtworkRepository interface {
	// List は全作品を新しい順（uploaded_at降順）で返す。
	List(ctx context.Context) ([]*model.Artwork, error)

	// FindByID は指定IDの作品を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Artwork, error)

	// Create は作品を作成する。
	Create(ctx context.Context, artwork *model.Artwork) error

	// Update は作品のタイトルと説明を更新する。
	// 対象が存在しない場合はnilを返す。
	Update(ctx context.Context, artwork *model.Artwork) (*model.Artwork, error)

	// Delete は指定IDの作品を削除し、削除した作品を返す。
	// 対象が存在しない場合はnilを返す。
	Delete(ctx context.Context, id string) (*model.Artwork, error)

	// ListStorageKeys は全作品が参照しているストレージキーを返す。
	ListStorageKeys(ctx context.Context) ([]string, error)
}
