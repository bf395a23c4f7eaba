// Package user はログインユーザーのデータ管理を提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fishcafe/perkportal/internal/model"
	"github.com/fishcafe/perkportal/internal/repository"
)

// Service はユーザーデータ管理のサービス層。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, sessionRepo repository.SessionRepository) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
	}
}

// Forget はユーザーの全セッションと保存済みプロフィールを削除する。
// 削除順序: sessions → user。セッションストアがRedisの場合もここで明示的に削除する。
// 作品はオーナーの管理物であり削除対象外。
func (s *Service) Forget(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("ユーザーデータの削除を開始します",
		slog.String("user_id", userID),
	)

	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("ユーザーデータの削除が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}
