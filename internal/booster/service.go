// Package booster はサーバーブースター向けのカスタムロール操作を提供する。
// ブースター判定は操作のたびにDiscordから取得し直し、結果はキャッシュしない。
package booster

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/fishcafe/perkportal/internal/discord"
	"github.com/fishcafe/perkportal/internal/metrics"
	"github.com/fishcafe/perkportal/internal/model"
)

// DiscordClient はブースター操作に必要なDiscord Bot APIのインターフェース。
type DiscordClient interface {
	GetMember(ctx context.Context, guildID, userID string) (*model.Member, error)
	GuildRoles(ctx context.Context, guildID string) ([]discord.Role, error)
	CreateRole(ctx context.Context, guildID, name string, color int) (*discord.Role, error)
	EditRoleColor(ctx context.Context, guildID, roleID string, color int) (*discord.Role, error)
	AddMemberRole(ctx context.Context, guildID, userID, roleID string) error
}

// MemberSummary はメンバー照会APIのレスポンス。
type MemberSummary struct {
	ID        string       `json:"id"`
	Username  string       `json:"username"`
	IsBooster bool         `json:"isBooster"`
	Roles     []model.Role `json:"roles"`
}

// Service はカスタムロールのビジネスロジックを提供する。
type Service struct {
	discord  DiscordClient
	validate *validator.Validate
	metrics  metrics.MetricsCollector
}

// NewService はServiceを生成する。mcがnilの場合はメトリクスを記録しない。
func NewService(client DiscordClient, mc metrics.MetricsCollector) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		discord:  client,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		metrics:  mc,
	}
}

// LookupMember はギルドメンバーのブースター状態と保持ロールを返す。
func (s *Service) LookupMember(ctx context.Context, guildID, userID string) (*MemberSummary, error) {
	member, err := s.discord.GetMember(ctx, guildID, userID)
	if err != nil {
		if errors.Is(err, discord.ErrNotFound) {
			return nil, model.NewMemberNotFoundError()
		}
		return nil, s.upstreamError("メンバーの取得に失敗しました", err, guildID)
	}

	guildRoles, err := s.discord.GuildRoles(ctx, guildID)
	if err != nil {
		return nil, s.upstreamError("ロール一覧の取得に失敗しました", err, guildID)
	}

	byID := make(map[string]discord.Role, len(guildRoles))
	for _, r := range guildRoles {
		byID[r.ID] = r
	}

	roles := make([]model.Role, 0, len(member.RoleIDs))
	for _, id := range member.RoleIDs {
		if r, ok := byID[id]; ok {
			roles = append(roles, toModelRole(r))
		}
	}

	return &MemberSummary{
		ID:        member.UserID,
		Username:  member.Username,
		IsBooster: member.IsBooster(),
		Roles:     roles,
	}, nil
}

// CreateRole はブースター本人のカスタムロールを作成し、本人に付与する。
// 入力検証はDiscordへの問い合わせより先に行う。
func (s *Service) CreateRole(ctx context.Context, identity *model.Identity, guildID string, req model.RoleRequest) (*model.Role, error) {
	userID, err := requester(identity, req.UserID)
	if err != nil {
		s.metrics.RecordRoleOperation("create", "denied")
		return nil, err
	}

	req.RoleName = strings.TrimSpace(req.RoleName)
	req.Color = NormalizeHexColor(req.Color)
	color, err := s.validateRoleRequest(req)
	if err != nil {
		s.metrics.RecordRoleOperation("create", "invalid")
		return nil, err
	}

	if _, err := s.boosterMember(ctx, guildID, userID, "create"); err != nil {
		return nil, err
	}

	created, err := s.discord.CreateRole(ctx, guildID, req.RoleName, color)
	if err != nil {
		s.metrics.RecordRoleOperation("create", "upstream_error")
		return nil, s.upstreamError("ロールの作成に失敗しました", err, guildID)
	}

	if err := s.discord.AddMemberRole(ctx, guildID, userID, created.ID); err != nil {
		s.metrics.RecordRoleOperation("create", "upstream_error")
		return nil, s.upstreamError("ロールの付与に失敗しました", err, guildID)
	}

	slog.Info("カスタムロールを作成しました",
		slog.String("guild_id", guildID),
		slog.String("user_id", userID),
		slog.String("role_id", created.ID),
		slog.Any("benefits", req.Benefits),
	)
	s.metrics.RecordRoleOperation("create", "success")

	role := toModelRole(*created)
	return &role, nil
}

// UpdateRoleColor はブースター本人が保持するロールの色を変更する。
func (s *Service) UpdateRoleColor(ctx context.Context, identity *model.Identity, guildID, roleID string, req model.RoleColorRequest) (*model.Role, error) {
	userID, err := requester(identity, req.UserID)
	if err != nil {
		s.metrics.RecordRoleOperation("color", "denied")
		return nil, err
	}

	req.Color = NormalizeHexColor(req.Color)
	if err := s.validate.Struct(req); err != nil {
		s.metrics.RecordRoleOperation("color", "invalid")
		return nil, model.NewInvalidColorError(req.Color)
	}
	color, err := ParseHexColor(req.Color)
	if err != nil {
		s.metrics.RecordRoleOperation("color", "invalid")
		return nil, model.NewInvalidColorError(req.Color)
	}

	member, err := s.boosterMember(ctx, guildID, userID, "color")
	if err != nil {
		return nil, err
	}
	if !member.HasRole(roleID) {
		s.metrics.RecordRoleOperation("color", "denied")
		return nil, model.NewRoleNotHeldError()
	}

	edited, err := s.discord.EditRoleColor(ctx, guildID, roleID, color)
	if err != nil {
		if errors.Is(err, discord.ErrNotFound) {
			s.metrics.RecordRoleOperation("color", "not_found")
			return nil, model.NewRoleNotFoundError(roleID)
		}
		s.metrics.RecordRoleOperation("color", "upstream_error")
		return nil, s.upstreamError("ロール色の変更に失敗しました", err, guildID)
	}

	slog.Info("ロール色を変更しました",
		slog.String("guild_id", guildID),
		slog.String("user_id", userID),
		slog.String("role_id", roleID),
		slog.String("color", FormatHexColor(color)),
	)
	s.metrics.RecordRoleOperation("color", "success")

	role := toModelRole(*edited)
	return &role, nil
}

// validateRoleRequest はロール名と色を検証し、色の整数値を返す。
func (s *Service) validateRoleRequest(req model.RoleRequest) (int, error) {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if fe.Field() == "RoleName" {
					return 0, model.NewInvalidRoleNameError()
				}
			}
		}
		return 0, model.NewInvalidColorError(req.Color)
	}

	color, err := ParseHexColor(req.Color)
	if err != nil {
		return 0, model.NewInvalidColorError(req.Color)
	}
	return color, nil
}

// boosterMember はメンバーを取得し、ブースターでなければ403相当のエラーを返す。
// ギルドに所属していない場合もブースターではないものとして扱う。
func (s *Service) boosterMember(ctx context.Context, guildID, userID, operation string) (*model.Member, error) {
	member, err := s.discord.GetMember(ctx, guildID, userID)
	if err != nil {
		if errors.Is(err, discord.ErrNotFound) {
			s.metrics.RecordRoleOperation(operation, "denied")
			return nil, model.NewNotBoosterError()
		}
		s.metrics.RecordRoleOperation(operation, "upstream_error")
		return nil, s.upstreamError("ブースター状態の確認に失敗しました", err, guildID)
	}
	if !member.IsBooster() {
		s.metrics.RecordRoleOperation(operation, "denied")
		return nil, model.NewNotBoosterError()
	}
	return member, nil
}

// upstreamError はDiscord APIの失敗をログに記録し、利用者向けのエラーに変換する。
func (s *Service) upstreamError(msg string, err error, guildID string) error {
	slog.Error(msg,
		slog.String("guild_id", guildID),
		slog.String("error", err.Error()),
	)
	return model.NewUpstreamFailedError()
}

// requester はセッションのIdentityから要求者IDを決める。
// リクエストボディのuserIdは参考値であり、セッションと異なる場合は拒否する。
func requester(identity *model.Identity, claimedUserID string) (string, error) {
	if identity == nil || identity.User.ID == "" {
		return "", model.NewUnauthorizedError()
	}
	if claimedUserID != "" && claimedUserID != identity.User.ID {
		return "", model.NewUserMismatchError()
	}
	return identity.User.ID, nil
}

func toModelRole(r discord.Role) model.Role {
	return model.Role{ID: r.ID, Name: r.Name, Color: FormatHexColor(r.Color)}
}
