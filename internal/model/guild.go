package model

import "time"

// Guild はユーザーが所属するDiscordギルドの概要。
// OAuthの guilds スコープで取得した内容をそのまま保持する。
type Guild struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon,omitempty"`
	Owner       bool   `json:"owner"`
	Permissions string `json:"permissions,omitempty"`
}

// Role はギルドのロール。Colorは "#RRGGBB" 形式で保持する。
type Role struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Member はギルドメンバーの情報。
// PremiumSinceが設定されている場合はサーバーブースト中であることを示す。
type Member struct {
	GuildID      string
	UserID       string
	Username     string
	Avatar       string
	RoleIDs      []string
	PremiumSince *time.Time
}

// IsBooster はメンバーがサーバーブースト中かどうかを返す。
func (m *Member) IsBooster() bool {
	return m != nil && m.PremiumSince != nil && !m.PremiumSince.IsZero()
}

// HasRole はメンバーが指定ロールを保持しているかどうかを返す。
func (m *Member) HasRole(roleID string) bool {
	if m == nil {
		return false
	}
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// RoleRequest はカスタムロールの作成・色変更リクエスト。
// UserIDはクライアントから送られた参考値であり、認可には使わない。
type RoleRequest struct {
	UserID   string   `json:"userId"`
	RoleName string   `json:"roleName" validate:"required,max=32"`
	Color    string   `json:"color" validate:"required,hexcolor"`
	Benefits []string `json:"benefits"`
}

// RoleColorRequest はロール色変更リクエスト。
type RoleColorRequest struct {
	UserID string `json:"userId"`
	Color  string `json:"color" validate:"required,hexcolor"`
}
