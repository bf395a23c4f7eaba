// Package discord はDiscord Bot APIの薄いクライアントを提供する。
// ギルドメンバーとロールの照会・更新のみを扱い、ロールの状態は保持しない。
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/fishcafe/perkportal/internal/metrics"
	"github.com/fishcafe/perkportal/internal/model"
)

const defaultTimeout = 10 * time.Second

var (
	// ErrNotFound はギルド、メンバー、ロールのいずれかが存在しないことを示す。
	ErrNotFound = errors.New("discord: not found")
	// ErrForbidden はBotに操作権限がないことを示す。
	ErrForbidden = errors.New("discord: forbidden")
	// ErrUpstream はその他のDiscord API呼び出し失敗を示す。
	ErrUpstream = errors.New("discord: upstream failure")
)

// Role はDiscordのロール。Colorは0xRRGGBBの整数値。
type Role struct {
	ID    string
	Name  string
	Color int
}

// Config はクライアントの設定。
type Config struct {
	BotToken string
	Timeout  time.Duration
	Metrics  metrics.MetricsCollector

	// HTTPClient はテスト用に差し替え可能なHTTPクライアント。
	HTTPClient *http.Client
}

// Client はdiscordgoのRESTセッションをラップしたBotクライアント。
// 失敗時のリトライは行わない。
type Client struct {
	session *discordgo.Session
	timeout time.Duration
	metrics metrics.MetricsCollector
}

// NewClient はBotトークンでClientを生成する。
func NewClient(cfg Config) (*Client, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("Botトークンが設定されていません")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}

	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("Discordセッションの生成に失敗しました: %w", err)
	}

	// 呼び出し元のクライアントは変更せずコピーにタイムアウトを設定する
	httpClient := &http.Client{}
	if cfg.HTTPClient != nil {
		c := *cfg.HTTPClient
		httpClient = &c
	}
	httpClient.Timeout = cfg.Timeout
	session.Client = httpClient
	session.MaxRestRetries = 0
	session.ShouldRetryOnRateLimit = false

	return &Client{
		session: session,
		timeout: cfg.Timeout,
		metrics: cfg.Metrics,
	}, nil
}

// GetMember はギルドメンバーを取得する。PremiumSinceでブースト状態を判定できる。
func (c *Client) GetMember(ctx context.Context, guildID, userID string) (*model.Member, error) {
	var m *discordgo.Member
	err := c.call(ctx, "guild_member", func(opt discordgo.RequestOption) error {
		var err error
		m, err = c.session.GuildMember(guildID, userID, opt)
		return err
	})
	if err != nil {
		return nil, err
	}

	member := &model.Member{
		GuildID:      guildID,
		UserID:       userID,
		RoleIDs:      m.Roles,
		PremiumSince: m.PremiumSince,
	}
	if m.User != nil {
		member.UserID = m.User.ID
		member.Username = m.User.Username
		member.Avatar = m.User.Avatar
	}
	return member, nil
}

// GuildRoles はギルドの全ロールを取得する。
func (c *Client) GuildRoles(ctx context.Context, guildID string) ([]Role, error) {
	var roles []*discordgo.Role
	err := c.call(ctx, "guild_roles", func(opt discordgo.RequestOption) error {
		var err error
		roles, err = c.session.GuildRoles(guildID, opt)
		return err
	})
	if err != nil {
		return nil, err
	}

	result := make([]Role, 0, len(roles))
	for _, r := range roles {
		result = append(result, toRole(r))
	}
	return result, nil
}

// CreateRole はギルドにロールを作成する。
func (c *Client) CreateRole(ctx context.Context, guildID, name string, color int) (*Role, error) {
	var created *discordgo.Role
	err := c.call(ctx, "role_create", func(opt discordgo.RequestOption) error {
		var err error
		created, err = c.session.GuildRoleCreate(guildID, &discordgo.RoleParams{
			Name:  name,
			Color: &color,
		}, opt)
		return err
	})
	if err != nil {
		return nil, err
	}
	r := toRole(created)
	return &r, nil
}

// EditRoleColor はロールの色を変更する。
func (c *Client) EditRoleColor(ctx context.Context, guildID, roleID string, color int) (*Role, error) {
	var edited *discordgo.Role
	err := c.call(ctx, "role_edit", func(opt discordgo.RequestOption) error {
		var err error
		edited, err = c.session.GuildRoleEdit(guildID, roleID, &discordgo.RoleParams{
			Color: &color,
		}, opt)
		return err
	})
	if err != nil {
		return nil, err
	}
	r := toRole(edited)
	return &r, nil
}

// AddMemberRole はメンバーにロールを付与する。
func (c *Client) AddMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	return c.call(ctx, "member_role_add", func(opt discordgo.RequestOption) error {
		return c.session.GuildMemberRoleAdd(guildID, userID, roleID, opt)
	})
}

// call はタイムアウト付きでAPIを呼び出し、レイテンシを記録してエラーを分類する。
func (c *Client) call(ctx context.Context, operation string, fn func(discordgo.RequestOption) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := fn(discordgo.WithContext(ctx))
	c.metrics.RecordUpstreamLatency("discord_"+operation, time.Since(start))

	if err != nil {
		return fmt.Errorf("%s: %w", operation, classify(err))
	}
	return nil
}

// classify はdiscordgoのエラーをセンチネルエラーに分類する。
func classify(err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrForbidden, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}

func toRole(r *discordgo.Role) Role {
	if r == nil {
		return Role{}
	}
	return Role{ID: r.ID, Name: r.Name, Color: r.Color}
}
