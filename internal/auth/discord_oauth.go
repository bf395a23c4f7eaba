package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/fishcafe/perkportal/internal/model"
)

const (
	defaultDiscordAuthURL  = "https://discord.com/oauth2/authorize"
	defaultDiscordTokenURL = "https://discord.com/api/oauth2/token"
	defaultDiscordAPIURL   = "https://discord.com/api/v10"
	defaultDiscordTimeout  = 10 * time.Second

	// maxDiscordResponseSize はDiscord APIレスポンスの最大読み取りサイズ。
	maxDiscordResponseSize = 1 << 20
)

// DiscordOAuthConfig はDiscord OAuthプロバイダーの設定。
type DiscordOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Timeout      time.Duration

	// テスト用にオーバーライド可能なURL
	AuthURL  string
	TokenURL string
	APIURL   string
}

// DiscordOAuthProvider はDiscord OAuth2による認証を提供する。
// スコープは identify と guilds。
type DiscordOAuthProvider struct {
	oauth      *oauth2.Config
	apiURL     string
	timeout    time.Duration
	httpClient *http.Client
}

// NewDiscordOAuthProvider はDiscordOAuthProviderを生成する。
func NewDiscordOAuthProvider(config DiscordOAuthConfig) *DiscordOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultDiscordAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultDiscordTokenURL
	}
	if config.APIURL == "" {
		config.APIURL = defaultDiscordAPIURL
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultDiscordTimeout
	}

	return &DiscordOAuthProvider{
		oauth: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       []string{"identify", "guilds"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   config.AuthURL,
				TokenURL:  config.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiURL:     config.APIURL,
		timeout:    config.Timeout,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// GetLoginURL はDiscordの認可URLを生成する。
func (p *DiscordOAuthProvider) GetLoginURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// discordUser は GET /users/@me のレスポンス。
type discordUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Avatar     string `json:"avatar"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、プロフィールとギルド一覧を取得する。
// いずれかの呼び出しが失敗した場合はエラーを返し、部分的な結果は返さない。
func (p *DiscordOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	// 1. 認可コードをアクセストークンに交換
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("トークン交換に失敗しました: %w", err)
	}

	client := p.oauth.Client(ctx, token)

	// 2. プロフィールを取得
	var user discordUser
	if err := p.getJSON(ctx, client, "/users/@me", &user); err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("プロフィールにユーザーIDが含まれていません")
	}

	// 3. ギルド一覧を取得
	guilds := make([]model.Guild, 0)
	if err := p.getJSON(ctx, client, "/users/@me/guilds", &guilds); err != nil {
		return nil, fmt.Errorf("ギルド一覧の取得に失敗しました: %w", err)
	}

	return &OAuthUserInfo{
		ID:         user.ID,
		Username:   user.Username,
		GlobalName: user.GlobalName,
		Avatar:     user.Avatar,
		Guilds:     guilds,
	}, nil
}

// getJSON はDiscord APIにGETリクエストを送り、JSONレスポンスをdstにデコードする。
func (p *DiscordOAuthProvider) getJSON(ctx context.Context, client *http.Client, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+path, nil)
	if err != nil {
		return fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("リクエストに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDiscordResponseSize))
	if err != nil {
		return fmt.Errorf("レスポンスの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ステータス %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("レスポンスのパースに失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ OAuthProvider = (*DiscordOAuthProvider)(nil)
