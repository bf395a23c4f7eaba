package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultStateTTL はOAuth stateトークンの有効期間。
const DefaultStateTTL = 10 * time.Minute

const stateIssuer = "perkportal"

// ErrInvalidState はstateトークンが不正または期限切れであることを示す。
var ErrInvalidState = errors.New("invalid oauth state")

// StateSigner はOAuthのstateパラメータをHS256署名付きJWTとして発行・検証する。
// stateはCookieにも保存され、コールバック時にクエリ値と一致することも確認する。
type StateSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewStateSigner はStateSignerを生成する。ttlが0以下の場合はDefaultStateTTLを使う。
func NewStateSigner(secret string, ttl time.Duration) *StateSigner {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL はstateトークンの有効期間を返す。
func (s *StateSigner) TTL() time.Duration {
	return s.ttl
}

// Issue は新しいstateトークンを発行する。
func (s *StateSigner) Issue() (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonceの生成に失敗しました: %w", err)
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    stateIssuer,
		ID:        hex.EncodeToString(nonce),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("stateの署名に失敗しました: %w", err)
	}
	return token, nil
}

// Verify はクエリのstateとCookieのstateが一致し、署名と有効期限が正しいことを検証する。
func (s *StateSigner) Verify(queryState, cookieState string) error {
	if queryState == "" || cookieState == "" || queryState != cookieState {
		return ErrInvalidState
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(queryState, claims,
		func(t *jwt.Token) (any, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if claims.ID == "" {
		return ErrInvalidState
	}
	return nil
}
