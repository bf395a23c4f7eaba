// Package model はドメインモデルを定義する。
package model

import "time"

// User はDiscordアカウントとしてログインしたユーザーを表す。
// IDはDiscordのユーザーID（snowflake文字列）をそのまま使う。
type User struct {
	ID         string
	Username   string
	GlobalName string
	Avatar     string // アバターハッシュ。未設定の場合は空文字列
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DisplayName は表示用の名前を返す。グローバル名が未設定ならユーザー名を返す。
func (u *User) DisplayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// Identity はセッションに紐付く認証済みユーザーの情報。
// ギルド一覧はログイン時点のスナップショットであり、ブースター状態は含まない。
// ブースター状態はリクエストごとにDiscord APIから取得し直す。
type Identity struct {
	User   User
	Guilds []Guild
}

// Session はブラウザとIdentityを結び付けるログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	Guilds    []Guild
	ExpiresAt time.Time
	CreatedAt time.Time
}
