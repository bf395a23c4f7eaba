package auth

import "github.com/fishcafe/perkportal/internal/model"

// Access はリクエストの認可区分。
type Access int

const (
	// AccessAnonymous はログインしていない状態。
	AccessAnonymous Access = iota
	// AccessAuthenticated はログイン済みの一般ユーザー。
	AccessAuthenticated
	// AccessOwner は設定されたオーナー。
	AccessOwner
)

// String はログ出力用の名前を返す。
func (a Access) String() string {
	switch a {
	case AccessAuthenticated:
		return "authenticated"
	case AccessOwner:
		return "owner"
	default:
		return "anonymous"
	}
}

// Gate はIdentityの認可区分を判定する。
// オーナーIDは生成時に固定され、クライアントからの入力では変わらない。
// ブースター判定はギルドごとのライブ照会が必要なため booster パッケージが行う。
type Gate struct {
	ownerID string
}

// NewGate はGateを生成する。ownerIDが空の場合、オーナー判定は常にfalseになる。
func NewGate(ownerID string) *Gate {
	return &Gate{ownerID: ownerID}
}

// IsOwner はユーザーIDが設定されたオーナーIDと一致するかを返す。
func (g *Gate) IsOwner(userID string) bool {
	if g == nil || g.ownerID == "" || userID == "" {
		return false
	}
	return userID == g.ownerID
}

// Classify はIdentityの認可区分を返す。nilは匿名として扱う。
func (g *Gate) Classify(identity *model.Identity) Access {
	if identity == nil || identity.User.ID == "" {
		return AccessAnonymous
	}
	if g.IsOwner(identity.User.ID) {
		return AccessOwner
	}
	return AccessAuthenticated
}
