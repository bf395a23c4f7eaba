// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, artwork, role, upstream, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeNotOwner        = "NOT_OWNER"
	ErrCodeNotBooster      = "NOT_BOOSTER"
	ErrCodeUserMismatch    = "USER_MISMATCH"
	ErrCodeRoleNotHeld     = "ROLE_NOT_HELD"
	ErrCodeInvalidRoleName = "INVALID_ROLE_NAME"
	ErrCodeInvalidColor    = "INVALID_COLOR"
	ErrCodeInvalidFile     = "INVALID_FILE"
	ErrCodeFileTooLarge    = "FILE_TOO_LARGE"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeArtworkNotFound = "ARTWORK_NOT_FOUND"
	ErrCodeMemberNotFound  = "MEMBER_NOT_FOUND"
	ErrCodeRoleNotFound    = "ROLE_NOT_FOUND"
	ErrCodeUpstreamFailed  = "UPSTREAM_FAILED"
	ErrCodeImportBlocked   = "IMPORT_BLOCKED"
	ErrCodeImportFailed    = "IMPORT_FAILED"
	ErrCodeUserNotFound    = "USER_NOT_FOUND"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// NewUnauthorizedError は未ログインエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "Discordでログインしてください。",
	}
}

// NewNotOwnerError はオーナー権限がない場合のエラーを生成する。
func NewNotOwnerError() *APIError {
	return &APIError{
		Code:     ErrCodeNotOwner,
		Message:  "この操作はサイトオーナーのみ実行できます。",
		Category: "auth",
		Action:   "オーナーアカウントでログインしてください。",
	}
}

// NewNotBoosterError はブースターでない場合のエラーを生成する。
func NewNotBoosterError() *APIError {
	return &APIError{
		Code:     ErrCodeNotBooster,
		Message:  "この操作はサーバーブースターのみ実行できます。",
		Category: "auth",
		Action:   "対象サーバーをブーストしてから再度お試しください。",
	}
}

// NewUserMismatchError はリクエストのユーザーIDがセッションと一致しない場合のエラーを生成する。
func NewUserMismatchError() *APIError {
	return &APIError{
		Code:     ErrCodeUserMismatch,
		Message:  "リクエストのユーザーがログイン中のユーザーと一致しません。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRoleNotHeldError は対象ロールを保持していない場合のエラーを生成する。
func NewRoleNotHeldError() *APIError {
	return &APIError{
		Code:     ErrCodeRoleNotHeld,
		Message:  "自分が保持しているロールのみ変更できます。",
		Category: "role",
		Action:   "ロール一覧を確認してください。",
	}
}

// NewInvalidRoleNameError はロール名が不正な場合のエラーを生成する。
func NewInvalidRoleNameError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRoleName,
		Message:  "ロール名は1文字以上32文字以内で指定してください。",
		Category: "validation",
		Action:   "ロール名を短くしてください。",
	}
}

// NewInvalidColorError は色指定が不正な場合のエラーを生成する。
func NewInvalidColorError(color string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidColor,
		Message:  fmt.Sprintf("無効な色コードです: %s", color),
		Category: "validation",
		Action:   "#5865F2 のような16進カラーコードを指定してください。",
	}
}

// NewInvalidFileError は許可されていないファイル形式の場合のエラーを生成する。
func NewInvalidFileError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFile,
		Message:  fmt.Sprintf("無効なファイルです: %s", reason),
		Category: "validation",
		Action:   "JPG, PNG, GIF, WebP のいずれかの画像を選択してください。",
	}
}

// NewFileTooLargeError はファイルサイズ上限を超えた場合のエラーを生成する。
func NewFileTooLargeError(maxBytes int64) *APIError {
	return &APIError{
		Code:     ErrCodeFileTooLarge,
		Message:  fmt.Sprintf("ファイルサイズが上限（%dMB）を超えています。", maxBytes/(1024*1024)),
		Category: "validation",
		Action:   "より小さい画像を選択してください。",
	}
}

// NewInvalidRequestError はリクエスト形式が不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewArtworkNotFoundError は作品未検出エラーを生成する。
func NewArtworkNotFoundError(artworkID string) *APIError {
	return &APIError{
		Code:     ErrCodeArtworkNotFound,
		Message:  fmt.Sprintf("指定された作品が見つかりません: %s", artworkID),
		Category: "artwork",
		Action:   "作品一覧を再読み込みしてください。",
	}
}

// NewMemberNotFoundError はギルドメンバー未検出エラーを生成する。
func NewMemberNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeMemberNotFound,
		Message:  "指定されたサーバーまたはメンバーが見つかりません。",
		Category: "role",
		Action:   "サーバーIDとユーザーIDを確認してください。",
	}
}

// NewRoleNotFoundError はロール未検出エラーを生成する。
func NewRoleNotFoundError(roleID string) *APIError {
	return &APIError{
		Code:     ErrCodeRoleNotFound,
		Message:  fmt.Sprintf("指定されたロールが見つかりません: %s", roleID),
		Category: "role",
		Action:   "ロール一覧を再読み込みしてください。",
	}
}

// NewUpstreamFailedError はDiscord API呼び出し失敗エラーを生成する。
func NewUpstreamFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamFailed,
		Message:  "Discordとの通信に失敗しました。",
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewImportBlockedError はSSRF防止によりインポートが拒否された場合のエラーを生成する。
func NewImportBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeImportBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されている画像のURLを入力してください。",
	}
}

// NewImportFailedError はURLからの画像取得に失敗した場合のエラーを生成する。
func NewImportFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeImportFailed,
		Message:  fmt.Sprintf("画像の取得に失敗しました: %s", reason),
		Category: "artwork",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ残し、メッセージには含めない。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
