// Package security は入力テキストの無害化と、外部URL取得時のSSRF防止を提供する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は利用者が入力した作品タイトルや説明文からHTMLを取り除く。
type TextSanitizer interface {
	// SanitizeText はすべてのタグを除去したプレーンテキストを返す。
	// script, styleは中身ごと除去する。前後の空白は取り除く。
	SanitizeText(s string) string
}

// textSanitizer はbluemondayのStrictPolicyによるTextSanitizerの実装。
// Policyはスレッドセーフなので共有して使う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeText はタグを除去し、エスケープされた実体参照を元の文字に戻す。
// 出力はJSONで返すプレーンテキストであり、HTMLとして埋め込む側でエスケープする。
func (s *textSanitizer) SanitizeText(in string) string {
	if in == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(in)))
}
