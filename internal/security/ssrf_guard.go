package security

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// ErrBlockedURL はURLがSSRF防止ポリシーにより拒否されたことを示す。
var ErrBlockedURL = errors.New("url blocked by ssrf policy")

// SSRFGuard は作品インポート時の外部URL取得を安全に行うためのインターフェース。
type SSRFGuard interface {
	// ValidateURL はリクエスト前にURLを静的に検証する。
	// 拒否した場合はErrBlockedURLをラップしたエラーを返す。
	ValidateURL(rawURL string) error
	// NewSafeClient は接続時に解決後のIPも検証するHTTPクライアントを返す。
	NewSafeClient(timeout time.Duration) *http.Client
}

var allowedSchemes = []string{"http", "https"}

// blockedPrefixes はIPリテラルで指定された場合に拒否するアドレス範囲。
// DNS名の場合の検証はsafeurlのダイヤラーが接続時に行う。
var blockedPrefixes = mustPrefixes(
	"0.0.0.0/8",
	"10.0.0.0/8",
	"100.64.0.0/10",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
)

var blockedHostSuffixes = []string{"localhost", ".local", ".internal"}

func mustPrefixes(cidrs ...string) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(cidrs))
	for _, c := range cidrs {
		out = append(out, netip.MustParsePrefix(c))
	}
	return out
}

type ssrfGuard struct{}

// NewSSRFGuard はSSRFGuardを生成する。
func NewSSRFGuard() SSRFGuard {
	return ssrfGuard{}
}

// NewSafeClient はsafeurlでラップしたHTTPクライアントを返す。
// 許可するのはhttp/httpsの80/443番ポートのみで、
// プライベート・ループバック・リンクローカル宛ての接続はダイヤル時に拒否される。
func (ssrfGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()
	return safeurl.Client(config).Client
}

// ValidateURL はスキーム、ホスト名、IPリテラルを検証する。
func (ssrfGuard) ValidateURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || rawURL == "" {
		return fmt.Errorf("%w: URLを解析できません", ErrBlockedURL)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("%w: 許可されていないスキーム %q", ErrBlockedURL, u.Scheme)
	}
	if u.User != nil {
		return fmt.Errorf("%w: 認証情報付きのURLは使用できません", ErrBlockedURL)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: ホストがありません", ErrBlockedURL)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		addr = addr.Unmap()
		for _, p := range blockedPrefixes {
			if p.Contains(addr) {
				return fmt.Errorf("%w: 内部アドレス %s", ErrBlockedURL, addr)
			}
		}
		return nil
	}
	if net.ParseIP(host) != nil {
		return fmt.Errorf("%w: 不正なIPアドレス %s", ErrBlockedURL, host)
	}

	for _, suffix := range blockedHostSuffixes {
		if host == strings.TrimPrefix(suffix, ".") || strings.HasSuffix(host, suffix) {
			return fmt.Errorf("%w: 内部ホスト名 %s", ErrBlockedURL, host)
		}
	}
	return nil
}

// IsBlocked はエラーがSSRF防止ポリシーによる拒否かどうかを判定する。
// ValidateURLのErrBlockedURLに加え、ホスト名の解決先が内部アドレスだったために
// safeurlがダイヤラーのControlフックで接続を拒否した場合も含む。
// 接続拒否・DNS失敗・タイムアウトは拒否として扱わない。
func IsBlocked(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrBlockedURL) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var opErr *net.OpError
	if !errors.As(err, &opErr) || opErr.Op != "dial" || opErr.Err == nil || opErr.Timeout() {
		return false
	}
	var sysErr *os.SyscallError
	var dnsErr *net.DNSError
	var addrErr *net.AddrError
	return !errors.As(opErr.Err, &sysErr) &&
		!errors.As(opErr.Err, &dnsErr) &&
		!errors.As(opErr.Err, &addrErr)
}
