package artwork

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/fishcafe/perkportal/internal/model"
	"github.com/fishcafe/perkportal/internal/security"
)

// URLGuard は外部URL取得前の検証と安全なHTTPクライアントを提供する。
// security.SSRFGuardを満たす。
type URLGuard interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// FetchedImage はURLから取得した画像データ。
type FetchedImage struct {
	SourceURL   string
	ContentType string
	Data        []byte
}

// HTTPImporter はURLを指定して画像を取り込む。
// URLがHTMLページの場合はog:imageを辿って画像を取得する。
type HTTPImporter struct {
	guard   URLGuard
	timeout time.Duration
	maxSize int64
}

// NewHTTPImporter はHTTPImporterを生成する。
func NewHTTPImporter(guard URLGuard, timeout time.Duration, maxSize int64) *HTTPImporter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &HTTPImporter{guard: guard, timeout: timeout, maxSize: maxSize}
}

// Fetch はURLから画像を取得する。リダイレクト先やog:imageのURLも同じ検証を通す。
func (im *HTTPImporter) Fetch(ctx context.Context, rawURL string) (*FetchedImage, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, model.NewInvalidRequestError("URLが入力されていません")
	}
	if err := im.guard.ValidateURL(rawURL); err != nil {
		slog.Warn("インポートURLを拒否",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewImportBlockedError()
	}

	client := im.guard.NewSafeClient(im.timeout)

	contentType, body, err := im.get(ctx, client, rawURL)
	if err != nil {
		return nil, err
	}

	if !strings.Contains(mediaType(contentType), "html") {
		return im.image(rawURL, contentType, body)
	}

	imageURL := FindOGImage(body, rawURL)
	if imageURL == "" {
		return nil, model.NewImportFailedError("ページに画像が見つかりません")
	}
	if err := im.guard.ValidateURL(imageURL); err != nil {
		slog.Warn("og:image URLを拒否",
			slog.String("url", imageURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewImportBlockedError()
	}

	contentType, body, err = im.get(ctx, client, imageURL)
	if err != nil {
		return nil, err
	}
	return im.image(imageURL, contentType, body)
}

func (im *HTTPImporter) image(sourceURL, contentType string, body []byte) (*FetchedImage, error) {
	if int64(len(body)) > im.maxSize {
		return nil, model.NewFileTooLargeError(im.maxSize)
	}
	return &FetchedImage{SourceURL: sourceURL, ContentType: contentType, Data: body}, nil
}

// get はURLを取得し、上限+1バイトまで読み込む。
// 上限超過の判定は呼び出し側で行う。
func (im *HTTPImporter) get(ctx context.Context, client *http.Client, rawURL string) (string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", nil, model.NewInvalidRequestError(err.Error())
	}
	req.Header.Set("User-Agent", "PerkPortal/1.0 Artwork Importer")
	req.Header.Set("Accept", "image/*, text/html;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("インポート元の取得に失敗",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		if security.IsBlocked(err) {
			return "", nil, model.NewImportBlockedError()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", nil, model.NewImportFailedError("タイムアウトしました")
		}
		return "", nil, model.NewImportFailedError("接続できません")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, model.NewImportFailedError(fmt.Sprintf("HTTP %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, im.maxSize+1))
	if err != nil {
		return "", nil, model.NewImportFailedError("レスポンスの読み取りに失敗しました")
	}
	return resp.Header.Get("Content-Type"), body, nil
}

// FindOGImage はHTMLのheadからog:image（無ければtwitter:image）のURLを探し、
// baseURLを基準に絶対URLへ解決して返す。見つからない場合は空文字列を返す。
func FindOGImage(htmlBody []byte, baseURL string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}

	var ogImage, twitterImage string
	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))

loop:
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			break loop

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)
			if tagName == "body" {
				break loop
			}
			if tagName != "meta" || !hasAttr {
				continue
			}

			var property, content string
			for {
				key, val, more := tokenizer.TagAttr()
				switch strings.ToLower(string(key)) {
				case "property", "name":
					property = strings.ToLower(string(val))
				case "content":
					content = strings.TrimSpace(string(val))
				}
				if !more {
					break
				}
			}

			switch property {
			case "og:image", "og:image:url", "og:image:secure_url":
				if ogImage == "" {
					ogImage = content
				}
			case "twitter:image":
				if twitterImage == "" {
					twitterImage = content
				}
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "head" {
				break loop
			}
		}
	}

	found := ogImage
	if found == "" {
		found = twitterImage
	}
	if found == "" {
		return ""
	}
	ref, err := url.Parse(found)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
