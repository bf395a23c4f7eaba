package artwork

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fishcafe/perkportal/internal/model"
	"github.com/fishcafe/perkportal/internal/security"
)

// fakeGuard はhttptestサーバーへの接続を許可するURLGuard。
type fakeGuard struct {
	blocked map[string]bool
}

func (g *fakeGuard) ValidateURL(rawURL string) error {
	for prefix := range g.blocked {
		if strings.HasPrefix(rawURL, prefix) {
			return errors.New("blocked")
		}
	}
	return nil
}

func (g *fakeGuard) NewSafeClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func TestHTTPImporter_Fetch_DirectImage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngData)
	}))
	defer ts.Close()

	im := NewHTTPImporter(&fakeGuard{}, time.Second, DefaultMaxSize)
	got, err := im.Fetch(context.Background(), ts.URL+"/a.png")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if got.ContentType != "image/png" || string(got.Data) != string(pngData) {
		t.Errorf("unexpected result: %+v", got)
	}
	if got.SourceURL != ts.URL+"/a.png" {
		t.Errorf("SourceURL = %s", got.SourceURL)
	}
}

func TestHTTPImporter_Fetch_HTMLPage_FollowsOGImage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/post", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><meta property="og:image" content="/media/art.gif"></head><body></body></html>`)
	})
	mux.HandleFunc("/media/art.gif", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/gif")
		w.Write(gifData)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	im := NewHTTPImporter(&fakeGuard{}, time.Second, DefaultMaxSize)
	got, err := im.Fetch(context.Background(), ts.URL+"/post")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if got.SourceURL != ts.URL+"/media/art.gif" {
		t.Errorf("SourceURL = %s, want og:image URL", got.SourceURL)
	}
	if got.ContentType != "image/gif" {
		t.Errorf("ContentType = %s", got.ContentType)
	}
}

func TestHTTPImporter_Fetch_HTMLWithoutImage_ReturnsImportFailed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>no image</title></head></html>`)
	}))
	defer ts.Close()

	im := NewHTTPImporter(&fakeGuard{}, time.Second, DefaultMaxSize)
	_, err := im.Fetch(context.Background(), ts.URL)
	if code := apiErrorCode(t, err); code != model.ErrCodeImportFailed {
		t.Errorf("code = %s, want IMPORT_FAILED", code)
	}
}

func TestHTTPImporter_Fetch_BlockedURL_NoRequestSent(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer ts.Close()

	im := NewHTTPImporter(&fakeGuard{blocked: map[string]bool{ts.URL: true}}, time.Second, DefaultMaxSize)
	_, err := im.Fetch(context.Background(), ts.URL)
	if code := apiErrorCode(t, err); code != model.ErrCodeImportBlocked {
		t.Errorf("code = %s, want IMPORT_BLOCKED", code)
	}
	if called {
		t.Error("request should not be sent for blocked URL")
	}
}

// ページ自体は許可されていても、og:imageが内部アドレスを指す場合は拒否する
func TestHTTPImporter_Fetch_OGImagePointsToBlockedHost_ReturnsImportBlocked(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<head><meta property="og:image" content="http://169.254.169.254/latest"></head>`)
	}))
	defer ts.Close()

	guard := &fakeGuard{blocked: map[string]bool{"http://169.254.169.254": true}}
	im := NewHTTPImporter(guard, time.Second, DefaultMaxSize)
	_, err := im.Fetch(context.Background(), ts.URL)
	if code := apiErrorCode(t, err); code != model.ErrCodeImportBlocked {
		t.Errorf("code = %s, want IMPORT_BLOCKED", code)
	}
}

func TestHTTPImporter_Fetch_TooLarge_ReturnsFileTooLarge(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngData)
	}))
	defer ts.Close()

	im := NewHTTPImporter(&fakeGuard{}, time.Second, 8)
	_, err := im.Fetch(context.Background(), ts.URL)
	if code := apiErrorCode(t, err); code != model.ErrCodeFileTooLarge {
		t.Errorf("code = %s, want FILE_TOO_LARGE", code)
	}
}

func TestHTTPImporter_Fetch_UpstreamError_ReturnsImportFailed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	im := NewHTTPImporter(&fakeGuard{}, time.Second, DefaultMaxSize)
	_, err := im.Fetch(context.Background(), ts.URL)
	if code := apiErrorCode(t, err); code != model.ErrCodeImportFailed {
		t.Errorf("code = %s, want IMPORT_FAILED", code)
	}
}

func TestHTTPImporter_Fetch_EmptyURL_ReturnsInvalidRequest(t *testing.T) {
	im := NewHTTPImporter(&fakeGuard{}, time.Second, DefaultMaxSize)
	_, err := im.Fetch(context.Background(), "  ")
	if code := apiErrorCode(t, err); code != model.ErrCodeInvalidRequest {
		t.Errorf("code = %s, want INVALID_REQUEST", code)
	}
}

func TestFindOGImage(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "og:image絶対URL",
			html: `<head><meta property="og:image" content="https://cdn.example.com/a.png"></head>`,
			want: "https://cdn.example.com/a.png",
		},
		{
			name: "相対URLを解決",
			html: `<head><meta property="og:image" content="img/a.png"></head>`,
			want: "https://example.com/post/img/a.png",
		},
		{
			name: "twitter:imageにフォールバック",
			html: `<head><meta name="twitter:image" content="/t.jpg"></head>`,
			want: "https://example.com/t.jpg",
		},
		{
			name: "og:imageを優先",
			html: `<head><meta name="twitter:image" content="/t.jpg"><meta property="og:image" content="/o.jpg"></head>`,
			want: "https://example.com/o.jpg",
		},
		{
			name: "body内のmetaは無視",
			html: `<head></head><body><meta property="og:image" content="/x.png"></body>`,
			want: "",
		},
		{
			name: "画像なし",
			html: `<head><title>x</title></head>`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindOGImage([]byte(tt.html), "https://example.com/post/"); got != tt.want {
				t.Errorf("FindOGImage = %q, want %q", got, tt.want)
			}
		})
	}
}

// safeClientGuard は事前検証を素通しし、接続時の検証をsafeurlに任せるURLGuard。
// 公開ホスト名が内部アドレスに解決される状況を再現する。
type safeClientGuard struct{}

func (safeClientGuard) ValidateURL(rawURL string) error { return nil }

func (safeClientGuard) NewSafeClient(timeout time.Duration) *http.Client {
	return security.NewSSRFGuard().NewSafeClient(timeout)
}

func TestHTTPImporter_Fetch_DialBlockedBySafeClient_ReturnsImportBlocked(t *testing.T) {
	requested := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = true
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngData)
	}))
	defer ts.Close()

	im := NewHTTPImporter(safeClientGuard{}, 2*time.Second, DefaultMaxSize)
	_, err := im.Fetch(context.Background(), ts.URL+"/a.png")
	if code := apiErrorCode(t, err); code != model.ErrCodeImportBlocked {
		t.Errorf("code = %s, want IMPORT_BLOCKED", code)
	}
	if requested {
		t.Error("request should not reach the server")
	}
}

func TestHTTPImporter_Fetch_ConnectionRefused_ReturnsImportFailed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := ts.URL
	ts.Close()

	im := NewHTTPImporter(&fakeGuard{}, time.Second, DefaultMaxSize)
	_, err := im.Fetch(context.Background(), target)
	if code := apiErrorCode(t, err); code != model.ErrCodeImportFailed {
		t.Errorf("code = %s, want IMPORT_FAILED", code)
	}
}
