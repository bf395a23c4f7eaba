// Package storage はアップロードされた作品画像の保存先を提供する。
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidKey はストレージキーが不正であることを示す。
var ErrInvalidKey = errors.New("invalid storage key")

// StoredFile はストレージ上のファイル情報。
type StoredFile struct {
	Key     string
	ModTime time.Time
}

// Store は画像ファイルの保存先インターフェース。
type Store interface {
	// Save はデータを保存し、生成したストレージキーを返す。
	// キーは "<uuid><ext>" 形式で、拡張子は呼び出し元が指定する。
	Save(ctx context.Context, data []byte, ext string) (string, error)
	// Delete は指定キーのファイルを削除する。存在しない場合はnilを返す。
	Delete(ctx context.Context, key string) error
	// URL は公開URLを返す。
	URL(key string) string
	// List は保存されている全ファイルを返す。
	List(ctx context.Context) ([]StoredFile, error)
}

// LocalStore はローカルディレクトリに保存するStore。
type LocalStore struct {
	dir       string
	urlPrefix string
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore はLocalStoreを生成する。ディレクトリが無ければ作成する。
func NewLocalStore(dir, urlPrefix string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("アップロードディレクトリの作成に失敗: %w", err)
	}
	return &LocalStore{
		dir:       dir,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
	}, nil
}

// Dir は保存先ディレクトリを返す。
func (s *LocalStore) Dir() string {
	return s.dir
}

// Save はファイルを一時ファイル経由で書き込み、完成後にリネームする。
func (s *LocalStore) Save(ctx context.Context, data []byte, ext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("ストレージキーの生成に失敗: %w", err)
	}
	key := id.String() + strings.ToLower(ext)

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("一時ファイルの作成に失敗: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("ファイルの書き込みに失敗: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("ファイルの書き込みに失敗: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("ファイル権限の設定に失敗: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, key)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("ファイルの保存に失敗: %w", err)
	}
	return key, nil
}

// Delete はファイルを削除する。既に存在しない場合は成功扱いとする。
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.dir, key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("ファイルの削除に失敗: %w", err)
	}
	return nil
}

// URL は公開URLを返す。
func (s *LocalStore) URL(key string) string {
	return path.Join(s.urlPrefix, key)
}

// List はディレクトリ直下の通常ファイルを返す。書き込み途中の一時ファイルは除く。
func (s *LocalStore) List(ctx context.Context) ([]StoredFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("アップロードディレクトリの読み取りに失敗: %w", err)
	}

	files := make([]StoredFile, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, StoredFile{Key: e.Name(), ModTime: info.ModTime()})
	}
	return files, nil
}

func validKey(key string) error {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
