package artwork

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/fishcafe/perkportal/internal/model"
)

// DefaultMaxSize は画像サイズの既定上限（10MB）。
const DefaultMaxSize int64 = 10 * 1024 * 1024

// allowedTypes は受け付ける画像形式と保存時の拡張子。
var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ImageInfo は検証済み画像の形式。
type ImageInfo struct {
	MimeType  string
	Extension string
}

// ValidateImage は申告されたContent-Typeと実データの両方が許可形式であり、
// サイズが上限以内であることを検証する。
func ValidateImage(declaredType string, data []byte, maxSize int64) (*ImageInfo, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if len(data) == 0 {
		return nil, model.NewInvalidFileError("ファイルが空です")
	}
	if int64(len(data)) > maxSize {
		return nil, model.NewFileTooLargeError(maxSize)
	}

	declared := mediaType(declaredType)
	if _, ok := allowedTypes[declared]; !ok {
		return nil, model.NewInvalidFileError("許可されていない形式です（" + declaredType + "）")
	}

	detected := mimetype.Detect(data)
	sniffed := mediaType(detected.String())
	ext, ok := allowedTypes[sniffed]
	if !ok {
		return nil, model.NewInvalidFileError("画像データとして認識できません")
	}

	return &ImageInfo{MimeType: sniffed, Extension: ext}, nil
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	mt = strings.ToLower(mt)
	if mt == "image/jpg" || mt == "image/pjpeg" {
		return "image/jpeg"
	}
	return mt
}
