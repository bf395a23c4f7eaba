package model

import "time"

// DefaultArtworkTitle はタイトル未入力時に使うプレースホルダー。
const DefaultArtworkTitle = "Untitled"

// Artwork はアートウォールに掲載する作品を表す。
// IDはUUIDv7で、生成順にソートできる。
type Artwork struct {
	ID           string
	Title        string
	Description  string
	FeaturedUser string
	URL          string
	StorageKey   string
	MimeType     string
	Size         int64
	UploadedBy   string
	UploadedAt   time.Time
}

// ArtworkUpdate は作品情報の部分更新。空文字列のフィールドは変更しない。
type ArtworkUpdate struct {
	Title       string `json:"title" validate:"max=100"`
	Description string `json:"description" validate:"max=1000"`
}

// Apply は空でないフィールドだけを作品に反映する。
func (u ArtworkUpdate) Apply(a *Artwork) {
	if u.Title != "" {
		a.Title = u.Title
	}
	if u.Description != "" {
		a.Description = u.Description
	}
}
