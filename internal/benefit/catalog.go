// Package benefit はブースター特典の一覧を提供する。
package benefit

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/fishcafe/perkportal/internal/model"
)

//go:embed default_benefits.yaml
var defaultBenefits []byte

// Catalog は起動時に読み込んだ特典一覧。読み込み後は変更しない。
type Catalog struct {
	benefits []model.Benefit
}

// Load は特典一覧を読み込む。pathが空の場合は組み込みの一覧を使う。
func Load(path string) (*Catalog, error) {
	data := defaultBenefits
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("特典ファイルの読み込みに失敗: %w", err)
		}
		data = b
	}
	return Parse(data)
}

// Parse はYAMLから特典一覧を生成する。IDの重複と必須項目の欠落はエラーとする。
func Parse(data []byte) (*Catalog, error) {
	var benefits []model.Benefit
	if err := yaml.Unmarshal(data, &benefits); err != nil {
		return nil, fmt.Errorf("特典ファイルの解析に失敗: %w", err)
	}

	validate := validator.New()
	seen := make(map[string]struct{}, len(benefits))
	for i, b := range benefits {
		if err := validate.Struct(b); err != nil {
			return nil, fmt.Errorf("特典%d件目が不正です: %w", i+1, err)
		}
		if _, dup := seen[b.ID]; dup {
			return nil, fmt.Errorf("特典IDが重複しています: %s", b.ID)
		}
		seen[b.ID] = struct{}{}
	}

	return &Catalog{benefits: benefits}, nil
}

// List は特典一覧のコピーを返す。
func (c *Catalog) List() []model.Benefit {
	out := make([]model.Benefit, len(c.benefits))
	copy(out, c.benefits)
	return out
}
