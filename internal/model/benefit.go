package model

// Benefit はブースター特典の説明。
type Benefit struct {
	ID          string `json:"id" yaml:"id" validate:"required"`
	Name        string `json:"name" yaml:"name" validate:"required"`
	Description string `json:"description" yaml:"description"`
	Icon        string `json:"icon" yaml:"icon"`
	Category    string `json:"category" yaml:"category"`
}
