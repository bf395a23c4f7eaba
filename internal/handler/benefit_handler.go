package handler

import (
	"net/http"

	"github.com/fishcafe/perkportal/internal/model"
)

// BenefitLister は特典一覧を返す。benefit.Catalogを抽象化する。
type BenefitLister interface {
	List() []model.Benefit
}

// BenefitHandler は特典一覧のHTTPハンドラー。
type BenefitHandler struct {
	benefits BenefitLister
}

// NewBenefitHandler はBenefitHandlerを生成する。
func NewBenefitHandler(benefits BenefitLister) *BenefitHandler {
	return &BenefitHandler{benefits: benefits}
}

// List は特典一覧を返す。
// GET /api/benefits
func (h *BenefitHandler) List(w http.ResponseWriter, r *http.Request) {
	list := h.benefits.List()
	if list == nil {
		list = []model.Benefit{}
	}
	writeJSON(w, http.StatusOK, list)
}
