package booster

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeHexColor は先頭の#を補い、前後の空白を取り除く。
func NormalizeHexColor(s string) string {
	s = strings.TrimSpace(s)
	if s != "" && !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	return s
}

// ParseHexColor は3桁または6桁の16進カラーコードを0xRRGGBBの整数に変換する。
// 先頭の#は省略できる。3桁の場合は各桁を2桁に展開する（#abc → #AABBCC）。
func ParseHexColor(s string) (int, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")

	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	case 6:
	default:
		return 0, fmt.Errorf("カラーコードは3桁または6桁で指定してください: %q", s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("カラーコードが16進数ではありません: %q", s)
	}
	return int(v), nil
}

// FormatHexColor は0xRRGGBBの整数を "#RRGGBB"（大文字）に変換する。
func FormatHexColor(color int) string {
	return fmt.Sprintf("#%06X", color&0xFFFFFF)
}
