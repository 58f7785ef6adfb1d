package suppliers

import (
	"strings"
	"time"
	"unicode"
)

type Supplier struct {
	ID        int64
	Name      string
	CNPJ      string // только цифры, 14 символов; пусто если неизвестен
	Active    bool
	CreatedAt time.Time
}

// NormalizeCNPJ оставляет только цифры.
func NormalizeCNPJ(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidCNPJ проверяет только формат (14 цифр, не все одинаковые), без контрольных цифр.
func ValidCNPJ(s string) bool {
	c := NormalizeCNPJ(s)
	if len(c) != 14 {
		return false
	}
	return strings.Count(c, c[:1]) != len(c)
}
