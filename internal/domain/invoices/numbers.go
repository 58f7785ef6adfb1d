package invoices

import (
	"encoding/json"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

type numState int

const (
	numMissing numState = iota
	numOK
	numInvalid
)

// parseNumber разбирает число из JSON/XML/таблицы.
// Строки: "R$ 1.234,56" -> 1234.56, "12,5" -> 12.5, "12.5" -> 12.5, "1.234.567" -> 1234567.
// Отрицательные значения считаются некорректными.
func parseNumber(v any) (decimal.Decimal, numState) {
	var (
		d   decimal.Decimal
		err error
	)
	switch x := v.(type) {
	case nil:
		return decimal.Zero, numMissing
	case decimal.Decimal:
		d = x
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero, numMissing
		}
		d = *x
	case float64:
		d = decimal.NewFromFloat(x)
	case float32:
		d = decimal.NewFromFloat32(x)
	case int:
		d = decimal.NewFromInt(int64(x))
	case int64:
		d = decimal.NewFromInt(x)
	case json.Number:
		d, err = decimal.NewFromString(x.String())
	case string:
		return parseNumberString(x)
	default:
		return decimal.Zero, numInvalid
	}
	if err != nil || d.Sign() < 0 {
		return decimal.Zero, numInvalid
	}
	return d, numOK
}

// currencyMarks единственный текст, допустимый рядом с числом.
var currencyMarks = strings.NewReplacer("R$", "", "r$", "", "$", "", "€", "")

func parseNumberString(s string) (decimal.Decimal, numState) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, numMissing
	}

	var b strings.Builder
	digits := 0
	for _, r := range currencyMarks.Replace(s) {
		switch {
		case r >= '0' && r <= '9':
			digits++
			b.WriteRune(r)
		case r == ',' || r == '.':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			// пробелы и NBSP: разделители тысяч или отступы
		default:
			// буквы, знак минуса, экспонента, диапазоны вида "10 a 12"
			return decimal.Zero, numInvalid
		}
	}
	if digits == 0 {
		return decimal.Zero, numInvalid
	}
	clean := b.String()

	commas := strings.Count(clean, ",")
	dots := strings.Count(clean, ".")
	switch {
	case commas > 0 && dots > 0:
		// десятичным считается последний разделитель
		if strings.LastIndex(clean, ",") > strings.LastIndex(clean, ".") {
			clean = strings.ReplaceAll(clean, ".", "")
			clean = strings.Replace(clean, ",", ".", 1)
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case commas == 1:
		clean = strings.Replace(clean, ",", ".", 1)
	case commas > 1:
		clean = strings.ReplaceAll(clean, ",", "")
	case dots > 1:
		clean = strings.ReplaceAll(clean, ".", "")
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, numInvalid
	}
	return d, numOK
}
