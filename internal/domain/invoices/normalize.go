package invoices

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/units"
)

type Flag string

const (
	FlagLowConfidence Flag = "low-confidence"
	FlagTotalMismatch Flag = "total-mismatch"
	FlagCustomUnit    Flag = "custom-unit"
)

const DefaultTotalTolerance = 0.01

// exactPricePlaces точность цены из документа (vUnCom в NF-e до 10 знаков).
const exactPricePlaces = 10

// RawLineItem строка документа как есть: числа могут быть строками в любом формате.
type RawLineItem struct {
	Material   string
	MaterialID int64
	Unit       string
	Quantity   any
	UnitPrice  any
	LineTotal  any
	ObservedAt time.Time // нулевая: дата документа
	Flags      []Flag
}

// LineItem нормализованная строка.
// UnitPrice округлена до копеек для отображения, UnitPriceExact: цена из документа без округления,
// от неё считаются ComputedTotal = round(Quantity*UnitPriceExact, 2) и цена для истории.
// LineTotal: итог из документа (для аудита).
type LineItem struct {
	Material       string          `json:"material"`
	MaterialID     int64           `json:"materialId,omitempty"`
	Unit           units.Code      `json:"unit"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	UnitPriceExact decimal.Decimal `json:"unitPriceExact"`
	LineTotal      decimal.Decimal `json:"lineTotal"`
	ComputedTotal  decimal.Decimal `json:"computedTotal"`
	ObservedAt     time.Time       `json:"observedAt,omitzero"`
	Flags          []Flag          `json:"flags"`
}

func (li LineItem) HasFlag(f Flag) bool {
	for _, x := range li.Flags {
		if x == f {
			return true
		}
	}
	return false
}

// Raw обратное преобразование: Normalize(li.Raw()) == li.
func (li LineItem) Raw() RawLineItem {
	return RawLineItem{
		Material:   li.Material,
		MaterialID: li.MaterialID,
		Unit:       string(li.Unit),
		Quantity:   li.Quantity,
		UnitPrice:  li.UnitPriceExact,
		LineTotal:  li.LineTotal,
		ObservedAt: li.ObservedAt,
		Flags:      append([]Flag(nil), li.Flags...),
	}
}

// Normalizer без состояния, безопасен для конкурентного использования.
type Normalizer struct {
	tolerance decimal.Decimal
}

func NewNormalizer(tolerance float64) Normalizer {
	if tolerance <= 0 {
		tolerance = DefaultTotalTolerance
	}
	return Normalizer{tolerance: decimal.NewFromFloat(tolerance)}
}

func (n Normalizer) Normalize(raw RawLineItem) LineItem {
	flags := make(map[Flag]struct{}, len(raw.Flags)+2)
	for _, f := range raw.Flags {
		flags[f] = struct{}{}
	}

	qty, st := parseNumber(raw.Quantity)
	if st == numInvalid {
		flags[FlagLowConfidence] = struct{}{}
	}
	qty = qty.Round(4)

	price, st := parseNumber(raw.UnitPrice)
	if st == numInvalid {
		flags[FlagLowConfidence] = struct{}{}
	}
	exact := price.Round(exactPricePlaces)

	computed := qty.Mul(exact).Round(2)
	total := computed
	supplied, st := parseNumber(raw.LineTotal)
	switch st {
	case numOK:
		total = supplied.Round(2)
		if total.Sub(computed).Abs().GreaterThan(n.tolerance) {
			flags[FlagTotalMismatch] = struct{}{}
		}
	case numInvalid:
		flags[FlagLowConfidence] = struct{}{}
	}

	unit, known := units.Resolve(raw.Unit)
	switch {
	case unit == "":
		flags[FlagLowConfidence] = struct{}{}
	case !known:
		flags[FlagCustomUnit] = struct{}{}
	}

	return LineItem{
		Material:       cleanName(raw.Material),
		MaterialID:     raw.MaterialID,
		Unit:           unit,
		Quantity:       qty,
		UnitPrice:      exact.Round(2),
		UnitPriceExact: exact,
		LineTotal:      total,
		ComputedTotal:  computed,
		ObservedAt:     raw.ObservedAt,
		Flags:          sortedFlags(flags),
	}
}

func (n Normalizer) NormalizeAll(raw []RawLineItem) []LineItem {
	out := make([]LineItem, len(raw))
	for i, r := range raw {
		out[i] = n.Normalize(r)
	}
	return out
}

func cleanName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func sortedFlags(set map[Flag]struct{}) []Flag {
	out := make([]Flag, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
