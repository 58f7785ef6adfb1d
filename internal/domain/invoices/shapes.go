package invoices

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Ключи разных источников: ручная форма, NF-e XML, таблица, JSON от распознавания.
var (
	materialKeys   = []string{"materialReference", "material", "descricao", "description", "xProd", "nome", "name", "produto"}
	materialIDKeys = []string{"materialId", "material_id", "materia_prima_id", "materiaPrimaId"}
	unitKeys       = []string{"unit", "unidade", "uCom", "un"}
	quantityKeys   = []string{"quantity", "quantidade", "qCom", "qty", "qtd"}
	unitPriceKeys  = []string{"unitPrice", "unit_price", "valorUnitario", "valor_unitario", "vUnCom", "preco"}
	totalKeys      = []string{"lineTotal", "total", "valorTotal", "valor_total", "vProd", "amount"}
	observedKeys   = []string{"observedAt", "observed_at", "data", "date"}
)

// FromMap приводит строку любого поддерживаемого источника к RawLineItem.
// Ключи сравниваются без учёта регистра.
func FromMap(m map[string]any) RawLineItem {
	lower := make(map[string]any, len(m))
	for k, v := range m {
		lower[strings.ToLower(strings.TrimSpace(k))] = v
	}
	pick := func(keys []string) any {
		for _, k := range keys {
			if v, ok := lower[strings.ToLower(k)]; ok && v != nil {
				return v
			}
		}
		return nil
	}

	raw := RawLineItem{
		Material:  toString(pick(materialKeys)),
		Unit:      toString(pick(unitKeys)),
		Quantity:  pick(quantityKeys),
		UnitPrice: pick(unitPriceKeys),
		LineTotal: pick(totalKeys),
	}
	raw.MaterialID = toID(pick(materialIDKeys))
	if t, ok := toTime(pick(observedKeys)); ok {
		raw.ObservedAt = t
	}
	return raw
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func toID(v any) int64 {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int64:
		return x
	case float64:
		return int64(x)
	case json.Number:
		n, _ := x.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n
	}
	return 0
}

var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02", "02/01/2006"}

func toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, !x.IsZero()
	case string:
		x = strings.TrimSpace(x)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, x); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
