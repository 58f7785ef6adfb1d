package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/units"
)

// RecordView запись цены для внешних потребителей (HTTP, экспорт).
type RecordView struct {
	ID               string           `json:"id"`
	MaterialID       int64            `json:"materialId"`
	UnitPrice        decimal.Decimal  `json:"unitPrice"`
	UsageUnitPrice   *decimal.Decimal `json:"usageUnitPrice"`
	EffectiveFrom    time.Time        `json:"effectiveFrom"`
	EffectiveUntil   *time.Time       `json:"effectiveUntil"`
	VariationPercent *decimal.Decimal `json:"variationPercent"`
	VariationAbs     *decimal.Decimal `json:"variationAbs,omitempty"`
	SupplierID       *int64           `json:"supplierId"`
	SourceInvoiceID  *int64           `json:"sourceInvoiceId"`
	Origin           Origin           `json:"origin"`
}

// NewRecordView UsageUnitPrice = nil, если коэффициент материала некорректен.
func NewRecordView(r PriceRecord, conv units.Conversion) RecordView {
	v := RecordView{
		ID:               r.ID.String(),
		MaterialID:       r.MaterialID,
		UnitPrice:        r.UnitPrice,
		EffectiveFrom:    r.EffectiveFrom,
		EffectiveUntil:   r.EffectiveUntil,
		VariationPercent: r.VariationPct,
		VariationAbs:     r.VariationAbs,
		SupplierID:       r.SupplierID,
		SourceInvoiceID:  r.InvoiceID,
		Origin:           r.Origin,
	}
	if up, err := conv.UsagePrice(r.UnitPrice); err == nil {
		v.UsageUnitPrice = &up
	}
	return v
}
