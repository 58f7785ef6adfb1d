package xlsx

import (
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/materials"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/pricing"
)

const dateLayout = "2006-01-02 15:04"

var historyHeader = []any{
	"material_id",
	"material_name",
	"purchase_unit",
	"unit_price",
	"usage_unit",
	"usage_unit_price",
	"effective_from",
	"effective_until",
	"variation_pct",
	"variation_abs",
	"supplier_id",
	"invoice_id",
	"origin",
}

// HistoryEntry материал и его записи (новые первыми).
type HistoryEntry struct {
	Material materials.Material
	Records  []pricing.PriceRecord
}

// WriteHistory одна строка на запись цены, один лист.
func WriteHistory(w io.Writer, entries []HistoryEntry) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	header := historyHeader
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	row := 2
	for _, e := range entries {
		conv := e.Material.Conversion()
		for _, rec := range e.Records {
			v := pricing.NewRecordView(rec, conv)
			excelRow := []any{
				e.Material.ID,
				e.Material.Name,
				string(e.Material.PurchaseUnit),
				v.UnitPrice.InexactFloat64(),
				string(e.Material.UsageUnit),
				optFloat(v.UsageUnitPrice),
				v.EffectiveFrom.Format(dateLayout),
				"",
				optFloat(v.VariationPercent),
				optFloat(v.VariationAbs),
				optInt(v.SupplierID),
				optInt(v.SourceInvoiceID),
				string(v.Origin),
			}
			if v.EffectiveUntil != nil {
				excelRow[7] = v.EffectiveUntil.Format(dateLayout)
			}
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sheet, cell, &excelRow); err != nil {
				return err
			}
			row++
		}
	}
	return f.Write(w)
}

func optFloat(d *decimal.Decimal) any {
	if d == nil {
		return ""
	}
	return d.InexactFloat64()
}

func optInt(v *int64) any {
	if v == nil {
		return ""
	}
	return *v
}
