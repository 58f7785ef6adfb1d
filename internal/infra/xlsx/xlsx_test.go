package xlsx

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/invoices"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/materials"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/pricing"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/units"
)

func workbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatal(err)
		}
	}
	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestReadBatch(t *testing.T) {
	data := workbook(t, [][]any{
		{"descricao", "unidade", "quantidade", "valorUnitario", "valorTotal"},
		{"Aço Carbono 1020", "kg", "100", "8,20", "820,00"},
		{},
		{"Verniz", "L", "2", "R$ 45,90", ""},
	})
	b, err := ReadBatch(data, invoices.Header{Number: "PLAN-1"})
	if err != nil {
		t.Fatal(err)
	}
	if b.Header.Origin != pricing.OriginSpreadsheet || len(b.Header.FileHash) != 32 {
		t.Errorf("header = %+v", b.Header)
	}
	if len(b.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(b.Items))
	}

	n := invoices.NewNormalizer(invoices.DefaultTotalTolerance)
	verniz := n.Normalize(b.Items[1])
	if verniz.Unit != units.L || !verniz.UnitPrice.Equal(decimal.RequireFromString("45.9")) || !verniz.LineTotal.Equal(decimal.RequireFromString("91.8")) {
		t.Errorf("item = %+v", verniz)
	}
}

func TestReadBatchEmpty(t *testing.T) {
	data := workbook(t, [][]any{{"descricao", "quantidade"}})
	if _, err := ReadBatch(data, invoices.Header{}); !errors.Is(err, invoices.ErrEmptyInvoice) {
		t.Errorf("err = %v", err)
	}
}

func TestWriteHistory(t *testing.T) {
	m := materials.Material{ID: 7, Name: "Aço Carbono 1020", PurchaseUnit: units.KG, UsageUnit: units.G, ConversionFactor: decimal.NewFromInt(1000)}
	jan := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC)
	pct := decimal.NewFromInt(10)
	recs := []pricing.PriceRecord{
		{ID: uuid.New(), MaterialID: 7, UnitPrice: decimal.RequireFromString("9.02"), EffectiveFrom: feb, VariationPct: &pct, Origin: pricing.OriginNotaXML},
		{ID: uuid.New(), MaterialID: 7, UnitPrice: decimal.RequireFromString("8.20"), EffectiveFrom: jan, EffectiveUntil: &feb, Origin: pricing.OriginNotaXML},
	}

	buf := &bytes.Buffer{}
	if err := WriteHistory(buf, []HistoryEntry{{Material: m, Records: recs}}); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0][3] != "unit_price" || rows[1][1] != "Aço Carbono 1020" {
		t.Errorf("unexpected layout: %v / %v", rows[0], rows[1])
	}
	if rows[1][5] != "0.00902" || rows[2][7] != "2025-02-20 00:00" {
		t.Errorf("usage price %q, closed at %q", rows[1][5], rows[2][7])
	}
}
