// Package xlsx импорт строк накладных и выгрузка истории цен в Excel.
package xlsx

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/invoices"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/pricing"
)

func ReadBatchFile(path string, h invoices.Header) (invoices.Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return invoices.Batch{}, err
	}
	return ReadBatch(data, h)
}

// ReadBatch первая строка активного листа: заголовки колонок (descricao, quantidade,
// valorUnitario, unidade, valorTotal или их англ. варианты). Пустые строки пропускаются.
func ReadBatch(data []byte, h invoices.Header) (invoices.Batch, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return invoices.Batch{}, fmt.Errorf("xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		return invoices.Batch{}, fmt.Errorf("xlsx: %w", err)
	}
	if len(rows) < 2 {
		return invoices.Batch{}, invoices.ErrEmptyInvoice
	}

	header := make([]string, len(rows[0]))
	for i, c := range rows[0] {
		header[i] = strings.TrimSpace(c)
	}

	if h.Origin == "" {
		h.Origin = pricing.OriginSpreadsheet
	}
	if h.FileHash == "" {
		h.FileHash = invoices.FileHash(data)
	}
	b := invoices.Batch{Header: h}
	for _, row := range rows[1:] {
		m := make(map[string]any, len(header))
		empty := true
		for i, key := range header {
			if key == "" || i >= len(row) {
				continue
			}
			v := strings.TrimSpace(row[i])
			if v == "" {
				continue
			}
			m[key] = v
			empty = false
		}
		if empty {
			continue
		}
		b.Items = append(b.Items, invoices.FromMap(m))
	}
	if len(b.Items) == 0 {
		return b, invoices.ErrEmptyInvoice
	}
	return b, nil
}
