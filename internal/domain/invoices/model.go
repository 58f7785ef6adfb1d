package invoices

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/pricing"
)

var (
	ErrUnknownMaterial  = pricing.ErrUnknownMaterial
	ErrDuplicateInvoice = errors.New("invoice already imported")
	ErrEmptyInvoice     = errors.New("invoice has no items")
)

// Header шапка документа (нота фискальная, таблица, ручной ввод).
type Header struct {
	Number       string
	Series       string
	AccessKey    string // chave de acesso NF-e, 44 цифры
	SupplierID   *int64
	SupplierName string
	SupplierCNPJ string
	IssuedAt     time.Time
	Origin       pricing.Origin
	FileHash     string
}

type Batch struct {
	Header Header
	Items  []RawLineItem
}

type Invoice struct {
	ID         int64          `json:"id"`
	Number     string         `json:"number"`
	Series     string         `json:"series,omitempty"`
	AccessKey  string         `json:"accessKey,omitempty"`
	SupplierID *int64         `json:"supplierId"`
	IssuedAt   time.Time      `json:"issuedAt"`
	Origin     pricing.Origin `json:"origin"`
	FileHash   string         `json:"fileHash,omitempty"`
	// Total сумма итогов строк из документа, ComputedTotal: сумма пересчитанных
	Total         decimal.Decimal `json:"total"`
	ComputedTotal decimal.Decimal `json:"computedTotal"`
	Items         []Item          `json:"items"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Item строка сохранённой накладной.
type Item struct {
	ID int64 `json:"id"`
	LineItem
}

func (inv Invoice) Flagged() []Item {
	var out []Item
	for _, it := range inv.Items {
		if len(it.Flags) > 0 {
			out = append(out, it)
		}
	}
	return out
}

func newInvoice(h Header, supplierID *int64, items []LineItem) Invoice {
	inv := Invoice{
		Number:        h.Number,
		Series:        h.Series,
		AccessKey:     h.AccessKey,
		SupplierID:    supplierID,
		IssuedAt:      h.IssuedAt,
		Origin:        h.Origin,
		FileHash:      h.FileHash,
		Total:         decimal.Zero,
		ComputedTotal: decimal.Zero,
		Items:         make([]Item, len(items)),
	}
	for i, li := range items {
		inv.Items[i] = Item{LineItem: li}
		inv.Total = inv.Total.Add(li.LineTotal)
		inv.ComputedTotal = inv.ComputedTotal.Add(li.ComputedTotal)
	}
	return inv
}

// FileHash md5 содержимого файла, 32 hex-символа.
func FileHash(content []byte) string {
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:])
}
