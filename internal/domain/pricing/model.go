package pricing

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownMaterial       = errors.New("unknown material")
	ErrNotFound              = errors.New("no price recorded for material")
	ErrInvalidPrice          = errors.New("price must be > 0")
	ErrConcurrentPriceUpdate = errors.New("concurrent price update")
	ErrOutOfOrderObservation = errors.New("observation is older than the current price")
)

// Origin откуда пришла цена.
type Origin string

const (
	OriginManual      Origin = "manual"
	OriginNotaXML     Origin = "nota_xml"
	OriginNotaPDF     Origin = "nota_pdf"
	OriginSpreadsheet Origin = "spreadsheet"
	OriginAPI         Origin = "api"
)

type Source struct {
	SupplierID *int64
	InvoiceID  *int64
	Origin     Origin
}

// PriceRecord цена материала за единицу закупки в интервале [EffectiveFrom, EffectiveUntil).
// EffectiveUntil == nil: текущая (открытая) запись.
type PriceRecord struct {
	ID             uuid.UUID
	Seq            int64 // порядок записи, разрешает записи с одинаковой датой
	MaterialID     int64
	UnitPrice      decimal.Decimal
	EffectiveFrom  time.Time
	EffectiveUntil *time.Time
	SupplierID     *int64
	InvoiceID      *int64
	Origin         Origin
	// к предыдущей записи, в процентах; nil у первой записи материала
	VariationPct *decimal.Decimal
	// считается при чтении истории, не хранится
	VariationAbs *decimal.Decimal
	CreatedAt    time.Time
}

func (r PriceRecord) IsOpen() bool { return r.EffectiveUntil == nil }

// Observation новая наблюдённая цена материала.
type Observation struct {
	MaterialID int64
	Price      decimal.Decimal
	ObservedAt time.Time
	Source     Source
}

// HistoryFilter пустые поля не фильтруют.
type HistoryFilter struct {
	From       *time.Time
	To         *time.Time
	SupplierID *int64
}

func (f HistoryFilter) match(r PriceRecord) bool {
	if f.From != nil && r.EffectiveFrom.Before(*f.From) {
		return false
	}
	if f.To != nil && r.EffectiveFrom.After(*f.To) {
		return false
	}
	if f.SupplierID != nil && (r.SupplierID == nil || *r.SupplierID != *f.SupplierID) {
		return false
	}
	return true
}
