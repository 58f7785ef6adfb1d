package pricing

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const DefaultEpsilon = 1e-6

var hundred = decimal.NewFromInt(100)

// Decision результат сравнения новой цены с текущей записью.
// Changed=false: событие истории не нужно, Open: существующая открытая запись.
// Changed=true: Closed (если была открытая) закрывается, Open открывается в тот же момент.
type Decision struct {
	Changed bool
	Closed  *PriceRecord
	Open    PriceRecord
}

type Detector struct {
	epsilon decimal.Decimal
}

func NewDetector(epsilon float64) Detector {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}
	return Detector{epsilon: decimal.NewFromFloat(epsilon)}
}

// Detect решает, нужно ли событие истории для obs при текущей записи open (может быть nil).
// Наблюдения с той же датой, что и открытая запись, закрывают её: побеждает
// обработанное позже.
func (d Detector) Detect(open *PriceRecord, obs Observation) (Decision, error) {
	if obs.Price.Sign() <= 0 {
		return Decision{}, fmt.Errorf("%w: %s", ErrInvalidPrice, obs.Price)
	}
	if open == nil {
		return Decision{Changed: true, Open: newRecord(obs, nil)}, nil
	}
	if obs.ObservedAt.Before(open.EffectiveFrom) {
		return Decision{}, fmt.Errorf("%w: %s < %s", ErrOutOfOrderObservation,
			obs.ObservedAt.Format("2006-01-02 15:04:05"), open.EffectiveFrom.Format("2006-01-02 15:04:05"))
	}
	if obs.Price.Sub(open.UnitPrice).Abs().LessThan(d.epsilon) {
		return Decision{Changed: false, Open: *open}, nil
	}

	closed := *open
	until := obs.ObservedAt
	closed.EffectiveUntil = &until
	return Decision{
		Changed: true,
		Closed:  &closed,
		Open:    newRecord(obs, Variation(open.UnitPrice, obs.Price)),
	}, nil
}

// Variation (next - prev) / prev * 100, знак сохраняется.
// Единственная формула вариации: и для записи, и для чтения истории.
func Variation(prev, next decimal.Decimal) *decimal.Decimal {
	if prev.Sign() <= 0 {
		return nil
	}
	v := next.Sub(prev).Div(prev).Mul(hundred).Round(4)
	return &v
}

func newRecord(obs Observation, variation *decimal.Decimal) PriceRecord {
	return PriceRecord{
		ID:            uuid.New(),
		MaterialID:    obs.MaterialID,
		UnitPrice:     obs.Price,
		EffectiveFrom: obs.ObservedAt,
		SupplierID:    obs.Source.SupplierID,
		InvoiceID:     obs.Source.InvoiceID,
		Origin:        originOrManual(obs.Source.Origin),
		VariationPct:  variation,
	}
}

func originOrManual(o Origin) Origin {
	if o == "" {
		return OriginManual
	}
	return o
}
