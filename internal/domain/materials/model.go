package materials

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/units"
)

type Material struct {
	ID           int64
	Name         string
	PurchaseUnit units.Code // единица закупки (кг, рулон, ...)
	UsageUnit    units.Code // единица использования в калькуляции (г, м, ...)
	// сколько единиц использования в одной единице закупки, > 0
	ConversionFactor decimal.Decimal
	Active           bool
	CreatedAt        time.Time
}

func (m Material) Conversion() units.Conversion {
	return units.Conversion{
		Purchase: m.PurchaseUnit,
		Usage:    m.UsageUnit,
		Factor:   m.ConversionFactor,
	}
}
