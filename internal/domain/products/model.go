package products

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/units"
)

type Product struct {
	ID         int64
	Name       string
	Code       string // внутренний код изделия, уникален
	Active     bool
	CreatedAt  time.Time
	Components []Component
}

// Component материал в составе изделия.
// Unit: единица использования материала или единица закупки (тогда пересчитывается по коэффициенту).
type Component struct {
	ID         int64
	ProductID  int64
	MaterialID int64
	Quantity   decimal.Decimal
	Unit       units.Code
}

type LineStatus string

const (
	StatusPriced        LineStatus = "priced"
	StatusAwaitingPrice LineStatus = "awaiting_price"
	StatusUnconvertible LineStatus = "unconvertible"
)

// CostLine стоимость одного компонента.
type CostLine struct {
	ComponentID    int64            `json:"componentId"`
	MaterialID     int64            `json:"materialId"`
	MaterialName   string           `json:"materialName"`
	Quantity       decimal.Decimal  `json:"quantity"`
	Unit           units.Code       `json:"unit"`
	UsageQuantity  *decimal.Decimal `json:"usageQuantity"`
	UsageUnitPrice *decimal.Decimal `json:"usageUnitPrice"`
	Cost           *decimal.Decimal `json:"cost"`
	Status         LineStatus       `json:"status"`
}

// ProductCost TotalCost включает только компоненты с ценой; Complete=false,
// если хоть один компонент без цены или без пересчёта единиц.
type ProductCost struct {
	ProductID               int64           `json:"productId"`
	TotalCost               decimal.Decimal `json:"totalCost"`
	PricedComponentCount    int             `json:"pricedComponentCount"`
	UnpricedComponents      []int64         `json:"unpricedComponents"`
	UnconvertibleComponents []int64         `json:"unconvertibleComponents"`
	Complete                bool            `json:"complete"`
	Lines                   []CostLine      `json:"lines"`
}
