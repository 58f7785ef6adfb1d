package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/materials"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/pricing"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/units"
)

type PriceSource interface {
	CurrentPrice(ctx context.Context, materialID int64) (pricing.PriceRecord, error)
}

type MaterialSource interface {
	GetByID(ctx context.Context, id int64) (*materials.Material, error)
}

// Calculator себестоимость изделия по текущим ценам. Ничего не кэширует.
type Calculator struct {
	prices    PriceSource
	materials MaterialSource
}

func NewCalculator(prices PriceSource, mats MaterialSource) *Calculator {
	return &Calculator{prices: prices, materials: mats}
}

func (c *Calculator) Cost(ctx context.Context, p Product) (ProductCost, error) {
	out := ProductCost{
		ProductID:               p.ID,
		TotalCost:               decimal.Zero,
		UnpricedComponents:      []int64{},
		UnconvertibleComponents: []int64{},
		Lines:                   make([]CostLine, 0, len(p.Components)),
	}

	for _, comp := range p.Components {
		m, err := c.materials.GetByID(ctx, comp.MaterialID)
		if err != nil {
			return ProductCost{}, err
		}
		if m == nil {
			return ProductCost{}, fmt.Errorf("component %d: %w: %d", comp.ID, pricing.ErrUnknownMaterial, comp.MaterialID)
		}

		line := CostLine{
			ComponentID:  comp.ID,
			MaterialID:   comp.MaterialID,
			MaterialName: m.Name,
			Quantity:     comp.Quantity,
			Unit:         comp.Unit,
		}

		conv := m.Conversion()
		qty, err := conv.ToUsage(comp.Quantity, comp.Unit)
		if err != nil {
			if !errors.Is(err, units.ErrIncompatibleUnit) && !errors.Is(err, units.ErrInvalidConversionFactor) {
				return ProductCost{}, err
			}
			line.Status = StatusUnconvertible
			out.UnconvertibleComponents = append(out.UnconvertibleComponents, comp.ID)
			out.Lines = append(out.Lines, line)
			continue
		}
		line.UsageQuantity = &qty

		rec, err := c.prices.CurrentPrice(ctx, comp.MaterialID)
		if errors.Is(err, pricing.ErrNotFound) {
			line.Status = StatusAwaitingPrice
			out.UnpricedComponents = append(out.UnpricedComponents, comp.ID)
			out.Lines = append(out.Lines, line)
			continue
		}
		if err != nil {
			return ProductCost{}, err
		}

		usagePrice, err := conv.UsagePrice(rec.UnitPrice)
		if err != nil {
			return ProductCost{}, err
		}
		cost := qty.Mul(usagePrice)
		line.UsageUnitPrice = &usagePrice
		line.Cost = &cost
		line.Status = StatusPriced

		out.TotalCost = out.TotalCost.Add(cost)
		out.PricedComponentCount++
		out.Lines = append(out.Lines, line)
	}

	out.Complete = len(out.UnpricedComponents) == 0 && len(out.UnconvertibleComponents) == 0
	return out, nil
}
