package units

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Precision: знаков после запятой при делении цены на коэффициент.
const Precision int32 = 16

var (
	ErrInvalidConversionFactor = errors.New("conversion factor must be > 0")
	ErrIncompatibleUnit        = errors.New("unit is not convertible to usage unit")
)

// UsagePrice цена за единицу использования: purchasePrice / factor,
// где factor: сколько единиц использования в одной единице закупки.
func UsagePrice(purchasePrice, factor decimal.Decimal) (decimal.Decimal, error) {
	if factor.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidConversionFactor, factor)
	}
	return purchasePrice.DivRound(factor, Precision), nil
}

// PurchasePrice обратное преобразование к UsagePrice.
func PurchasePrice(usagePrice, factor decimal.Decimal) (decimal.Decimal, error) {
	if factor.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidConversionFactor, factor)
	}
	return usagePrice.Mul(factor), nil
}

// Conversion пара единиц материала и коэффициент между ними.
type Conversion struct {
	Purchase Code
	Usage    Code
	Factor   decimal.Decimal
}

func (c Conversion) Validate() error {
	if c.Factor.Sign() <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConversionFactor, c.Factor)
	}
	return nil
}

func (c Conversion) UsagePrice(purchasePrice decimal.Decimal) (decimal.Decimal, error) {
	return UsagePrice(purchasePrice, c.Factor)
}

// ToUsage переводит количество в единицы использования.
// Допускается количество в единице использования или в единице закупки.
func (c Conversion) ToUsage(qty decimal.Decimal, unit Code) (decimal.Decimal, error) {
	if err := c.Validate(); err != nil {
		return decimal.Zero, err
	}
	switch {
	case unit == "" || sameUnit(unit, c.Usage):
		return qty, nil
	case sameUnit(unit, c.Purchase):
		return qty.Mul(c.Factor), nil
	}
	return decimal.Zero, fmt.Errorf("%w: %q (usage %q, purchase %q)", ErrIncompatibleUnit, unit, c.Usage, c.Purchase)
}

func sameUnit(a, b Code) bool {
	ra, _ := Resolve(string(a))
	rb, _ := Resolve(string(b))
	return ra == rb
}

// PurchasePriceFrom цена за единицу закупки по цене, указанной за unit.
func (c Conversion) PurchasePriceFrom(price decimal.Decimal, unit Code) (decimal.Decimal, error) {
	if err := c.Validate(); err != nil {
		return decimal.Zero, err
	}
	switch {
	case unit == "" || sameUnit(unit, c.Purchase):
		return price, nil
	case sameUnit(unit, c.Usage):
		return PurchasePrice(price, c.Factor)
	}
	return decimal.Zero, fmt.Errorf("%w: %q (usage %q, purchase %q)", ErrIncompatibleUnit, unit, c.Usage, c.Purchase)
}
