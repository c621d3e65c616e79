package service

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/choyxona-bot/internal/menu"
	"github.com/mmeshcher/choyxona-bot/internal/model"
)

// UnknownMenuItemError возвращается, если заказ ссылается на отсутствующую позицию меню.
// Текст ошибки показывается пользователю как есть.
type UnknownMenuItemError struct {
	ID string
}

func (e *UnknownMenuItemError) Error() string {
	return fmt.Sprintf("Menu item '%s' mavjud emas", e.ID)
}

// Calculation содержит разбивку заказа и производные суммы.
type Calculation struct {
	Items []model.StoredOrderItem
	// Gross — сумма позиций до скидки.
	Gross decimal.Decimal
	// Discount не превышает Gross.
	Discount decimal.Decimal
	Net      decimal.Decimal
	Paid     decimal.Decimal
	Change   decimal.Decimal
	Balance  decimal.Decimal
}

// Calculate рассчитывает заказ по каталогу. Функция не имеет побочных эффектов.
func Calculate(req model.OrderRequest, catalogue *menu.Catalogue) (Calculation, error) {
	calc := Calculation{
		Items: make([]model.StoredOrderItem, 0, len(req.Items)),
		Gross: decimal.Zero,
	}

	for _, it := range req.Items {
		mi, ok := catalogue.Lookup(it.ID)
		if !ok {
			return Calculation{}, &UnknownMenuItemError{ID: it.ID}
		}
		subtotal := mi.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		calc.Items = append(calc.Items, model.StoredOrderItem{
			MenuID:    mi.ID,
			Name:      mi.Name,
			Quantity:  it.Quantity,
			UnitPrice: mi.Price,
			Subtotal:  subtotal,
		})
		calc.Gross = calc.Gross.Add(subtotal)
	}

	calc.Discount = decimal.Min(decimal.NewFromInt(req.Discount), calc.Gross)
	calc.Net = calc.Gross.Sub(calc.Discount)
	calc.Paid = decimal.NewFromInt(req.Paid)
	calc.Change = decimal.Max(calc.Paid.Sub(calc.Net), decimal.Zero)
	calc.Balance = decimal.Max(calc.Net.Sub(calc.Paid), decimal.Zero)

	return calc, nil
}
