// Package model содержит доменные сущности бота чайханы.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MenuItem описывает позицию меню. Цена хранится в целых сумах.
type MenuItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
}

// MenuSection группирует позиции меню одной категории.
type MenuSection struct {
	Category string     `json:"category"`
	Items    []MenuItem `json:"items"`
}

// OrderItemRequest описывает строку заказа из Web App.
type OrderItemRequest struct {
	ID       string
	Quantity int
}

// OrderRequest описывает проверенный заказ из Web App.
type OrderRequest struct {
	Customer string
	Items    []OrderItemRequest
	Discount int64
	Paid     int64
}

// StoredOrderItem является снимком позиции меню на момент заказа.
type StoredOrderItem struct {
	MenuID    string          `json:"menu_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// StoredOrder описывает сохранённый заказ.
// Total содержит сумму к оплате с учётом скидки.
type StoredOrder struct {
	ID        int64             `json:"id"`
	ChatID    int64             `json:"chat_id"`
	Username  *string           `json:"username,omitempty"`
	Customer  string            `json:"customer"`
	Discount  decimal.Decimal   `json:"discount"`
	Paid      decimal.Decimal   `json:"paid"`
	Total     decimal.Decimal   `json:"total"`
	Change    decimal.Decimal   `json:"change"`
	Balance   decimal.Decimal   `json:"balance"`
	CreatedAt time.Time         `json:"created_at"`
	Items     []StoredOrderItem `json:"items"`
}

// OrdersSummary содержит агрегаты по заказам за день.
type OrdersSummary struct {
	TotalOrders  int             `json:"total_orders"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
	TotalBalance decimal.Decimal `json:"total_balance"`
	TotalChange  decimal.Decimal `json:"total_change"`
}

// Summarize агрегирует список заказов. Для пустого списка все значения равны нулю.
func Summarize(orders []StoredOrder) OrdersSummary {
	s := OrdersSummary{
		TotalOrders:  len(orders),
		TotalAmount:  decimal.Zero,
		TotalPaid:    decimal.Zero,
		TotalBalance: decimal.Zero,
		TotalChange:  decimal.Zero,
	}
	for _, o := range orders {
		s.TotalAmount = s.TotalAmount.Add(o.Total)
		s.TotalPaid = s.TotalPaid.Add(o.Paid)
		s.TotalBalance = s.TotalBalance.Add(o.Balance)
		s.TotalChange = s.TotalChange.Add(o.Change)
	}
	return s
}
