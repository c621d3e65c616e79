// Package receipt форматирует ответы бота: чек заказа и дневной отчёт.
package receipt

import (
	"errors"
	"html"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/choyxona-bot/internal/menu"
	"github.com/mmeshcher/choyxona-bot/internal/model"
	"github.com/mmeshcher/choyxona-bot/internal/repository"
	"github.com/mmeshcher/choyxona-bot/internal/service"
	"github.com/mmeshcher/choyxona-bot/internal/validation"
)

// Тексты, которые показываются пользователю при ошибках.
const (
	InvalidPayloadText = "Buyurtma ma'lumotida xatolik. Iltimos, qaytadan urinib ko'ring."
	StorageFailureText = "Buyurtma saqlanmadi: tizimda xatolik yuz berdi. Iltimos, buyurtmani qaytadan yuboring."
	StorageBusyText    = "Buyurtma saqlanmadi: server vaqtincha band. Birozdan so'ng qaytadan yuboring."
	SummaryFailureText = "Hisobotni olishda xatolik yuz berdi. Keyinroq urinib ko'ring."
)

// FormatCurrency округляет сумму до целых и группирует разряды пробелом: 38000 -> "38 000 so'm".
func FormatCurrency(amount decimal.Decimal) string {
	digits := amount.Round(0).StringFixed(0)

	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	b.WriteString(" ")
	b.WriteString(menu.Currency)
	return b.String()
}

// Order формирует HTML-чек принятого заказа.
func Order(r *service.Receipt) string {
	o := r.Order

	lines := []string{"<b>Buyurtma qabul qilindi</b>"}
	if o.Customer != "" {
		lines = append(lines, "Mijoz: "+html.EscapeString(o.Customer))
	}
	for _, it := range o.Items {
		lines = append(lines, "• "+html.EscapeString(it.Name)+" × "+strconv.Itoa(it.Quantity)+" = "+FormatCurrency(it.Subtotal))
	}
	lines = append(lines, "Jami: "+FormatCurrency(r.Gross))
	if !o.Discount.IsZero() {
		lines = append(lines, "Chegirma: −"+FormatCurrency(o.Discount))
	}
	lines = append(lines,
		"To'lanishi kerak: "+FormatCurrency(o.Total),
		"Olingan to'lov: "+FormatCurrency(o.Paid),
	)
	if !o.Change.IsZero() {
		lines = append(lines, "Qaytim: "+FormatCurrency(o.Change))
	}
	if !o.Balance.IsZero() {
		lines = append(lines, "Qarz: "+FormatCurrency(o.Balance))
	}

	return strings.Join(lines, "\n")
}

// Summary формирует HTML-текст дневного отчёта.
func Summary(s model.OrdersSummary) string {
	return strings.Join([]string{
		"<b>Kunlik hisobot</b>",
		"Buyurtmalar soni: " + strconv.Itoa(s.TotalOrders),
		"Jami tushum: " + FormatCurrency(s.TotalAmount),
		"Olingan to'lovlar: " + FormatCurrency(s.TotalPaid),
		"Qaytim berilgan: " + FormatCurrency(s.TotalChange),
		"Qarzdorlik: " + FormatCurrency(s.TotalBalance),
	}, "\n")
}

// ErrorText подбирает сообщение для пользователя по ошибке приёма заказа.
// Текст UnknownMenuItemError показывается как есть, детали остальных ошибок скрываются.
func ErrorText(err error) string {
	var (
		unknown    *service.UnknownMenuItemError
		storageErr *repository.StorageError
	)
	switch {
	case errors.Is(err, validation.ErrInvalidPayload):
		return InvalidPayloadText
	case errors.As(err, &unknown):
		return unknown.Error()
	case errors.As(err, &storageErr) && storageErr.Retryable():
		return StorageBusyText
	default:
		return StorageFailureText
	}
}
