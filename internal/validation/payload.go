// Package validation содержит разбор и проверку данных заказа из Telegram Web App.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/mmeshcher/choyxona-bot/internal/model"
)

// ErrInvalidPayload — общий признак некорректных данных заказа.
var ErrInvalidPayload = errors.New("invalid order payload")

// PayloadError описывает причину отказа. Подробности предназначены только для логов.
type PayloadError struct {
	// Fields содержит нарушенные ограничения в виде "items[0].quantity" -> "min".
	Fields map[string]string
	Err    error
}

func (e *PayloadError) Error() string {
	if len(e.Fields) == 0 {
		if e.Err == nil {
			return ErrInvalidPayload.Error()
		}
		return fmt.Sprintf("%s: %v", ErrInvalidPayload, e.Err)
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("%s: %s", ErrInvalidPayload, strings.Join(parts, "; "))
}

func (e *PayloadError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidPayload}
	}
	return []error{ErrInvalidPayload, e.Err}
}

type itemPayload struct {
	ID       string `json:"id" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
}

type orderPayload struct {
	Customer string        `json:"customer"`
	Items    []itemPayload `json:"items" validate:"required,min=1,dive"`
	Discount int64         `json:"discount" validate:"min=0"`
	Paid     int64         `json:"paid" validate:"min=0"`
}

var validate = newValidator()

func newValidator() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseOrderPayload разбирает JSON из web_app_data и проверяет ограничения заказа.
// Любая ошибка возвращается как *PayloadError.
func ParseOrderPayload(raw string) (model.OrderRequest, error) {
	var p orderPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return model.OrderRequest{}, &PayloadError{Err: err}
	}

	if err := validate.Struct(p); err != nil {
		return model.OrderRequest{}, toPayloadError(err)
	}

	req := model.OrderRequest{
		Customer: strings.TrimSpace(p.Customer),
		Items:    make([]model.OrderItemRequest, 0, len(p.Items)),
		Discount: p.Discount,
		Paid:     p.Paid,
	}
	for _, it := range p.Items {
		req.Items = append(req.Items, model.OrderItemRequest{ID: it.ID, Quantity: it.Quantity})
	}
	return req, nil
}

func toPayloadError(err error) *PayloadError {
	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) {
		return &PayloadError{Err: err}
	}

	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		ns := fe.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		fields[ns] = fe.Tag()
	}
	return &PayloadError{Fields: fields}
}
