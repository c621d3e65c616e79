// Package service реализует бизнес-логику приёма заказов чайханы.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/choyxona-bot/internal/menu"
	"github.com/mmeshcher/choyxona-bot/internal/model"
)

// Repository описывает контракт хранилища заказов, используемый сервисом.
// Нулевые from/to означают отсутствие границы.
type Repository interface {
	Close() error
	RecordOrder(ctx context.Context, order model.StoredOrder) (model.StoredOrder, error)
	ListOrders(ctx context.Context, from, to time.Time) ([]model.StoredOrder, error)
	Summarize(ctx context.Context, from, to time.Time) (model.OrdersSummary, error)
}

// Service содержит бизнес-логику бота.
type Service struct {
	repo      Repository
	catalogue *menu.Catalogue
	loc       *time.Location
	now       func() time.Time
}

// NewService создаёт сервис. loc задаёт часовой пояс, в котором считаются календарные дни.
func NewService(repo Repository, catalogue *menu.Catalogue, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:      repo,
		catalogue: catalogue,
		loc:       loc,
		now:       time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// PlaceOrderInput содержит проверенный заказ и данные отправителя.
type PlaceOrderInput struct {
	ChatID   int64
	Username string
	Request  model.OrderRequest
}

// Receipt — сохранённый заказ вместе с суммой до скидки.
type Receipt struct {
	Order model.StoredOrder
	Gross decimal.Decimal
}

// PlaceOrder рассчитывает и сохраняет заказ. При неизвестной позиции ничего не сохраняется.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*Receipt, error) {
	calc, err := Calculate(in.Request, s.catalogue)
	if err != nil {
		return nil, err
	}

	var username *string
	if in.Username != "" {
		u := in.Username
		username = &u
	}

	order := model.StoredOrder{
		ChatID:    in.ChatID,
		Username:  username,
		Customer:  in.Request.Customer,
		Discount:  calc.Discount,
		Paid:      calc.Paid,
		Total:     calc.Net,
		Change:    calc.Change,
		Balance:   calc.Balance,
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
		Items:     calc.Items,
	}

	stored, err := s.repo.RecordOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("record order: %w", err)
	}

	return &Receipt{Order: stored, Gross: calc.Gross}, nil
}

// ListOrders возвращает заказы за указанный день или все заказы, если day == nil.
func (s *Service) ListOrders(ctx context.Context, day *time.Time) ([]model.StoredOrder, error) {
	from, to := s.bounds(day)
	return s.repo.ListOrders(ctx, from, to)
}

// Summary возвращает сводку за указанный день или за всё время, если day == nil.
func (s *Service) Summary(ctx context.Context, day *time.Time) (model.OrdersSummary, error) {
	from, to := s.bounds(day)
	return s.repo.Summarize(ctx, from, to)
}

// Today возвращает начало текущего дня в часовом поясе сервиса.
func (s *Service) Today() time.Time {
	return startOfDay(s.now(), s.loc)
}

// Location возвращает часовой пояс сервиса.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Menu возвращает меню, сгруппированное по категориям.
func (s *Service) Menu() []model.MenuSection {
	return s.catalogue.Sections()
}

func (s *Service) bounds(day *time.Time) (time.Time, time.Time) {
	if day == nil {
		return time.Time{}, time.Time{}
	}
	from := startOfDay(*day, s.loc)
	return from, from.AddDate(0, 0, 1)
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
