package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/choyxona-bot/internal/menu"
	"github.com/mmeshcher/choyxona-bot/internal/model"
)

type stubRepo struct {
	recorded  []model.StoredOrder
	recordErr error

	listFrom, listTo time.Time
	orders           []model.StoredOrder
	listErr          error

	closed bool
}

func (s *stubRepo) Close() error {
	s.closed = true
	return nil
}

func (s *stubRepo) RecordOrder(ctx context.Context, order model.StoredOrder) (model.StoredOrder, error) {
	if s.recordErr != nil {
		return model.StoredOrder{}, s.recordErr
	}
	order.ID = int64(len(s.recorded) + 1)
	s.recorded = append(s.recorded, order)
	return order, nil
}

func (s *stubRepo) ListOrders(ctx context.Context, from, to time.Time) ([]model.StoredOrder, error) {
	s.listFrom, s.listTo = from, to
	return s.orders, s.listErr
}

func (s *stubRepo) Summarize(ctx context.Context, from, to time.Time) (model.OrdersSummary, error) {
	orders, err := s.ListOrders(ctx, from, to)
	if err != nil {
		return model.OrdersSummary{}, err
	}
	return model.Summarize(orders), nil
}

func newTestService(repo Repository) *Service {
	loc := time.FixedZone("UZT", 5*60*60)
	svc := NewService(repo, menu.Default(), loc)
	svc.now = func() time.Time { return time.Date(2026, 3, 14, 20, 30, 0, 0, time.UTC) }
	return svc
}

func TestPlaceOrder_RecordsCalculatedOrder(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo)

	receipt, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		ChatID:   77,
		Username: "ali",
		Request:  model.OrderRequest{Customer: "Stol 2", Items: teaAndPlov(0, 40000).Items, Paid: 40000},
	})
	require.NoError(t, err)
	require.Len(t, repo.recorded, 1)

	o := receipt.Order
	assert.Equal(t, int64(1), o.ID)
	assert.Equal(t, int64(77), o.ChatID)
	require.NotNil(t, o.Username)
	assert.Equal(t, "ali", *o.Username)
	assert.Equal(t, "Stol 2", o.Customer)
	assert.Equal(t, "38000", o.Total.String())
	assert.Equal(t, "2000", o.Change.String())
	assert.Equal(t, "0", o.Balance.String())
	assert.Equal(t, "38000", receipt.Gross.String())
	assert.Equal(t, time.UTC, o.CreatedAt.Location())
	assert.Len(t, o.Items, 2)
}

func TestPlaceOrder_EmptyUsernameIsNil(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo)

	receipt, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{ChatID: 1, Request: teaAndPlov(0, 0)})
	require.NoError(t, err)
	assert.Nil(t, receipt.Order.Username)
}

func TestPlaceOrder_UnknownItemNotPersisted(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		ChatID:  1,
		Request: model.OrderRequest{Items: []model.OrderItemRequest{{ID: "burger", Quantity: 1}}},
	})

	var unknown *UnknownMenuItemError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "burger", unknown.ID)
	assert.Empty(t, repo.recorded)
}

func TestPlaceOrder_PropagatesStorageError(t *testing.T) {
	storageErr := errors.New("disk full")
	svc := newTestService(&stubRepo{recordErr: storageErr})

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{ChatID: 1, Request: teaAndPlov(0, 0)})
	assert.ErrorIs(t, err, storageErr)
}

func TestSummary_DayBoundsUseLocation(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo)

	today := svc.Today()
	assert.Equal(t, "2026-03-15T00:00:00+05:00", today.Format(time.RFC3339))

	s, err := svc.Summary(context.Background(), &today)
	require.NoError(t, err)
	assert.Equal(t, 0, s.TotalOrders)
	assert.True(t, s.TotalAmount.IsZero())

	assert.Equal(t, "2026-03-15T00:00:00+05:00", repo.listFrom.Format(time.RFC3339))
	assert.Equal(t, "2026-03-16T00:00:00+05:00", repo.listTo.Format(time.RFC3339))
}

func TestListOrders_NilDayIsUnbounded(t *testing.T) {
	repo := &stubRepo{orders: []model.StoredOrder{{ID: 1}}}
	svc := newTestService(repo)

	orders, err := svc.ListOrders(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.True(t, repo.listFrom.IsZero())
	assert.True(t, repo.listTo.IsZero())
}

func TestClose_ClosesRepository(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo)

	require.NoError(t, svc.Close())
	assert.True(t, repo.closed)
}
