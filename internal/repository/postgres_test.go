package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/choyxona-bot/internal/model"
)

func TestStorageError_Retryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "connection failure", err: &pgconn.PgError{Code: pgerrcode.ConnectionFailure}, want: true},
		{name: "too many connections", err: &pgconn.PgError{Code: pgerrcode.TooManyConnections}, want: true},
		{name: "deadlock", err: &pgconn.PgError{Code: pgerrcode.DeadlockDetected}, want: true},
		{name: "undefined table", err: &pgconn.PgError{Code: pgerrcode.UndefinedTable}, want: false},
		{name: "refused", err: errors.New("dial tcp: connection refused"), want: true},
		{name: "plain", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := &StorageError{Op: "insert order", Err: fmt.Errorf("wrap: %w", tt.err)}
			assert.Equal(t, tt.want, se.Retryable())
			assert.ErrorIs(t, se, ErrStorage)
		})
	}
}

func TestParseMoneyKeepsExactValue(t *testing.T) {
	var a, b decimal.Decimal
	require.NoError(t, parseMoney(moneyField{"38000.00", &a}, moneyField{"0.10", &b}))

	assert.True(t, a.Equal(decimal.NewFromInt(38000)))
	assert.Equal(t, "0.1", b.String())

	assert.Error(t, parseMoney(moneyField{"abc", &a}))
}

// Интеграционные тесты выполняются только при заданном TEST_DATABASE_URI.
func newTestRepository(t *testing.T) *PostgresRepository {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URI")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URI is not set")
	}

	ctx := context.Background()
	r, err := NewPostgresRepository(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	_, err = r.pool.Exec(ctx, `TRUNCATE orders RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	return r
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func sampleOrder(createdAt time.Time) model.StoredOrder {
	username := "ali"
	return model.StoredOrder{
		ChatID:    42,
		Username:  &username,
		Customer:  "Stol 3",
		Discount:  dec(0),
		Paid:      dec(40000),
		Total:     dec(38000),
		Change:    dec(2000),
		Balance:   dec(0),
		CreatedAt: createdAt,
		Items: []model.StoredOrderItem{
			{MenuID: "tea_green", Name: "Ko'k choy", Quantity: 2, UnitPrice: dec(5000), Subtotal: dec(10000)},
			{MenuID: "plov", Name: "Palov", Quantity: 1, UnitPrice: dec(28000), Subtotal: dec(28000)},
		},
	}
}

func assertSameOrder(t *testing.T, want, got model.StoredOrder) {
	t.Helper()

	assert.Equal(t, want.ChatID, got.ChatID)
	assert.Equal(t, want.Username, got.Username)
	assert.Equal(t, want.Customer, got.Customer)
	assert.True(t, want.Discount.Equal(got.Discount))
	assert.True(t, want.Paid.Equal(got.Paid))
	assert.True(t, want.Total.Equal(got.Total))
	assert.True(t, want.Change.Equal(got.Change))
	assert.True(t, want.Balance.Equal(got.Balance))
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	require.Len(t, got.Items, len(want.Items))
	for i := range want.Items {
		assert.Equal(t, want.Items[i].MenuID, got.Items[i].MenuID)
		assert.Equal(t, want.Items[i].Name, got.Items[i].Name)
		assert.Equal(t, want.Items[i].Quantity, got.Items[i].Quantity)
		assert.True(t, want.Items[i].UnitPrice.Equal(got.Items[i].UnitPrice))
		assert.True(t, want.Items[i].Subtotal.Equal(got.Items[i].Subtotal))
	}
}

func TestRecordAndListRoundTrip(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	createdAt := time.Date(2026, 5, 1, 9, 15, 0, 123000, time.UTC)
	order := sampleOrder(createdAt)

	stored, err := r.RecordOrder(ctx, order)
	require.NoError(t, err)
	assert.NotZero(t, stored.ID)

	from := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	orders, err := r.ListOrders(ctx, from, from.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, orders, 1)

	assert.Equal(t, stored.ID, orders[0].ID)
	assertSameOrder(t, order, orders[0])
}

func TestRecordOrderStoresLargeAmounts(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	createdAt := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)
	big := decimal.RequireFromString("140000000000000")
	order := model.StoredOrder{
		ChatID:    42,
		Discount:  dec(0),
		Paid:      decimal.RequireFromString("10000000000000"),
		Total:     big,
		Change:    dec(0),
		Balance:   decimal.RequireFromString("130000000000000"),
		CreatedAt: createdAt,
		Items: []model.StoredOrderItem{
			{MenuID: "plov", Name: "Palov", Quantity: 5000000000, UnitPrice: dec(28000), Subtotal: big},
		},
	}

	_, err := r.RecordOrder(ctx, order)
	require.NoError(t, err)

	orders, err := r.ListOrders(ctx, createdAt, createdAt.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assertSameOrder(t, order, orders[0])
}

func TestListOrdersFiltersDayAndSorts(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	day := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	times := []time.Time{
		day.Add(23*time.Hour + 59*time.Minute),
		day,
		day.Add(-time.Second),
		day.AddDate(0, 0, 1),
	}
	for _, ts := range times {
		_, err := r.RecordOrder(ctx, sampleOrder(ts))
		require.NoError(t, err)
	}

	orders, err := r.ListOrders(ctx, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.True(t, orders[0].CreatedAt.Equal(day))
	assert.True(t, orders[1].CreatedAt.Equal(times[0]))

	all, err := r.ListOrders(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestSummarize(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	day := time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC)

	empty, err := r.Summarize(ctx, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalOrders)
	assert.True(t, empty.TotalAmount.IsZero())

	owed := sampleOrder(day.Add(2 * time.Hour))
	owed.Paid, owed.Change, owed.Balance = dec(10000), dec(0), dec(28000)

	for _, o := range []model.StoredOrder{sampleOrder(day.Add(time.Hour)), owed} {
		_, err := r.RecordOrder(ctx, o)
		require.NoError(t, err)
	}

	s, err := r.Summarize(ctx, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)

	orders, err := r.ListOrders(ctx, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	want := model.Summarize(orders)

	assert.Equal(t, 2, s.TotalOrders)
	assert.True(t, s.TotalAmount.Equal(dec(76000)))
	assert.True(t, s.TotalPaid.Equal(dec(50000)))
	assert.True(t, s.TotalChange.Equal(dec(2000)))
	assert.True(t, s.TotalBalance.Equal(dec(28000)))
	assert.True(t, s.TotalAmount.Equal(want.TotalAmount))
}

func TestInitIsIdempotent(t *testing.T) {
	r := newTestRepository(t)

	require.NoError(t, r.Init(context.Background()))
	require.NoError(t, r.Init(context.Background()))
}
