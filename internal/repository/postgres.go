// Package repository содержит хранилище заказов в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/choyxona-bot/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrStorage — общий признак ошибки хранилища.
var ErrStorage = errors.New("storage error")

// StorageError описывает сбой операции с хранилищем.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is позволяет сравнивать любую StorageError с ErrStorage.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// Retryable сообщает, что сбой временный и запрос можно повторить позже.
// Сам репозиторий повторов не выполняет.
func (e *StorageError) Retryable() bool {
	var pgErr *pgconn.PgError
	if errors.As(e.Err, &pgErr) {
		return pgerrcode.IsConnectionException(pgErr.Code) ||
			pgerrcode.IsInsufficientResources(pgErr.Code) ||
			pgErr.Code == pgerrcode.SerializationFailure ||
			pgErr.Code == pgerrcode.DeadlockDetected
	}
	if pgconn.Timeout(e.Err) || pgconn.SafeToRetry(e.Err) {
		return true
	}
	return isConnectionError(e.Err)
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// PostgresRepository хранит заказы и их позиции в таблицах orders и order_items.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт пул соединений и применяет миграции схемы.
func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, storageErr("parse pool config", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, storageErr("create pool", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, storageErr("ping database", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.Init(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

// Init создаёт схему, если её ещё нет. Повторный вызов безопасен.
func (r *PostgresRepository) Init(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return storageErr("set dialect", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return storageErr("run migrations", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// RecordOrder сохраняет заказ и его позиции в одной транзакции и возвращает заказ с присвоенным ID.
func (r *PostgresRepository) RecordOrder(ctx context.Context, order model.StoredOrder) (model.StoredOrder, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.StoredOrder{}, storageErr("begin tx", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO orders (chat_id, username, customer, discount, paid, total, change, balance, created_at)
		 VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7::numeric, $8::numeric, $9)
		 RETURNING id`,
		order.ChatID,
		order.Username,
		order.Customer,
		order.Discount.String(),
		order.Paid.String(),
		order.Total.String(),
		order.Change.String(),
		order.Balance.String(),
		order.CreatedAt,
	).Scan(&id)
	if err != nil {
		return model.StoredOrder{}, storageErr("insert order", err)
	}

	batch := &pgx.Batch{}
	for i, it := range order.Items {
		batch.Queue(
			`INSERT INTO order_items (order_id, position, menu_id, name, quantity, unit_price, subtotal)
			 VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric)`,
			id, i, it.MenuID, it.Name, it.Quantity, it.UnitPrice.String(), it.Subtotal.String(),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return model.StoredOrder{}, storageErr("insert order items", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.StoredOrder{}, storageErr("commit tx", err)
	}

	order.ID = id
	order.Items = append([]model.StoredOrderItem(nil), order.Items...)
	return order, nil
}

// ListOrders возвращает заказы с created_at в полуинтервале [from, to) по возрастанию времени создания.
// Нулевая граница не ограничивает выборку.
func (r *PostgresRepository) ListOrders(ctx context.Context, from, to time.Time) ([]model.StoredOrder, error) {
	var (
		conds []string
		args  []any
	)
	if !from.IsZero() {
		args = append(args, from)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !to.IsZero() {
		args = append(args, to)
		conds = append(conds, fmt.Sprintf("created_at < $%d", len(args)))
	}

	query := `SELECT id, chat_id, username, customer,
		discount::text, paid::text, total::text, change::text, balance::text, created_at
		FROM orders`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr("select orders", err)
	}
	defer rows.Close()

	var (
		orders []model.StoredOrder
		ids    []int64
	)
	for rows.Next() {
		var (
			o                                  model.StoredOrder
			discount, paid, total, change, bal string
		)
		if err := rows.Scan(&o.ID, &o.ChatID, &o.Username, &o.Customer,
			&discount, &paid, &total, &change, &bal, &o.CreatedAt); err != nil {
			return nil, storageErr("scan order", err)
		}

		if err := parseMoney(
			moneyField{discount, &o.Discount},
			moneyField{paid, &o.Paid},
			moneyField{total, &o.Total},
			moneyField{change, &o.Change},
			moneyField{bal, &o.Balance},
		); err != nil {
			return nil, storageErr("scan order", err)
		}
		o.CreatedAt = o.CreatedAt.UTC()
		o.Items = []model.StoredOrderItem{}

		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("rows error", err)
	}

	if len(orders) == 0 {
		return orders, nil
	}

	items, err := r.itemsByOrder(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if its, ok := items[orders[i].ID]; ok {
			orders[i].Items = its
		}
	}

	return orders, nil
}

func (r *PostgresRepository) itemsByOrder(ctx context.Context, ids []int64) (map[int64][]model.StoredOrderItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT order_id, menu_id, name, quantity, unit_price::text, subtotal::text
		 FROM order_items
		 WHERE order_id = ANY($1)
		 ORDER BY order_id, position`,
		ids,
	)
	if err != nil {
		return nil, storageErr("select order items", err)
	}
	defer rows.Close()

	res := make(map[int64][]model.StoredOrderItem, len(ids))
	for rows.Next() {
		var (
			orderID        int64
			it             model.StoredOrderItem
			unit, subtotal string
		)
		if err := rows.Scan(&orderID, &it.MenuID, &it.Name, &it.Quantity, &unit, &subtotal); err != nil {
			return nil, storageErr("scan order item", err)
		}
		if err := parseMoney(
			moneyField{unit, &it.UnitPrice},
			moneyField{subtotal, &it.Subtotal},
		); err != nil {
			return nil, storageErr("scan order item", err)
		}
		res[orderID] = append(res[orderID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("rows error", err)
	}

	return res, nil
}

// Summarize агрегирует заказы из ListOrders за тот же интервал.
func (r *PostgresRepository) Summarize(ctx context.Context, from, to time.Time) (model.OrdersSummary, error) {
	orders, err := r.ListOrders(ctx, from, to)
	if err != nil {
		return model.OrdersSummary{}, err
	}
	return model.Summarize(orders), nil
}

type moneyField struct {
	raw string
	dst *decimal.Decimal
}

// parseMoney переводит текстовое представление NUMERIC в точный decimal.
func parseMoney(fields ...moneyField) error {
	for _, f := range fields {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return fmt.Errorf("parse numeric %q: %w", f.raw, err)
		}
		*f.dst = v
	}
	return nil
}
