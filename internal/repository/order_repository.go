// Package repository contains data access logic for orders. This file
// defines repository methods for orders and their line items. Orders are
// the source of truth for entitlement: the entitlement layer reads them
// through the OrderSource boundary and derives purchase records from the
// line items of paid orders.
package repository

import (
	"context"      // context for controlling query lifetime
	"database/sql" // sql provides DB abstraction
	"errors"       // errors for sentinel definitions

	"github.com/iliyamo/content-paywall/internal/model"
)

// ErrOrderNotFound indicates that an order was not located in the DB.
var ErrOrderNotFound = errors.New("order not found")

// OrderRepo manages persistence for orders.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo builds an OrderRepo around an open DB handle.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// DB exposes the underlying sql.DB.  It allows callers to begin
// transactions spanning multiple repositories.
func (r *OrderRepo) DB() *sql.DB { return r.db }

const orderColumns = `id, user_id, status, order_key, date_paid,
	date_completed, date_created, expires_on, created_at, updated_at`

// FindPaidOrdersByUser returns all paid orders of a user, newest first,
// with line items populated. Newest-first ordering matters: when the same
// product was bought twice, the ledger keeps the record from the most
// recent order.
func (r *OrderRepo) FindPaidOrdersByUser(ctx context.Context, userID uint64) ([]*model.Order, error) {
	const q = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = ? AND status = ? ORDER BY id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID, model.OrderStatusPaid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, o := range orders {
		if err := r.loadItems(ctx, o); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// GetOrder fetches one order with its items. It returns (nil, nil) when
// the row does not exist so guest sessions holding stale order ids do not
// break ledger construction.
func (r *OrderRepo) GetOrder(ctx context.Context, id uint64) (*model.Order, error) {
	const q = `SELECT ` + orderColumns + ` FROM orders WHERE id = ? LIMIT 1`
	o, err := scanOrder(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// FindOrderByKey fetches one order by its opaque order key, with items.
// Returns (nil, nil) when no order carries the key; an unknown key in a
// URL is an expected miss, not an error.
func (r *OrderRepo) FindOrderByKey(ctx context.Context, orderKey string) (*model.Order, error) {
	const q = `SELECT ` + orderColumns + ` FROM orders WHERE order_key = ? LIMIT 1`
	o, err := scanOrder(r.db.QueryRowContext(ctx, q, orderKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// Create inserts an order and all its items in one transaction. The
// generated IDs are populated on the given Order. Items carry the
// expiration snapshot taken from the product at checkout time.
func (r *OrderRepo) Create(ctx context.Context, o *model.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const qo = `INSERT INTO orders
		(user_id, status, order_key, date_paid, date_completed, date_created, expires_on)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, qo,
		o.UserID, o.Status, o.OrderKey,
		o.DatePaid, o.DateCompleted, o.DateCreated, o.ExpiresOn)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)

	const qi = `INSERT INTO order_items
		(order_id, product_id, price_cents, expire_value, expire_units)
		VALUES (?, ?, ?, ?, ?)`
	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		res, err := tx.ExecContext(ctx, qi,
			it.OrderID, it.ProductID, it.PriceCents, it.ExpireValue, it.ExpireUnits)
		if err != nil {
			return err
		}
		itemID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		it.ID = uint64(itemID)
	}
	return tx.Commit()
}

// loadItems populates o.Items from the order_items table.
func (r *OrderRepo) loadItems(ctx context.Context, o *model.Order) error {
	const q = `SELECT id, order_id, product_id, price_cents, expire_value, expire_units
		FROM order_items WHERE order_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID,
			&it.PriceCents, &it.ExpireValue, &it.ExpireUnits); err != nil {
			return err
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

func scanOrder(row rowScanner) (*model.Order, error) {
	var o model.Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.Status, &o.OrderKey,
		&o.DatePaid, &o.DateCompleted, &o.DateCreated, &o.ExpiresOn,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
