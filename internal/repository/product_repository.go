// Package repository contains data access logic for the catalog. This file
// defines repository methods for products. A Product is either gated
// premium content sold individually or a blanket pass that unlocks the
// whole catalog. The entitlement layer reads products through the
// ProductSource boundary; this repo is its MySQL implementation.
package repository

import (
	"context"      // context for controlling query lifetime
	"database/sql" // sql provides DB abstraction
	"errors"       // errors for sentinel definitions

	"github.com/iliyamo/content-paywall/internal/model"
)

// ErrProductNotFound indicates that a product was not located in the DB.
var ErrProductNotFound = errors.New("product not found")

// ProductRepo manages persistence for products.
type ProductRepo struct {
	db *sql.DB
}

// NewProductRepo builds a ProductRepo around an open DB handle.
func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{db: db} }

// DB exposes the underlying sql.DB.  It allows callers to begin
// transactions spanning multiple repositories.
func (r *ProductRepo) DB() *sql.DB { return r.db }

const productColumns = `id, title, type, status, price_cents,
	custom_expiration, expire_value, expire_units, created_at, updated_at`

// GetProduct fetches a product by id. It returns (nil, nil) when the row
// does not exist so that ledger construction can skip stale line items
// without treating them as failures.
func (r *ProductRepo) GetProduct(ctx context.Context, id uint64) (*model.Product, error) {
	const q = `SELECT ` + productColumns + ` FROM products WHERE id = ? LIMIT 1`
	p, err := scanProduct(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// MustGetProduct is GetProduct for callers that require the row, such as
// the product detail handler. A missing row maps to ErrProductNotFound.
func (r *ProductRepo) MustGetProduct(ctx context.Context, id uint64) (*model.Product, error) {
	p, err := r.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProductNotFound
	}
	return p, nil
}

// ListPublished returns all published products, newest first. Drafts are
// hidden from the storefront but remain visible through GetProduct so
// existing purchases keep resolving.
func (r *ProductRepo) ListPublished(ctx context.Context) ([]*model.Product, error) {
	const q = `SELECT ` + productColumns + ` FROM products
		WHERE status = ? ORDER BY id DESC`
	rows, err := r.db.QueryContext(ctx, q, model.ProductStatusPublish)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Create inserts a product and populates its generated ID. Used by
// seeding and admin tooling.
func (r *ProductRepo) Create(ctx context.Context, p *model.Product) error {
	const q = `INSERT INTO products
		(title, type, status, price_cents, custom_expiration, expire_value, expire_units)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		p.Title, p.Type, p.Status, p.PriceCents,
		p.CustomExpiration, p.ExpireValue, p.ExpireUnits)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows so the two query paths share
// one scan routine.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*model.Product, error) {
	var p model.Product
	err := row.Scan(
		&p.ID, &p.Title, &p.Type, &p.Status, &p.PriceCents,
		&p.CustomExpiration, &p.ExpireValue, &p.ExpireUnits,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
