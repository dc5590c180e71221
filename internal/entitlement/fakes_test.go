package entitlement

import (
	"context"
	"time"

	"github.com/iliyamo/content-paywall/internal/model"
)

// fakeCatalog serves products from a map.
type fakeCatalog struct {
	products map[uint64]*model.Product
}

func (f *fakeCatalog) GetProduct(_ context.Context, id uint64) (*model.Product, error) {
	return f.products[id], nil
}

// fakeOrderStore serves orders from memory. paidByUser is returned as-is,
// so tests control the newest-first ordering explicitly.
type fakeOrderStore struct {
	paidByUser map[uint64][]*model.Order
	byID       map[uint64]*model.Order
	byKey      map[string]*model.Order
}

func (f *fakeOrderStore) FindPaidOrdersByUser(_ context.Context, userID uint64) ([]*model.Order, error) {
	return f.paidByUser[userID], nil
}

func (f *fakeOrderStore) GetOrder(_ context.Context, id uint64) (*model.Order, error) {
	return f.byID[id], nil
}

func (f *fakeOrderStore) FindOrderByKey(_ context.Context, key string) (*model.Order, error) {
	return f.byKey[key], nil
}

func publishedProduct(id uint64, typ string) *model.Product {
	return &model.Product{ID: id, Title: "p", Type: typ, Status: model.ProductStatusPublish}
}

func paidOrder(id uint64, userID *uint64, paidAt time.Time, productIDs ...uint64) *model.Order {
	paid := paidAt
	o := &model.Order{
		ID:       id,
		UserID:   userID,
		Status:   model.OrderStatusPaid,
		DatePaid: &paid,
	}
	for _, pid := range productIDs {
		o.Items = append(o.Items, model.OrderItem{OrderID: id, ProductID: pid})
	}
	return o
}

func uptr(v uint64) *uint64 { return &v }
