package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"giftpos/internal/model"
	"giftpos/internal/workflow"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when no order matches the id.
var ErrNotFound = errors.New("pedido no encontrado")

// OrderFilter narrows ListOrders.
type OrderFilter struct {
	FulfillmentStatus string
	IncludeCancelled  bool
	Page              int
	Limit             int
}

// OrderRepository is the terminal's local order store. Every call is atomic
// per order id; the service layer serializes read-modify-write cycles on top.
type OrderRepository interface {
	// List returns orders newest first (getOrders).
	List(ctx context.Context, filter OrderFilter) ([]model.Order, int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	// Upsert inserts or fully replaces the order (insertOrUpdateOrder).
	Upsert(ctx context.Context, o *model.Order) error
	// UpdateStatus sets the fulfillment status, appends the history entry,
	// optionally replaces shipping details and stamps UpdatedAt = at.
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, shipping *model.ShippingDetails, at time.Time) (*model.Order, error)
	// ListUpdatedSince returns orders stamped after since, newest first.
	ListUpdatedSince(ctx context.Context, since time.Time, limit int) ([]model.Order, error)
	NextFolio(ctx context.Context) (string, error)
}

type orderRepo struct{ db *gorm.DB }

func NewOrderRepository(db *gorm.DB) OrderRepository { return &orderRepo{db: db} }

func (r *orderRepo) List(ctx context.Context, filter OrderFilter) ([]model.Order, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	var orders []model.Order
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Order{})
	if filter.FulfillmentStatus != "" {
		if filter.FulfillmentStatus == "pending" {
			q = q.Where("fulfillment_status = ? OR fulfillment_status = '' OR fulfillment_status IS NULL", filter.FulfillmentStatus)
		} else {
			q = q.Where("fulfillment_status = ?", filter.FulfillmentStatus)
		}
	}
	if !filter.IncludeCancelled {
		q = q.Where("status <> ?", model.OrderStatusCancelled)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Order("date DESC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&orders).Error
	return orders, total, err
}

func (r *orderRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).First(&o, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) Upsert(ctx context.Context, o *model.Order) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(o).Error
}

func (r *orderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string, shipping *model.ShippingDetails, at time.Time) (*model.Order, error) {
	var out model.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&out, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if shipping != nil {
			out.ShippingDetails = shipping
		}
		workflow.Transition(&out, workflow.Stage(status), at)
		return tx.Save(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *orderRepo) ListUpdatedSince(ctx context.Context, since time.Time, limit int) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).
		Where("updated_at > ?", since).
		Order("updated_at DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// NextFolio counts existing rows to build the next display code. Folios are
// display-only; uniqueness is enforced by the index.
func (r *orderRepo) NextFolio(ctx context.Context) (string, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Order{}).Count(&n).Error; err != nil {
		return "", err
	}
	return FormatFolio(n + 1), nil
}

// FormatFolio renders the sequential display code of an order.
func FormatFolio(n int64) string {
	return fmt.Sprintf("F-%06d", n)
}
