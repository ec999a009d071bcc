package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/homeservice-platform/internal/model"
)

type PaymentRepository interface {
	CreateOrder(ctx context.Context, o *model.GatewayOrder) error
	FindByOrderID(ctx context.Context, orderID string) (*model.GatewayOrder, error)
	// nil, nil — платёж с таким ID ещё не проводился.
	FindByPaymentID(ctx context.Context, paymentID string) (*model.GatewayOrder, error)
	LatestForBooking(ctx context.Context, bookingID uuid.UUID) (*model.GatewayOrder, error)
	MarkPaid(ctx context.Context, id uuid.UUID, paymentID, signature string) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
}

type GormPaymentRepository struct {
	db *gorm.DB
}

func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

func (r *GormPaymentRepository) CreateOrder(ctx context.Context, o *model.GatewayOrder) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *GormPaymentRepository) FindByOrderID(ctx context.Context, orderID string) (*model.GatewayOrder, error) {
	var o model.GatewayOrder
	if err := r.db.WithContext(ctx).First(&o, "order_id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *GormPaymentRepository) FindByPaymentID(ctx context.Context, paymentID string) (*model.GatewayOrder, error) {
	var orders []model.GatewayOrder
	if err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).Limit(1).Find(&orders).Error; err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}
	return &orders[0], nil
}

func (r *GormPaymentRepository) LatestForBooking(ctx context.Context, bookingID uuid.UUID) (*model.GatewayOrder, error) {
	var o model.GatewayOrder
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at DESC").
		First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *GormPaymentRepository) MarkPaid(ctx context.Context, id uuid.UUID, paymentID, signature string) error {
	return r.db.WithContext(ctx).
		Model(&model.GatewayOrder{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     model.GatewayOrderPaid,
			"payment_id": paymentID,
			"signature":  signature,
		}).Error
}

func (r *GormPaymentRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.GatewayOrder{}).
		Where("id = ? AND status = ?", id, model.GatewayOrderCreated).
		Update("status", model.GatewayOrderFailed).Error
}
