package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/Leganyst/homeservice-platform/internal/booking"
	"github.com/Leganyst/homeservice-platform/internal/model"
)

// ErrConcurrencyConflict — заказ успели изменить между чтением и сохранением.
var ErrConcurrencyConflict = errors.New("booking was modified concurrently")

type BookingRepository interface {
	// Создать новый заказ вместе с позициями тарифа.
	Create(ctx context.Context, b *model.Booking) error
	// Получить заказ по ID (позиции тарифа в порядке Position).
	GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	// Сохранить изменения с проверкой версии; при успехе b.Version увеличивается.
	Save(ctx context.Context, b *model.Booking) error
	// История заказов клиента, новые сверху.
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]model.Booking, error)
	// Заказы исполнителя в указанных статусах (все, если статусы не заданы).
	ListByWorker(ctx context.Context, workerID uuid.UUID, statuses ...booking.Status) ([]model.Booking, error)
	// Активная работа исполнителя или nil.
	ActiveJobForWorker(ctx context.Context, workerID uuid.UUID) (*model.Booking, error)
}

// Реализация на GORM.
type GormBookingRepository struct {
	db     *gorm.DB
	tracer trace.Tracer
}

func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db, tracer: otel.Tracer("homeservice/repository")}
}

func (r *GormBookingRepository) Create(ctx context.Context, b *model.Booking) error {
	if b.Version == 0 {
		b.Version = 1
	}
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *GormBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	var b model.Booking
	err := r.db.WithContext(ctx).
		Preload("TariffItems", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&b, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *GormBookingRepository) Save(ctx context.Context, b *model.Booking) error {
	ctx, span := r.tracer.Start(ctx, "bookings.save",
		trace.WithAttributes(
			attribute.String("booking.id", b.ID.String()),
			attribute.Int("expected.version", b.Version),
		),
	)
	defer span.End()

	update := map[string]any{
		"status":            b.Status,
		"payment_method":    b.PaymentMethod,
		"payment_status":    b.PaymentStatus,
		"base_price":        b.BasePrice,
		"receipt_sent":      b.ReceiptSent,
		"rating":            b.Rating,
		"accepted_at":       b.AcceptedAt,
		"started_at":        b.StartedAt,
		"completed_at":      b.CompletedAt,
		"cancelled_at":      b.CancelledAt,
		"paid_at":           b.PaidAt,
		"payment_reference": b.PaymentReference,
		"disputed":          b.Disputed,
		"version":           b.Version + 1,
		"updated_at":        time.Now().UTC(),
	}
	res := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("id = ? AND version = ?", b.ID, b.Version).
		Updates(update)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		span.SetAttributes(attribute.Bool("conflict.detected", true))
		return ErrConcurrencyConflict
	}
	b.Version++

	// Позиции тарифа переписываем целиком: их немного, а порядок важен.
	if err := r.db.WithContext(ctx).Where("booking_id = ?", b.ID).Delete(&model.TariffItem{}).Error; err != nil {
		return err
	}
	if len(b.TariffItems) == 0 {
		return nil
	}
	for i := range b.TariffItems {
		b.TariffItems[i].ID = 0
		b.TariffItems[i].BookingID = b.ID
		b.TariffItems[i].Position = i
	}
	return r.db.WithContext(ctx).Create(&b.TariffItems).Error
}

func (r *GormBookingRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]model.Booking, error) {
	var bookings []model.Booking
	err := r.db.WithContext(ctx).
		Preload("TariffItems", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("customer_id = ?", customerID).
		Order("requested_at DESC").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *GormBookingRepository) ListByWorker(
	ctx context.Context,
	workerID uuid.UUID,
	statuses ...booking.Status,
) ([]model.Booking, error) {
	q := r.db.WithContext(ctx).
		Preload("TariffItems", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("worker_id = ?", workerID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}

	var bookings []model.Booking
	if err := q.Order("requested_at DESC").Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *GormBookingRepository) ActiveJobForWorker(ctx context.Context, workerID uuid.UUID) (*model.Booking, error) {
	jobs, err := r.ListByWorker(ctx, workerID, booking.StatusAccepted, booking.StatusInProgress)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return &jobs[0], nil
}
