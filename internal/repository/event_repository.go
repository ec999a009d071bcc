package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Leganyst/homeservice-platform/internal/model"
)

type EventRepository interface {
	// Записать событие аудита; payload сериализуется в JSON.
	Append(ctx context.Context, typ model.EventType, userID, bookingID *uuid.UUID, payload any) (*model.Event, error)
	// Неопубликованные события, которым пора уходить в брокер, старые первыми.
	ListDue(ctx context.Context, now time.Time, limit int) ([]model.Event, error)
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]model.Event, error)
	MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, nextAttempt time.Time, reason string) error
}

type GormEventRepository struct {
	db *gorm.DB
}

func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

func (r *GormEventRepository) Append(
	ctx context.Context,
	typ model.EventType,
	userID, bookingID *uuid.UUID,
	payload any,
) (*model.Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	e := &model.Event{
		EventType: typ,
		UserID:    userID,
		BookingID: bookingID,
		Payload:   datatypes.JSON(raw),
	}
	if err := r.db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

func (r *GormEventRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []model.Event
	err := r.db.WithContext(ctx).
		Where("published_at IS NULL AND next_attempt_at <= ?", now).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *GormEventRepository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]model.Event, error) {
	var events []model.Event
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *GormEventRepository) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Event{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"published_at": at,
			"last_error":   "",
		}).Error
}

func (r *GormEventRepository) MarkFailed(ctx context.Context, id uuid.UUID, nextAttempt time.Time, reason string) error {
	return r.db.WithContext(ctx).
		Model(&model.Event{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempts":        gorm.Expr("attempts + 1"),
			"next_attempt_at": nextAttempt,
			"last_error":      reason,
		}).Error
}
