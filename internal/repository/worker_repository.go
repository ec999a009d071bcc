package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/homeservice-platform/internal/model"
)

type WorkerRepository interface {
	Create(ctx context.Context, w *model.Worker) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Worker, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Worker, error)
	// Строка исполнителя с блокировкой до конца транзакции (принятие заказа).
	GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Worker, error)
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) error
	// Исполнители с услугами; serviceID == uuid.Nil — без фильтра.
	List(ctx context.Context, serviceID uuid.UUID) ([]model.Worker, error)
	GetOffer(ctx context.Context, workerID, serviceID uuid.UUID) (*model.WorkerService, error)
	AddOffer(ctx context.Context, offer *model.WorkerService) error
	AddEarning(ctx context.Context, e *model.WorkerEarning) error
	AddReview(ctx context.Context, r *model.Review) error
	// Пересчитать среднюю оценку и число отзывов по таблице reviews.
	RefreshRating(ctx context.Context, workerID uuid.UUID) error
}

type GormWorkerRepository struct {
	db *gorm.DB
}

func NewGormWorkerRepository(db *gorm.DB) *GormWorkerRepository {
	return &GormWorkerRepository{db: db}
}

func (r *GormWorkerRepository) Create(ctx context.Context, w *model.Worker) error {
	return r.db.WithContext(ctx).Create(w).Error
}

func (r *GormWorkerRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Worker, error) {
	var w model.Worker
	if err := r.db.WithContext(ctx).First(&w, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *GormWorkerRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Worker, error) {
	var w model.Worker
	if err := r.db.WithContext(ctx).First(&w, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *GormWorkerRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Worker, error) {
	var w model.Worker
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&w, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *GormWorkerRepository) SetAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	return r.db.WithContext(ctx).
		Model(&model.Worker{}).
		Where("id = ?", id).
		Update("is_available", available).
		Error
}

func (r *GormWorkerRepository) List(ctx context.Context, serviceID uuid.UUID) ([]model.Worker, error) {
	q := r.db.WithContext(ctx).
		Model(&model.Worker{}).
		Preload("Services.Service")
	if serviceID != uuid.Nil {
		q = q.Where("id IN (?)", r.db.Model(&model.WorkerService{}).
			Select("worker_id").
			Where("service_id = ?", serviceID))
	}

	var workers []model.Worker
	if err := q.Order("average_rating DESC, display_name ASC").Find(&workers).Error; err != nil {
		return nil, err
	}
	return workers, nil
}

func (r *GormWorkerRepository) GetOffer(ctx context.Context, workerID, serviceID uuid.UUID) (*model.WorkerService, error) {
	var ws model.WorkerService
	err := r.db.WithContext(ctx).
		Preload("Service").
		First(&ws, "worker_id = ? AND service_id = ?", workerID, serviceID).Error
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

func (r *GormWorkerRepository) AddOffer(ctx context.Context, offer *model.WorkerService) error {
	return r.db.WithContext(ctx).Create(offer).Error
}

func (r *GormWorkerRepository) AddEarning(ctx context.Context, e *model.WorkerEarning) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *GormWorkerRepository) AddReview(ctx context.Context, rv *model.Review) error {
	return r.db.WithContext(ctx).Create(rv).Error
}

func (r *GormWorkerRepository) RefreshRating(ctx context.Context, workerID uuid.UUID) error {
	var agg struct {
		Avg   float64
		Total int
	}
	err := r.db.WithContext(ctx).
		Model(&model.Review{}).
		Select("COALESCE(AVG(rating), 0) AS avg, COUNT(*) AS total").
		Where("worker_id = ?", workerID).
		Scan(&agg).Error
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).
		Model(&model.Worker{}).
		Where("id = ?", workerID).
		Updates(map[string]any{
			"average_rating": roundTo2(agg.Avg),
			"total_reviews":  agg.Total,
		}).Error
}

func roundTo2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
