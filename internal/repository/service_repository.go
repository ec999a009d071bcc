package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/homeservice-platform/internal/model"
)

// ServiceRepository — справочник видов услуг.
type ServiceRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Service, error)
	// GetActive как GetByID, но снятая с каталога услуга даёт gorm.ErrRecordNotFound.
	GetActive(ctx context.Context, id uuid.UUID) (*model.Service, error)
	Create(ctx context.Context, service *model.Service) error
	List(ctx context.Context, onlyActive bool, limit, offset int) ([]model.Service, int64, error)
	// ExistingNames возвращает имена (в нижнем регистре), которые уже есть в каталоге.
	ExistingNames(ctx context.Context, names []string) (map[string]bool, error)
}

type GormServiceRepository struct {
	db *gorm.DB
}

func NewGormServiceRepository(db *gorm.DB) *GormServiceRepository {
	return &GormServiceRepository{db: db}
}

func (r *GormServiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	var s model.Service
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormServiceRepository) GetActive(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	var s model.Service
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormServiceRepository) Create(ctx context.Context, service *model.Service) error {
	service.Name = strings.TrimSpace(service.Name)
	return r.db.WithContext(ctx).Create(service).Error
}

// List — услуги по имени; limit <= 0 означает 50.
func (r *GormServiceRepository) List(ctx context.Context, onlyActive bool, limit, offset int) ([]model.Service, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Service{})
	if onlyActive {
		q = q.Where("is_active = ?", true)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var services []model.Service
	if err := q.Order("name ASC").Limit(limit).Offset(offset).Find(&services).Error; err != nil {
		return nil, 0, err
	}
	return services, total, nil
}

func (r *GormServiceRepository) ExistingNames(ctx context.Context, names []string) (map[string]bool, error) {
	known := make(map[string]bool, len(names))
	if len(names) == 0 {
		return known, nil
	}
	lowered := make([]string, 0, len(names))
	for _, n := range names {
		lowered = append(lowered, strings.ToLower(strings.TrimSpace(n)))
	}

	var found []string
	err := r.db.WithContext(ctx).
		Model(&model.Service{}).
		Where("LOWER(name) IN ?", lowered).
		Pluck("LOWER(name)", &found).Error
	if err != nil {
		return nil, err
	}
	for _, n := range found {
		known[n] = true
	}
	return known, nil
}
