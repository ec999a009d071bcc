package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// services — вид услуги с базовой стоимостью.
type Service struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name        string `gorm:"type:varchar(80);not null;uniqueIndex"`
	Description string `gorm:"type:text"`
	BaseCost    int64  `gorm:"not null;default:0"`

	IsActive bool `gorm:"not null;default:true;index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *Service) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// worker_services — услуги исполнителя с его собственной ценой.
type WorkerService struct {
	WorkerID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	ServiceID uuid.UUID `gorm:"type:uuid;primaryKey"`

	Charge int64 `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Service *Service `gorm:"foreignKey:ServiceID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}
