package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Worker — исполнитель услуг (сантехник, уборка и т.п.).
// Привязан к базе пользователей через UserID.
type Worker struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`

	DisplayName     string `gorm:"type:varchar(255);not null"`
	ExperienceYears int    `gorm:"not null;default:0"`

	IsAvailable bool `gorm:"not null;default:true;index"`
	AllowsCOD   bool `gorm:"not null;default:false"`

	// Статистика отзывов, пересчитывается при каждой новой оценке.
	AverageRating float64 `gorm:"not null;default:0"`
	TotalReviews  int     `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time

	User *User `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`

	Services []WorkerService `gorm:"foreignKey:WorkerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (w *Worker) BeforeCreate(*gorm.DB) error {
	ensureID(&w.ID)
	return nil
}

// worker_earnings — начисление исполнителю за завершённый заказ.
type WorkerEarning struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	WorkerID  uuid.UUID `gorm:"type:uuid;not null;index"`
	BookingID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	Amount    int64     `gorm:"not null"`
	CreatedAt time.Time
}

func (e *WorkerEarning) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

// reviews — одна оценка клиента на заказ.
type Review struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	BookingID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	CustomerID uuid.UUID `gorm:"type:uuid;not null;index"`
	WorkerID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Rating     int       `gorm:"not null"`
	CreatedAt  time.Time
}

func (r *Review) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
