package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// users
type User struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	Email string `gorm:"type:varchar(255);not null;uniqueIndex"`
	Name  string `gorm:"type:varchar(150)"`

	// argon2id, base64
	PasswordHash string `gorm:"type:varchar(128);not null"`
	PasswordSalt string `gorm:"type:varchar(64);not null"`

	Phone   string `gorm:"type:varchar(32)"`
	Address string `gorm:"type:varchar(255)"`

	Latitude  *float64
	Longitude *float64

	IsActive bool `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// Навигационные поля (опционально)
	Worker *Worker `gorm:"foreignKey:UserID"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

// ProfileComplete — имя, телефон, адрес и координаты заполнены.
func (u *User) ProfileComplete() bool {
	return u.Name != "" && u.Phone != "" && u.Address != "" && u.Latitude != nil && u.Longitude != nil
}
