package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type GatewayOrderStatus string

const (
	GatewayOrderCreated GatewayOrderStatus = "created"
	GatewayOrderPaid    GatewayOrderStatus = "paid"
	GatewayOrderFailed  GatewayOrderStatus = "failed"
)

// gateway_orders — заказы во внешнем платёжном шлюзе.
// PaymentID уникален: повторный колбэк с тем же платежом обрабатывается идемпотентно.
type GatewayOrder struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	BookingID uuid.UUID `gorm:"type:uuid;not null;index"`

	OrderID string `gorm:"type:varchar(100);not null;uniqueIndex"`
	// В минимальных единицах валюты (пайсы, копейки).
	Amount   int64  `gorm:"not null"`
	Currency string `gorm:"type:varchar(8);not null"`

	Status    GatewayOrderStatus `gorm:"type:varchar(16);not null;default:'created';index"`
	PaymentID *string            `gorm:"type:varchar(100);uniqueIndex"`
	Signature string             `gorm:"type:varchar(255)"`

	Notes datatypes.JSON

	CreatedAt time.Time
	UpdatedAt time.Time

	Booking *Booking `gorm:"foreignKey:BookingID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (o *GatewayOrder) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
