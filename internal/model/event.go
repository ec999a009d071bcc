package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Тип события аудита.
type EventType string

const (
	EventTypeBookingCreated   EventType = "booking_created"
	EventTypeBookingAccepted  EventType = "booking_accepted"
	EventTypeBookingStarted   EventType = "booking_started"
	EventTypeBookingCancelled EventType = "booking_cancelled"
	EventTypeTariffUpdated    EventType = "tariff_updated"
	EventTypeReceiptSent      EventType = "receipt_sent"
	EventTypePaymentMethodSet EventType = "payment_method_set"
	EventTypeOrderCreated     EventType = "payment_order_created"
	EventTypePaymentPaid      EventType = "payment_paid"
	EventTypeCODAttested      EventType = "payment_cod_attested"
	EventTypeCODDisputed      EventType = "payment_cod_disputed"
	EventTypeBookingCompleted EventType = "booking_completed"
	EventTypeBookingRated     EventType = "booking_rated"
	EventTypeAvailability     EventType = "worker_availability_changed"
	EventTypeUserRegistered   EventType = "user_registered"
	EventTypePasswordReset    EventType = "user_password_reset"
)

// events — журнал аудита и одновременно outbox: строки без PublishedAt
// забирает релей и отправляет в Kafka.
type Event struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	EventType EventType `gorm:"type:varchar(64);not null;index"`

	CreatedAt time.Time `gorm:"not null;index"`

	UserID    *uuid.UUID `gorm:"type:uuid;index"`
	BookingID *uuid.UUID `gorm:"type:uuid;index"`

	Payload datatypes.JSON

	PublishedAt   *time.Time `gorm:"index"`
	Attempts      int        `gorm:"not null;default:0"`
	NextAttemptAt time.Time  `gorm:"not null;index"`
	LastError     string     `gorm:"type:text"`

	// Навигационные поля
	User    *User    `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	Booking *Booking `gorm:"foreignKey:BookingID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	ensureID(&e.ID)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = tx.NowFunc()
	}
	if e.NextAttemptAt.IsZero() {
		e.NextAttemptAt = e.CreatedAt
	}
	return nil
}
