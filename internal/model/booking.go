package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Leganyst/homeservice-platform/internal/booking"
)

// bookings
type Booking struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	CustomerID uuid.UUID `gorm:"type:uuid;not null;index"`
	WorkerID   uuid.UUID `gorm:"type:uuid;not null;index"`
	ServiceID  uuid.UUID `gorm:"type:uuid;not null;index"`

	ServiceType string `gorm:"type:varchar(80);not null"`
	Description string `gorm:"type:text"`
	Urgency     string `gorm:"type:varchar(32)"`

	// Удобные клиенту даты для связи, JSON-массив строк.
	ContactDates datatypes.JSON

	Status        booking.Status        `gorm:"type:varchar(32);not null;index"`
	PaymentMethod booking.PaymentMethod `gorm:"type:varchar(16);not null;default:'unset'"`
	PaymentStatus booking.PaymentStatus `gorm:"type:varchar(16);not null;default:'pending';index"`

	BasePrice   int64 `gorm:"not null;default:0"`
	ReceiptSent bool  `gorm:"not null;default:false"`
	Rating      int   `gorm:"not null;default:0"`

	RequestedAt time.Time `gorm:"not null;index"`
	AcceptedAt  *time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
	PaidAt      *time.Time

	PaymentReference string `gorm:"type:varchar(128)"`
	Disputed         bool   `gorm:"not null;default:false"`

	// Версия для оптимистичной блокировки: каждое сохранение +1.
	Version int `gorm:"not null;default:1"`

	CreatedAt time.Time
	UpdatedAt time.Time

	TariffItems []TariffItem `gorm:"foreignKey:BookingID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`

	Customer *User    `gorm:"foreignKey:CustomerID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Worker   *Worker  `gorm:"foreignKey:WorkerID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Service  *Service `gorm:"foreignKey:ServiceID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (b *Booking) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}

// tariff_items — позиции тарифа в порядке Position.
type TariffItem struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	BookingID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Position    int       `gorm:"not null"`
	Label       string    `gorm:"type:varchar(100);not null"`
	Amount      int64     `gorm:"not null"`
	Explanation string    `gorm:"type:varchar(255)"`
}

// ToDomain переводит строку таблицы в доменный заказ.
func (b *Booking) ToDomain() *booking.Booking {
	d := &booking.Booking{
		ID:               b.ID,
		CustomerID:       b.CustomerID,
		WorkerID:         b.WorkerID,
		ServiceType:      b.ServiceType,
		Description:      b.Description,
		Status:           b.Status,
		PaymentMethod:    b.PaymentMethod,
		PaymentStatus:    b.PaymentStatus,
		BasePrice:        b.BasePrice,
		ReceiptSent:      b.ReceiptSent,
		Rating:           b.Rating,
		RequestedAt:      b.RequestedAt,
		AcceptedAt:       b.AcceptedAt,
		StartedAt:        b.StartedAt,
		CompletedAt:      b.CompletedAt,
		CancelledAt:      b.CancelledAt,
		PaidAt:           b.PaidAt,
		PaymentReference: b.PaymentReference,
		Disputed:         b.Disputed,
	}
	if d.PaymentMethod == "" {
		d.PaymentMethod = booking.MethodUnset
	}
	if d.PaymentStatus == "" {
		d.PaymentStatus = booking.PaymentPending
	}
	for _, it := range b.TariffItems {
		d.TariffItems = append(d.TariffItems, booking.TariffItem{
			Label:       it.Label,
			Amount:      it.Amount,
			Explanation: it.Explanation,
		})
	}
	return d
}

// ApplyDomain переносит состояние доменного заказа в строку (ID и версия не трогаются).
func (b *Booking) ApplyDomain(d *booking.Booking) {
	b.Status = d.Status
	b.PaymentMethod = d.PaymentMethod
	b.PaymentStatus = d.PaymentStatus
	b.BasePrice = d.BasePrice
	b.ReceiptSent = d.ReceiptSent
	b.Rating = d.Rating
	b.AcceptedAt = d.AcceptedAt
	b.StartedAt = d.StartedAt
	b.CompletedAt = d.CompletedAt
	b.CancelledAt = d.CancelledAt
	b.PaidAt = d.PaidAt
	b.PaymentReference = d.PaymentReference
	b.Disputed = d.Disputed

	b.TariffItems = make([]TariffItem, 0, len(d.TariffItems))
	for i, it := range d.TariffItems {
		b.TariffItems = append(b.TariffItems, TariffItem{
			BookingID:   b.ID,
			Position:    i,
			Label:       it.Label,
			Amount:      it.Amount,
			Explanation: it.Explanation,
		})
	}
}

// Total — базовая цена плюс позиции тарифа.
func (b *Booking) Total() int64 {
	total := b.BasePrice
	for _, it := range b.TariffItems {
		total += it.Amount
	}
	return total
}
