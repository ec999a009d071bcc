// Package api описывает JSON-схемы HTTP API. Одни и те же типы используют
// сервер (internal/httpapi) и клиент (internal/bookingclient).
package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/homeservice-platform/internal/booking"
)

const (
	CSRFCookie = "csrftoken"
	CSRFHeader = "X-CSRFToken"
)

type TariffItem struct {
	Label       string `json:"label"`
	Amount      int64  `json:"amount"`
	Explanation string `json:"explanation,omitempty"`
}

// Booking — проекция заказа, которую возвращает любой вызов над заказом.
type Booking struct {
	ID            uuid.UUID             `json:"id"`
	CustomerID    uuid.UUID             `json:"customerId"`
	WorkerID      uuid.UUID             `json:"workerId"`
	ServiceID     uuid.UUID             `json:"serviceId"`
	ServiceType   string                `json:"serviceType"`
	Description   string                `json:"description"`
	Urgency       string                `json:"urgency,omitempty"`
	ContactDates  []string              `json:"contactDates,omitempty"`
	Status        booking.Status        `json:"status"`
	PaymentMethod booking.PaymentMethod `json:"paymentMethod"`
	PaymentStatus booking.PaymentStatus `json:"paymentStatus"`
	TariffItems   []TariffItem          `json:"tariffItems"`
	BasePrice     int64                 `json:"basePrice"`
	Total         int64                 `json:"total"`
	ReceiptSent   bool                  `json:"receiptSent"`
	Rating        *int                  `json:"rating,omitempty"`
	RequestedAt   time.Time             `json:"requestedAt"`
	AcceptedAt    *time.Time            `json:"acceptedAt,omitempty"`
	StartedAt     *time.Time            `json:"startedAt,omitempty"`
	CompletedAt   *time.Time            `json:"completedAt,omitempty"`
	CancelledAt   *time.Time            `json:"cancelledAt,omitempty"`
	PaidAt        *time.Time            `json:"paidAt,omitempty"`
	Disputed      bool                  `json:"disputed"`
	Version       int                   `json:"version"`
}

var errSchema = errors.New("malformed booking projection")

// Validate проверяет ответ сервера до того, как он попадёт в локальное состояние.
func (b *Booking) Validate() error {
	if b.ID == uuid.Nil {
		return fmt.Errorf("%w: missing id", errSchema)
	}
	switch b.Status {
	case booking.StatusRequested, booking.StatusAccepted, booking.StatusInProgress,
		booking.StatusCompleted, booking.StatusCancelled:
	default:
		return fmt.Errorf("%w: unknown status %q", errSchema, b.Status)
	}
	switch b.PaymentMethod {
	case booking.MethodUnset, booking.MethodOnline, booking.MethodCOD:
	default:
		return fmt.Errorf("%w: unknown payment method %q", errSchema, b.PaymentMethod)
	}
	switch b.PaymentStatus {
	case booking.PaymentPending, booking.PaymentPaid:
	default:
		return fmt.Errorf("%w: unknown payment status %q", errSchema, b.PaymentStatus)
	}
	if b.Rating != nil && (*b.Rating < 1 || *b.Rating > 5) {
		return fmt.Errorf("%w: rating out of range", errSchema)
	}
	if b.RequestedAt.IsZero() {
		return fmt.Errorf("%w: missing requestedAt", errSchema)
	}
	return nil
}

// ToDomain — доменный заказ для локальных проверок (окно отмены и т.п.).
func (b *Booking) ToDomain() *booking.Booking {
	d := &booking.Booking{
		ID:            b.ID,
		CustomerID:    b.CustomerID,
		WorkerID:      b.WorkerID,
		ServiceType:   b.ServiceType,
		Description:   b.Description,
		Status:        b.Status,
		PaymentMethod: b.PaymentMethod,
		PaymentStatus: b.PaymentStatus,
		BasePrice:     b.BasePrice,
		ReceiptSent:   b.ReceiptSent,
		RequestedAt:   b.RequestedAt,
		AcceptedAt:    b.AcceptedAt,
		StartedAt:     b.StartedAt,
		CompletedAt:   b.CompletedAt,
		CancelledAt:   b.CancelledAt,
		PaidAt:        b.PaidAt,
		Disputed:      b.Disputed,
	}
	if b.Rating != nil {
		d.Rating = *b.Rating
	}
	for _, it := range b.TariffItems {
		d.TariffItems = append(d.TariffItems, booking.TariffItem(it))
	}
	return d
}

type Page[T any] struct {
	Items    []T  `json:"items"`
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	Total    int  `json:"total"`
	HasNext  bool `json:"hasNext"`
	HasPrev  bool `json:"hasPrev"`
}

// Error — тело любого ответа с ошибкой.
type Error struct {
	Error  string         `json:"error"`
	Field  string         `json:"field,omitempty"`
	Code   string         `json:"code,omitempty"`
	Status booking.Status `json:"status,omitempty"`
}

// Коды ошибок в Error.Code.
const (
	CodeValidation        = "validation"
	CodeInvalidTransition = "invalid_transition"
	CodeUnauthorized      = "unauthorized"
	CodeForbidden         = "forbidden"
	CodeNotFound          = "not_found"
	CodeConflict          = "conflict"
	CodeRateLimited       = "rate_limited"
	CodeUnavailable       = "unavailable"
	CodeInternal          = "internal"
)

type CSRFResponse struct {
	Token string `json:"csrfToken"`
}

// MessageResponse — ответ без данных, только текст для пользователя.
type MessageResponse struct {
	Message string `json:"message"`
}

type PublicKeyResponse struct {
	PEM string `json:"publicKey"`
}

type SessionResponse struct {
	Token           string    `json:"token"`
	UserID          uuid.UUID `json:"userId"`
	Role            string    `json:"role"`
	ProfileComplete bool      `json:"profileComplete"`
}

type Profile struct {
	UserID          uuid.UUID `json:"userId"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	Phone           string    `json:"phone,omitempty"`
	Address         string    `json:"address,omitempty"`
	Latitude        *float64  `json:"latitude,omitempty"`
	Longitude       *float64  `json:"longitude,omitempty"`
	Role            string    `json:"role"`
	ProfileComplete bool      `json:"profileComplete"`
	Worker          *Worker   `json:"worker,omitempty"`
}

type Service struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	BaseCost    int64     `json:"baseCost"`
}

type Offer struct {
	ServiceID uuid.UUID `json:"serviceId"`
	Name      string    `json:"name"`
	Charge    int64     `json:"charge"`
}

type Worker struct {
	ID              uuid.UUID `json:"id"`
	DisplayName     string    `json:"displayName"`
	ExperienceYears int       `json:"experienceYears"`
	Available       bool      `json:"available"`
	AllowsCOD       bool      `json:"allowsCod"`
	AverageRating   float64   `json:"averageRating"`
	TotalReviews    int       `json:"totalReviews"`
	Services        []Offer   `json:"services,omitempty"`
}

type WorkerHome struct {
	Worker    Worker    `json:"worker"`
	Requests  []Booking `json:"requests"`
	ActiveJob *Booking  `json:"activeJob,omitempty"`
	Earnings  int64     `json:"earnings"`
}

type Order struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Key      string `json:"key"`
	Receipt  string `json:"receipt"`
}

type AuditEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	Payload   any       `json:"payload,omitempty"`
}

type PaymentMethodRequest struct {
	Method booking.PaymentMethod `json:"method"`
}

type VerifyPaymentRequest struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

type RatingRequest struct {
	Rating int `json:"rating"`
}

type AvailabilityRequest struct {
	Available bool `json:"available"`
}

type OfferRequest struct {
	ServiceID uuid.UUID `json:"serviceId"`
	Charge    int64     `json:"charge"`
}
